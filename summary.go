package cachebench

import (
	"fmt"
	"io"
	"strconv"

	"github.com/always-cache/cachebench/metrics"
	"github.com/olekukonko/tablewriter"
)

// RenderSummary writes one table row per iteration followed by the verdict.
func RenderSummary(w io.Writer, result Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Iteration", "Mode", "Records", "Responses", "Hits", "Failures", "Average (ms)"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, batch := range result.Batches {
		average := "-"
		if batch.HasAverage {
			average = strconv.FormatInt(batch.Average.Millis, 10)
		}
		table.Append([]string{
			strconv.Itoa(batch.Iteration),
			metrics.Mode(batch.CacheDisabled),
			strconv.Itoa(len(batch.Records)),
			strconv.Itoa(batch.Responses),
			strconv.Itoa(batch.CacheHits),
			strconv.Itoa(batch.Failures),
			average,
		})
	}
	table.Render()

	verdict := "FAILED"
	if result.Verify() {
		verdict = "PASSED"
	}
	fmt.Fprintf(w, "Run %s: cache advantage %s\n", result.RunID, verdict)
}
