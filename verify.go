package cachebench

import "sort"

// AverageRecord maps iterations (1-based) to the average response time in
// milliseconds observed during that iteration.
// Iterations without an emitted average are absent.
type AverageRecord struct {
	averages map[int]int64
}

// NewAverageRecord returns a record with the values assigned to
// iterations 1, 2, ... in order.
func NewAverageRecord(values ...int64) AverageRecord {
	var r AverageRecord
	for i, v := range values {
		r.Set(i+1, v)
	}
	return r
}

func (r *AverageRecord) Set(iteration int, millis int64) {
	if r.averages == nil {
		r.averages = make(map[int]int64)
	}
	r.averages[iteration] = millis
}

func (r AverageRecord) Get(iteration int) (int64, bool) {
	v, ok := r.averages[iteration]
	return v, ok
}

func (r AverageRecord) Len() int {
	return len(r.averages)
}

// Iterations returns the recorded iterations in ascending order.
func (r AverageRecord) Iterations() []int {
	iterations := make([]int, 0, len(r.averages))
	for i := range r.averages {
		iterations = append(iterations, i)
	}
	sort.Ints(iterations)
	return iterations
}

// Values returns the averages ordered by iteration.
func (r AverageRecord) Values() []int64 {
	values := make([]int64, 0, len(r.averages))
	for _, i := range r.Iterations() {
		values = append(values, r.averages[i])
	}
	return values
}

// VerifyCacheAdvantage reports whether every cache-enabled iteration was at
// least as fast as every cache-disabled iteration.
// Iterations listed in noCacheIndices are cache-disabled, all others enabled.
// No-cache iterations without a recorded average are ignored.
func VerifyCacheAdvantage(averages AverageRecord, noCacheIndices []int) bool {
	noCache := make(map[int]bool, len(noCacheIndices))
	for _, k := range noCacheIndices {
		noCache[k] = true
	}

	for _, k := range noCacheIndices {
		noCacheAverage, ok := averages.Get(k)
		if !ok {
			continue
		}
		for _, j := range averages.Iterations() {
			if noCache[j] {
				continue
			}
			if cacheAverage, _ := averages.Get(j); cacheAverage > noCacheAverage {
				return false
			}
		}
	}
	return true
}
