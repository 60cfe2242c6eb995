package surnames

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// ReadFile returns the surnames in the file, one per line, in file order.
// If the file cannot be read, an empty list is returned and the failure is logged.
func ReadFile(filename string) []string {
	f, err := os.Open(filename)
	if err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("Cannot read surnames from file")
		return []string{}
	}
	defer f.Close()
	surnames, err := Read(f)
	if err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("Cannot read surnames from file")
		return []string{}
	}
	return surnames
}

// Read returns the lines of r, one surname per line.
// Line endings are stripped; a trailing newline does not add an empty surname.
func Read(r io.Reader) ([]string, error) {
	surnames := make([]string, 0)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		surnames = append(surnames, strings.TrimRight(scanner.Text(), "\r"))
	}
	return surnames, scanner.Err()
}
