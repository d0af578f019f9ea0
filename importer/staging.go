package importer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Stage serialises a value grid to a CSV file at path, one record per row,
// fields in original column order. Every field is quoted, with backslash
// escaping backslashes and double quotes inside fields - the encoding the
// warehouse load jobs are configured for. No header row is synthesised.
//
// encoding/csv cannot produce this: it only supports RFC 4180 quote
// doubling, not an escape character.
func Stage(grid [][]string, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create staging file (%w)", err)
	}

	w := bufio.NewWriter(f)

	for _, row := range grid {
		for i, field := range row {
			if i > 0 {
				w.WriteByte(',')
			}

			w.WriteString(quote(field))
		}

		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func quote(field string) string {
	var b strings.Builder

	b.Grow(len(field) + 2)
	b.WriteByte('"')

	for _, c := range []byte(field) {
		if c == '\\' || c == '"' {
			b.WriteByte('\\')
		}

		b.WriteByte(c)
	}

	b.WriteByte('"')

	return b.String()
}
