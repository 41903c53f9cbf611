// Package voterroll reads voter roll sheets.
package voterroll

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/encoding/charmap"
)

// Options describes the sheet encoding.
type Options struct {
	Comma  rune
	Latin1 bool // sheet is ISO 8859-1 instead of UTF-8
}

// Read parses every row of the sheet in r.
func Read(r io.Reader, opts Options) ([]*Row, error) {
	if opts.Latin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	var rows []*Row
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse voter roll, error %v", err)
	}
	return rows, nil
}
