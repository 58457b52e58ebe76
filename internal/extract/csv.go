package extract

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

// CSV extracts a dataset from a local delimited file. The first row is the
// header. Empty cells become null; numeric-looking cells are tagged as
// numbers; configured date columns are parsed into timestamps. Everything
// else stays a string.
type CSV struct {
	// Path is the file to read.
	Path string

	// Source identifies the extraction in provenance metadata. Defaults to
	// the file name without extension.
	Source string

	// Comma is the field delimiter; zero means ','.
	Comma rune

	// DateColumns lists columns parsed as timestamps using DateLayout.
	DateColumns []string

	// DateLayout is the layout tried first for date columns; ISO 8601 date
	// and RFC 3339 are always tried as fallbacks.
	DateLayout string

	// Now supplies the load timestamp; nil means time.Now. Injectable so
	// tests stay deterministic.
	Now func() time.Time
}

func (c *CSV) source() string {
	if c.Source != "" {
		return c.Source
	}
	base := filepath.Base(c.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extract reads the whole file into a dataset.
func (c *CSV) Extract(ctx context.Context) (records.Dataset, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return records.Dataset{}, &ExtractionError{Source: c.source(), Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	if c.Comma != 0 {
		r.Comma = c.Comma
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return records.Dataset{}, &ExtractionError{Source: c.source(), Err: headerErr(err)}
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	dateCols := make(map[string]bool, len(c.DateColumns))
	for _, d := range c.DateColumns {
		dateCols[d] = true
	}

	ds := records.Dataset{Columns: columns}
	for {
		if err := ctx.Err(); err != nil {
			return records.Dataset{}, &ExtractionError{Source: c.source(), Err: err}
		}
		raw, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records.Dataset{}, &ExtractionError{Source: c.source(), Err: err}
		}
		rec := make(records.Record, len(columns))
		for i, col := range columns {
			if i >= len(raw) {
				rec[col] = nil
				continue
			}
			rec[col] = c.cell(col, raw[i], dateCols[col])
		}
		ds.Rows = append(ds.Rows, rec)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return Stamp(ds, c.source(), now()), nil
}

// cell converts one raw string cell into a scalar value.
func (c *CSV) cell(col, s string, isDate bool) any {
	if s == "" {
		return nil
	}
	if isDate {
		for _, layout := range c.dateLayouts() {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		// Unparseable dates stay strings so the validator can reject them
		// with the offending raw value attached.
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func (c *CSV) dateLayouts() []string {
	layouts := make([]string, 0, 3)
	if c.DateLayout != "" {
		layouts = append(layouts, c.DateLayout)
	}
	return append(layouts, "2006-01-02", time.RFC3339)
}

func headerErr(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
