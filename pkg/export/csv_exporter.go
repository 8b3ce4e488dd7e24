package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter streams rows into CSV output: the header is written once, then
// rows are appended batch by batch so a large export never has to be held in
// memory.
type CSVWriter struct {
	w          *csv.Writer
	columns    int
	headerDone bool
}

// NewCSVWriter wraps the destination writer.
func NewCSVWriter(dst io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(dst)}
}

// WriteHeader writes the header record. It may be called at most once.
func (c *CSVWriter) WriteHeader(headers []string) error {
	if c.headerDone {
		return fmt.Errorf("csv header already written")
	}
	if len(headers) == 0 {
		return fmt.Errorf("csv requires at least one header")
	}
	if err := c.w.Write(headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	c.columns = len(headers)
	c.headerDone = true
	return nil
}

// WriteRow appends one record. The record must match the header width.
func (c *CSVWriter) WriteRow(record []string) error {
	if !c.headerDone {
		return fmt.Errorf("csv header not written")
	}
	if len(record) != c.columns {
		return fmt.Errorf("csv row has %d fields, want %d", len(record), c.columns)
	}
	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Flush forces buffered records out and reports any accumulated write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
