package export

import (
	"fmt"
	"strings"
)

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Record returns the row values in header order.
func (d Dataset) Record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

// Exporter renders a dataset into one file format.
type Exporter interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Registry resolves exporters by format name.
type Registry map[string]Exporter

// NewRegistry wires the CSV, PDF and XLSX exporters.
func NewRegistry() Registry {
	return Registry{
		"csv":  NewCSVExporter(),
		"pdf":  NewPDFExporter(),
		"xlsx": NewXLSXExporter(),
	}
}

// Get returns the exporter of format.
func (r Registry) Get(format string) (Exporter, error) {
	exporter, ok := r[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return exporter, nil
}

// Filename builds "<base>.<ext>" with characters unsafe in Content-Disposition replaced.
func Filename(base string, exporter Exporter) string {
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(base))
	if base == "" {
		base = "export"
	}
	return base + exporter.Extension()
}
