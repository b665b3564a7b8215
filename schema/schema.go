// Package schema has configs, models and shared constants for all parts of devpulse.
package schema

// Report is the stable tabular contract between the analytics pipeline and
// every output sink (terminal tables, CSV, parquet, MCP). Column names and
// their order are part of the interface; downstream tooling indexes by both.
type Report struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// NewReport creates an empty report with the given name and column order.
func NewReport(name string, columns ...string) *Report {
	return &Report{Name: name, Columns: columns}
}

// Append adds one row. The caller is responsible for matching the column order.
func (r *Report) Append(values ...any) {
	r.Rows = append(r.Rows, values)
}

// Len returns the number of rows.
func (r *Report) Len() int { return len(r.Rows) }
