// Package outwriter renders reports: colored terminal tables for humans,
// CSV for files and pipes. Every sink consumes the same tabular contract,
// so a report renders the same way no matter which command produced it.
package outwriter

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"

	"github.com/clifelab/devpulse/schema"
)

// Cells wider than this are truncated in table output on narrow terminals.
const maxTableCellWidth = 40

// Terminals at least this wide render cells untruncated.
const wideTerminalWidth = 200

// OutWriter renders reports using the configured output format.
type OutWriter struct{}

// New creates an output writer.
func New() *OutWriter {
	return &OutWriter{}
}

// Write renders one report. Text goes to stdout as a table; csv goes to the
// configured out-file, or stdout when none is set.
func (ow *OutWriter) Write(r *schema.Report, cfg *schema.Config) error {
	switch cfg.Output {
	case schema.CSVOut:
		return printCSV(r, cfg.OutFile)
	default:
		return printTable(r)
	}
}

// WriteAll renders several reports in order, stopping at the first failure.
func (ow *OutWriter) WriteAll(reports []*schema.Report, cfg *schema.Config) error {
	for _, r := range reports {
		if err := ow.Write(r, cfg); err != nil {
			return fmt.Errorf("report %s: %w", r.Name, err)
		}
	}
	return nil
}

// printCSV handles opening the destination and calling the CSV writer.
func printCSV(r *schema.Report, path string) error {
	file, err := selectOutputFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if file != os.Stdout {
			_ = file.Close()
		}
	}()

	w := csv.NewWriter(file)
	if err := WriteCSV(w, r); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "Wrote %s to %s\n", r.Name, path)
	}
	return nil
}

// WriteCSV writes the report through an existing csv writer: header first,
// then every row with the plain cell formatting.
func WriteCSV(w *csv.Writer, r *schema.Report) error {
	if err := w.Write(r.Columns); err != nil {
		return err
	}
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatCell(v)
		}
		if err := w.Write(cells); err != nil {
			return err
		}
	}
	return nil
}

// printTable generates and prints the human-readable table.
func printTable(r *schema.Report) error {
	fmt.Printf("\n%s (%d rows)\n", r.Name, r.Len())

	wide := terminalWidth() >= wideTerminalWidth

	table := tablewriter.NewWriter(os.Stdout)
	table.Header(r.Columns)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cell := FormatCell(v)
			if !wide {
				cell = truncateCell(cell, maxTableCellWidth)
			}
			cells[i] = colorCell(r.Columns[i], cell)
		}
		data = append(data, cells)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// selectOutputFile returns stdout for an empty path, otherwise creates the
// file.
func selectOutputFile(path string) (*os.File, error) {
	if path == "" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		// Conservative default for pipes and CI.
		return 80
	}
	return w
}
