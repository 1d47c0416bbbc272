// Package table reads and writes headered CSV tables while preserving
// column order and passthrough columns the pipeline does not interpret.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
)

// Table is an in-memory CSV table with a header row.
type Table struct {
	header []string
	rows   [][]string
	index  map[string]int
}

// New creates an empty table with the given header.
func New(header []string) *Table {
	t := &Table{header: append([]string(nil), header...)}
	t.reindex()
	return t
}

// Read parses a headered CSV stream.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}

	t := New(records[0])
	for _, rec := range records[1:] {
		// Ragged rows are padded so column lookups stay in bounds.
		for len(rec) < len(t.header) {
			rec = append(rec, "")
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// ReadFile parses a headered CSV file.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.header))
	for i, name := range t.header {
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
}

// Header returns the column names in order.
func (t *Table) Header() []string { return t.header }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the raw cells of row i.
func (t *Table) Row(i int) []string { return t.rows[i] }

// Append adds a data row. Short rows are padded to the header width.
func (t *Table) Append(row []string) {
	for len(row) < len(t.header) {
		row = append(row, "")
	}
	t.rows = append(t.rows, row)
}

// Require fails when any named column is absent. Callers invoke this before
// producing any output so schema problems abort the run up front.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			return fmt.Errorf("missing required column %q", c)
		}
	}
	return nil
}

// Get returns the cell at (row, col), or "" when the column is unknown.
func (t *Table) Get(row int, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][i]
}

// Set writes the cell at (row, col); unknown columns are an error.
func (t *Table) Set(row int, col, value string) error {
	i, ok := t.index[col]
	if !ok {
		return fmt.Errorf("unknown column %q", col)
	}
	t.rows[row][i] = value
	return nil
}

// AddColumn appends a column with one value per existing row.
func (t *Table) AddColumn(name string, values []string) error {
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.rows))
	}
	t.header = append(t.header, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], values[i])
	}
	t.reindex()
	return nil
}

// DedupeBy removes rows whose value in col was already seen, keeping the
// first occurrence. Returns the number of rows removed.
func (t *Table) DedupeBy(col string) (int, error) {
	if err := t.Require(col); err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(t.rows))
	kept := t.rows[:0]
	removed := 0
	for _, row := range t.rows {
		key := row[t.index[col]]
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}
	t.rows = kept
	return removed, nil
}

// SortBy stably reorders rows by the given less function.
func (t *Table) SortBy(less func(a, b []string) bool) {
	sort.SliceStable(t.rows, func(i, j int) bool {
		return less(t.rows[i], t.rows[j])
	})
}

// Write emits the table as CSV.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range t.rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table to path, replacing any existing file so
// re-runs stay idempotent.
func (t *Table) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
