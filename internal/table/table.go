// File: internal/table/table.go
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Kind is the inferred value type of a column.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindString Kind = "string"
)

// Value is one cell: a raw string plus a null flag. An empty CSV cell is null.
type Value struct {
	Raw  string
	Null bool
}

// Column is a named, typed sequence of values.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// Table is a column-major tabular dataset, the input to validation rules and
// the reference pipeline.
type Table struct {
	columns []Column
	byName  map[string]int
}

// New builds a table from columns. Column order is preserved.
func New(columns ...Column) *Table {
	t := &Table{columns: columns, byName: make(map[string]int, len(columns))}
	for i, c := range columns {
		t.byName[c.Name] = i
	}
	return t
}

// Columns returns the table's columns in order.
func (t *Table) Columns() []Column { return t.columns }

// ColumnNames returns the ordered column names.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or false when the table has no such column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.columns[i], true
}

// HasColumn reports whether the table contains the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Values)
}

// Rename renames columns per the mapping. Names absent from the table are
// ignored so the caller can apply one mapping across schema variants.
func (t *Table) Rename(mapping map[string]string) {
	for i := range t.columns {
		if to, ok := mapping[t.columns[i].Name]; ok {
			delete(t.byName, t.columns[i].Name)
			t.columns[i].Name = to
			t.byName[to] = i
		}
	}
}

// SchemaSample renders the column names and inferred kinds as a single line,
// suitable as schema context in a fix-generation prompt.
func (t *Table) SchemaSample() string {
	parts := make([]string, len(t.columns))
	for i, c := range t.columns {
		parts[i] = fmt.Sprintf("%s (%s)", c.Name, c.Kind)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Read parses CSV data from r. The first record is the header; column kinds
// are inferred from the remaining records.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv input is empty")
	}

	header := records[0]
	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = Column{Name: strings.TrimSpace(name)}
	}
	for _, record := range records[1:] {
		for i := range columns {
			var v Value
			if i < len(record) {
				raw := record[i]
				v = Value{Raw: raw, Null: strings.TrimSpace(raw) == ""}
			} else {
				v = Value{Null: true}
			}
			columns[i].Values = append(columns[i].Values, v)
		}
	}
	for i := range columns {
		columns[i].Kind = inferKind(columns[i].Values)
	}
	return New(columns...), nil
}

// ReadFile loads a CSV file into a table.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// SampleFile loads at most n data rows from a CSV file. It exists so the
// orchestrator can sample a large dataset's schema cheaply.
func SampleFile(path string, n int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	records := [][]string{header}
	for len(records)-1 < n {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		records = append(records, record)
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return Read(strings.NewReader(sb.String()))
}

// WriteFile writes the table as CSV to path, creating parent-relative files
// with 0644 permissions.
func (t *Table) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.ColumnNames()); err != nil {
		return err
	}
	for row := 0; row < t.NumRows(); row++ {
		record := make([]string, len(t.columns))
		for i, c := range t.columns {
			if !c.Values[row].Null {
				record[i] = c.Values[row].Raw
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// inferKind picks the narrowest kind that parses every non-null value,
// trying int, then float, then bool, falling back to string. A column with
// no non-null values is a string column.
func inferKind(values []Value) Kind {
	sawValue := false
	isInt, isFloat, isBool := true, true, true
	for _, v := range values {
		if v.Null {
			continue
		}
		sawValue = true
		raw := strings.TrimSpace(v.Raw)
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			isFloat = false
		}
		if _, err := strconv.ParseBool(raw); err != nil {
			isBool = false
		}
	}
	switch {
	case !sawValue:
		return KindString
	case isInt:
		return KindInt
	case isFloat:
		return KindFloat
	case isBool:
		return KindBool
	default:
		return KindString
	}
}

// Float returns the cell parsed as a float64. Null or unparsable cells return
// ok=false.
func (v Value) Float() (float64, bool) {
	if v.Null {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
