// File: internal/validate/rules.go
package validate

import (
	"fmt"
	"strings"

	"github.com/pipemedic/pipemedic/internal/table"
)

// Result is the outcome of checking a single rule against a table.
type Result struct {
	Success bool
	Message string
}

// Rule is a data-quality predicate bound to exactly one column. Check is a
// pure function of its input; a rule referencing a column absent from the
// table fails with a "missing" message rather than a structural error.
type Rule interface {
	Check(t *table.Table) Result
}

// missingColumn is the shared failure for rules whose column is absent.
func missingColumn(column string) Result {
	return Result{Success: false, Message: fmt.Sprintf("Column '%s' missing from table", column)}
}

// NotNullRule fails when the column contains any null value.
type NotNullRule struct {
	Column string
}

func (r NotNullRule) Check(t *table.Table) Result {
	col, ok := t.Column(r.Column)
	if !ok {
		return missingColumn(r.Column)
	}
	nulls := 0
	for _, v := range col.Values {
		if v.Null {
			nulls++
		}
	}
	if nulls > 0 {
		return Result{Success: false, Message: fmt.Sprintf("Column '%s' contains %d null values", r.Column, nulls)}
	}
	return Result{Success: true}
}

// UniqueRule fails when the column contains any repeated value.
type UniqueRule struct {
	Column string
}

func (r UniqueRule) Check(t *table.Table) Result {
	col, ok := t.Column(r.Column)
	if !ok {
		return missingColumn(r.Column)
	}
	seen := make(map[string]bool, len(col.Values))
	duplicates := 0
	for _, v := range col.Values {
		key := v.Raw
		if v.Null {
			key = "\x00null"
		}
		if seen[key] {
			duplicates++
		}
		seen[key] = true
	}
	if duplicates > 0 {
		return Result{Success: false, Message: fmt.Sprintf("Column '%s' contains %d duplicate values", r.Column, duplicates)}
	}
	return Result{Success: true}
}

// TypeRule fails when the column's inferred kind does not match Expected.
// An int column satisfies an expected float, matching the usual widening of
// numeric CSV columns.
type TypeRule struct {
	Column   string
	Expected table.Kind
}

func (r TypeRule) Check(t *table.Table) Result {
	col, ok := t.Column(r.Column)
	if !ok {
		return missingColumn(r.Column)
	}
	if col.Kind == r.Expected {
		return Result{Success: true}
	}
	if r.Expected == table.KindFloat && col.Kind == table.KindInt {
		return Result{Success: true}
	}
	return Result{
		Success: false,
		Message: fmt.Sprintf("Column '%s' expected %s, got %s", r.Column, r.Expected, col.Kind),
	}
}

// RangeRule fails when any value falls below Min or above Max. Nil bounds are
// unchecked. Non-numeric values are ignored; TypeRule is the tool for those.
type RangeRule struct {
	Column string
	Min    *float64
	Max    *float64
}

func (r RangeRule) Check(t *table.Table) Result {
	col, ok := t.Column(r.Column)
	if !ok {
		return missingColumn(r.Column)
	}
	if r.Min != nil {
		below := 0
		for _, v := range col.Values {
			if f, ok := v.Float(); ok && f < *r.Min {
				below++
			}
		}
		if below > 0 {
			return Result{Success: false, Message: fmt.Sprintf("Column '%s' has %d values < %s", r.Column, below, formatBound(*r.Min))}
		}
	}
	if r.Max != nil {
		above := 0
		for _, v := range col.Values {
			if f, ok := v.Float(); ok && f > *r.Max {
				above++
			}
		}
		if above > 0 {
			return Result{Success: false, Message: fmt.Sprintf("Column '%s' has %d values > %s", r.Column, above, formatBound(*r.Max))}
		}
	}
	return Result{Success: true}
}

// formatBound trims trailing zeros so whole-number bounds read naturally.
func formatBound(f float64) string {
	s := fmt.Sprintf("%g", f)
	return strings.TrimSuffix(s, ".0")
}
