// File: internal/validate/validator.go
package validate

import (
	"fmt"
	"strings"

	"github.com/pipemedic/pipemedic/internal/table"
)

// AggregateError bundles every rule violation found in one validation pass.
// Its text carries the "Data Validation Failed" marker that the error
// analyzer's data-quality branch recognizes.
type AggregateError struct {
	Errors []string
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("DataValidationError: Data Validation Failed with %d errors:\n%s",
		len(e.Errors), strings.Join(e.Errors, "\n"))
}

// Validator runs an ordered list of rules against a table. Adding, removing or
// reordering rules never changes an individual rule's outcome, only which
// messages appear in the aggregate.
type Validator struct {
	rules []Rule
}

// NewValidator builds a validator over the given rules.
func NewValidator(rules ...Rule) *Validator {
	return &Validator{rules: rules}
}

// Validate checks every rule against the same table. It returns nil when all
// rules pass and otherwise a single *AggregateError carrying every failing
// message, never just the first.
func (v *Validator) Validate(t *table.Table) error {
	var errs []string
	for _, rule := range v.rules {
		if result := rule.Check(t); !result.Success {
			errs = append(errs, result.Message)
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
