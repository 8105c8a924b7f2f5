// File: internal/analyzer/analyzer.go
package analyzer

import (
	"regexp"
	"strings"
)

// Category classifies a job failure transcript. The enumeration is closed; a
// diagnosis is assigned exactly one category.
type Category string

const (
	CategorySchemaDrift       Category = "schema_drift"
	CategoryTypeMismatch      Category = "type_mismatch"
	CategoryMissingDependency Category = "missing_dependency"
	CategoryAPIError          Category = "api_error"
	CategoryDBConnection      Category = "db_connection"
	CategorySyntaxError       Category = "syntax_error"
	CategoryFileIO            Category = "file_io"
	CategoryDataQuality       Category = "data_quality"
	CategoryUnknown           Category = "unknown"
)

// Diagnosis is the structured classification of one failure transcript. It is
// read-only after creation and feeds the fix-generation request as contextual
// hinting only; it never drives orchestrator control flow.
type Diagnosis struct {
	Category Category `json:"category"`
	// Message is the last non-empty line of the transcript.
	Message string `json:"message"`
	// Context holds values extracted from the transcript, keyed by
	// "missing_column", "missing_module", "missing_file" or "issue".
	Context map[string]string `json:"context"`
	// OriginalError is the full transcript the diagnosis was built from.
	OriginalError string `json:"original_error"`
	// Strategy is human-readable guidance passed to the fix generator.
	Strategy string `json:"suggested_fix_strategy"`
}

const defaultStrategy = "Analyze the code and error to find a fix."

// Extraction patterns for classification rules.
var (
	missingModuleRegex = regexp.MustCompile(`No module named '(\w+)'`)
	missingColumnRegex = regexp.MustCompile(`KeyError: '(\w+)'`)
	missingFileRegex   = regexp.MustCompile(`No such file or directory: '(.+)'`)
)

// classificationRule pairs a transcript predicate with a builder that fills in
// the category, context and strategy for a matching transcript.
type classificationRule struct {
	name  string
	match func(errorText string) bool
	build func(errorText string, d *Diagnosis)
}

// containsAny reports whether errorText contains at least one of the markers.
func containsAny(errorText string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(errorText, m) {
			return true
		}
	}
	return false
}

// rules is evaluated in order; the first match wins. The order is part of the
// contract: a transcript carrying both a data-quality marker and a KeyError
// must classify as data_quality.
var rules = []classificationRule{
	{
		name: "data_quality",
		match: func(t string) bool {
			return containsAny(t, "DataValidationError", "Data Validation Failed")
		},
		build: func(t string, d *Diagnosis) {
			d.Category = CategoryDataQuality
			d.Strategy = "Data quality issues detected. Consider cleaning the data (e.g., dropping nulls/duplicates) or relaxing validation rules."
			if strings.Contains(t, "null values") {
				d.Context["issue"] = "null_values"
			} else if strings.Contains(t, "duplicate values") {
				d.Context["issue"] = "duplicates"
			}
		},
	},
	{
		name: "missing_dependency",
		match: func(t string) bool {
			return containsAny(t, "ModuleNotFoundError", "ImportError")
		},
		build: func(t string, d *Diagnosis) {
			d.Category = CategoryMissingDependency
			if m := missingModuleRegex.FindStringSubmatch(t); m != nil {
				d.Context["missing_module"] = m[1]
				d.Strategy = "Add '" + m[1] + "' to the job's requirements or install it."
			} else {
				d.Strategy = "Check imports and installed packages."
			}
		},
	},
	{
		name: "schema_drift",
		match: func(t string) bool {
			return strings.Contains(t, "KeyError")
		},
		build: func(t string, d *Diagnosis) {
			d.Category = CategorySchemaDrift
			if m := missingColumnRegex.FindStringSubmatch(t); m != nil {
				d.Context["missing_column"] = m[1]
				d.Strategy = "The column '" + m[1] + "' is missing from the data. Check for schema changes or renamed columns."
			} else {
				d.Strategy = "A required key or column is missing."
			}
		},
	},
	{
		name: "type_mismatch",
		match: func(t string) bool {
			return containsAny(t, "TypeError", "ValueError")
		},
		build: func(t string, d *Diagnosis) {
			switch {
			case containsAny(t, "could not convert", "unexpected keyword"):
				d.Category = CategoryTypeMismatch
				d.Strategy = "Check data types and function arguments. Ensure data matches expected format."
			case strings.Contains(t, "invalid literal"):
				d.Category = CategoryTypeMismatch
				d.Strategy = "Data contains non-numeric values in a numeric column. Coerce the column to numeric and handle failures."
			case strings.Contains(t, "Schema Mismatch"):
				// The pipeline's own schema check raises a ValueError with
				// this marker; it is drift, not a type problem.
				d.Category = CategorySchemaDrift
				d.Strategy = "The data schema does not match expectations. Update the code to handle the new schema."
			default:
				d.Category = CategoryTypeMismatch
				d.Strategy = "Fix type incompatibility."
			}
		},
	},
	{
		name: "syntax_error",
		match: func(t string) bool {
			return containsAny(t, "SyntaxError", "IndentationError")
		},
		build: func(t string, d *Diagnosis) {
			d.Category = CategorySyntaxError
			d.Strategy = "Fix syntax errors in the job source."
		},
	},
	{
		name: "file_io",
		match: func(t string) bool {
			return strings.Contains(t, "FileNotFoundError")
		},
		build: func(t string, d *Diagnosis) {
			d.Category = CategoryFileIO
			if m := missingFileRegex.FindStringSubmatch(t); m != nil {
				d.Context["missing_file"] = m[1]
				d.Strategy = "Ensure the file '" + m[1] + "' exists or check the path."
			} else {
				d.Strategy = "Check file paths and permissions."
			}
		},
	},
	{
		name: "api_error",
		match: func(t string) bool {
			return containsAny(t, "ConnectionError", "Timeout", "401 Client Error")
		},
		build: func(t string, d *Diagnosis) {
			d.Category = CategoryAPIError
			d.Strategy = "Check network connection, API keys, and service status."
		},
	},
}

// Analyze classifies a raw failure transcript into a Diagnosis. It is a pure
// function and never fails: an unmatched transcript maps to CategoryUnknown
// with a generic strategy.
func Analyze(errorText string) Diagnosis {
	d := Diagnosis{
		Category:      CategoryUnknown,
		Message:       lastNonEmptyLine(errorText),
		Context:       map[string]string{},
		OriginalError: errorText,
		Strategy:      defaultStrategy,
	}

	for _, rule := range rules {
		if rule.match(errorText) {
			rule.build(errorText, &d)
			break
		}
	}
	return d
}

// lastNonEmptyLine returns the final line of text that contains more than
// whitespace, or the whole text when no such line exists.
func lastNonEmptyLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return text
}
