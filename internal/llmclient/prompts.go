// File: internal/llmclient/prompts.go
package llmclient

import (
	"fmt"
	"strings"

	"github.com/pipemedic/pipemedic/internal/healer"
)

const systemPrompt = "You are a code fixing assistant for data pipelines. Return only the complete corrected source code with no explanations or markdown."

// buildPrompt renders the user prompt for one attempt. The first attempt gets
// the original error and current code; later attempts additionally carry the
// previous fix and the error it produced, so the generator corrects its own
// prior mistake rather than repeating it blind.
func buildPrompt(req healer.FixRequest) string {
	var sb strings.Builder

	if req.Attempt <= 1 || req.PreviousFix == "" {
		sb.WriteString("You are a data engineering expert. An ETL pipeline job has failed.\n\n")
		fmt.Fprintf(&sb, "ERROR LOG:\n%s\n\n", req.ErrorText)
		fmt.Fprintf(&sb, "CURRENT CODE:\n%s\n\n", req.Source)
		fmt.Fprintf(&sb, "DATA COLUMNS (from sample):\n%s\n\n", req.SchemaSample)
		sb.WriteString("TASK: Fix the code to handle the failure. Return ONLY the corrected source code, nothing else. No explanations, no markdown formatting, just the raw code.")
	} else {
		sb.WriteString("You are a data engineering expert. Your previous fix did not work.\n\n")
		fmt.Fprintf(&sb, "ORIGINAL ERROR:\n%s\n\n", req.ErrorText)
		fmt.Fprintf(&sb, "YOUR PREVIOUS FIX (Attempt %d):\n%s\n\n", req.Attempt-1, req.PreviousFix)
		fmt.Fprintf(&sb, "NEW ERROR AFTER YOUR FIX:\n%s\n\n", req.PreviousError)
		fmt.Fprintf(&sb, "DATA COLUMNS (from sample):\n%s\n\n", req.SchemaSample)
		sb.WriteString("TASK: The previous fix failed. Analyze what went wrong and provide a BETTER fix. Return ONLY the corrected source code, nothing else.")
	}

	// The diagnosis is advisory hinting; a misclassification must not be
	// able to steer the generator away from the raw evidence above.
	if req.Diagnosis != nil && req.Diagnosis.Strategy != "" {
		fmt.Fprintf(&sb, "\n\nHINT (%s): %s", req.Diagnosis.Category, req.Diagnosis.Strategy)
	}

	return sb.String()
}
