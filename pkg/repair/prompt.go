// Package repair builds the prompts that ask a model to fix its own
// malformed output.
package repair

import (
	"encoding/json"
	"strings"
)

// JSONRepairPrompt asks the model to turn raw into valid JSON matching
// schema without changing its meaning.
func JSONRepairPrompt(raw string, schema any) string {
	var sb strings.Builder

	sb.WriteString("You are a JSON repair tool. Fix the input to valid JSON that matches the required schema exactly.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Preserve the original meaning.\n")
	sb.WriteString("- Do not add new fields or commentary.\n")
	sb.WriteString("- Return ONLY valid JSON.\n\n")

	section(&sb, "REQUIRED_SCHEMA", compact(schema))
	section(&sb, "INPUT", raw)

	return sb.String()
}

// SalesInput carries what the sales repair prompt needs to ground the fix.
type SalesInput struct {
	Task       string
	AllowedIDs []string
	Candidates any
	Schema     any
	Raw        string
	// Problem is the validation failure that triggered the repair.
	Problem string
}

// SalesRepairPrompt asks the model to rewrite a sales answer so that it
// uses only allowed ids and satisfies the schema.
func SalesRepairPrompt(in SalesInput) string {
	var sb strings.Builder

	sb.WriteString("You are a JSON repair tool for a marketplace sales agent.\n")
	sb.WriteString("Fix the JSON to match the required schema AND the allowed app_ids.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Return ONLY valid JSON.\n")
	sb.WriteString("- final_choice MUST be one of ALLOWED_APP_IDS.\n")
	sb.WriteString("- recommendations MUST be a list (max 3) of objects with app_id from ALLOWED_APP_IDS.\n")
	sb.WriteString("- final_choice MUST be included in recommendations.\n")
	sb.WriteString("- Preserve the original meaning where possible.\n")
	if in.Problem != "" {
		sb.WriteString("\nIssue found: ")
		sb.WriteString(in.Problem)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	section(&sb, "TASK", in.Task)
	section(&sb, "ALLOWED_APP_IDS", compact(in.AllowedIDs))
	section(&sb, "CANDIDATES", compact(in.Candidates))
	section(&sb, "REQUIRED_SCHEMA", compact(in.Schema))
	section(&sb, "INPUT", in.Raw)

	return sb.String()
}

func section(sb *strings.Builder, title, body string) {
	sb.WriteString(title)
	sb.WriteString(":\n")
	sb.WriteString(body)
	sb.WriteString("\n\n")
}

// compact renders v as single-line JSON. Strings pass through unchanged.
func compact(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
