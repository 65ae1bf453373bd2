package sales

import (
	"encoding/json"
	"strings"

	"github.com/ujjwalredd/Axiomeer/pkg/history"
)

const schemaBlock = `{
  "summary": "string",
  "final_choice": "string",
  "recommendations": [
    {
      "app_id": "string",
      "rationale": "string",
      "tradeoff": "string"
    }
  ]
}`

func primaryPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("You are a marketplace sales agent. Your job is to recommend the top 3 products for the client.\n\n")
	sb.WriteString("Given:\n")
	sb.WriteString("- The client task\n")
	sb.WriteString("- The marketplace constraints\n")
	sb.WriteString("- A list of candidate products with metadata and scores\n\n")
	sb.WriteString("Return ONLY valid JSON in this schema:\n")
	sb.WriteString(schemaBlock)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Choose up to 3 app_ids from the candidates list, ordered best to worst.\n")
	sb.WriteString("- The final_choice must be one of the recommended app_ids.\n")
	sb.WriteString("- Use ONLY the strings in ALLOWED_APP_IDS for final_choice and recommendation app_id values.\n")
	sb.WriteString("- If none are suitable, set final_choice to \"NO_MATCH\", return an empty recommendations list, and explain why in summary.\n")
	sb.WriteString("- Prefer NO_MATCH if the task asks for specific facts that the candidates are unlikely to provide.\n")
	sb.WriteString("- Use candidate capabilities as the primary signal for domain fit. If the task is about finance and no candidate has a finance capability, return NO_MATCH.\n")
	sb.WriteString("- Prefer candidates whose capabilities overlap with REQUESTED_CAPABILITIES.\n")
	sb.WriteString("- The rationale and tradeoff must be grounded in the provided candidate data.\n")
	sb.WriteString("- Keep summary concise and grounded in the candidate list.\n")
	sb.WriteString("- Do not include any extra keys or text.\n\n")
	writeContext(&sb, req, req.Candidates)
	return sb.String()
}

func strictPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Return ONLY valid JSON for the schema below. No extra text, no markdown, no code fences.\n\n")
	sb.WriteString("SCHEMA:\n")
	sb.WriteString(schemaBlock)
	sb.WriteString("\n\n")
	writeContext(&sb, req, compactCandidates(req.Candidates))
	return sb.String()
}

func noMatchPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("You are a marketplace sales agent. There are no suitable products for the client request.\n\n")
	sb.WriteString("Return ONLY valid JSON in this schema:\n")
	sb.WriteString("{\"message\": \"string\"}\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Do not invent products or data sources.\n")
	sb.WriteString("- Explain briefly why no suitable product exists.\n")
	sb.WriteString("- Suggest what could be relaxed or added to find a match.\n\n")
	section(&sb, "TASK", req.Task)
	section(&sb, "CONSTRAINTS", marshal(req.Constraints))
	section(&sb, "RECENT_HISTORY", marshal(history.Turns(req.History)))
	return sb.String()
}

func writeContext(sb *strings.Builder, req Request, candidates any) {
	caps := req.RequestedCaps
	if caps == nil {
		caps = []string{}
	}
	section(sb, "TASK", req.Task)
	section(sb, "CONSTRAINTS", marshal(req.Constraints))
	section(sb, "REQUESTED_CAPABILITIES", marshal(caps))
	section(sb, "ALLOWED_APP_IDS", marshal(req.allowedIDs()))
	section(sb, "RECENT_HISTORY", marshal(history.Turns(req.History)))
	section(sb, "CANDIDATES", marshal(candidates))
}

func section(sb *strings.Builder, title, body string) {
	sb.WriteString(title)
	sb.WriteString(":\n")
	sb.WriteString(body)
	sb.WriteString("\n\n")
}

func marshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
