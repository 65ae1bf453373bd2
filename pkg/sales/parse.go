package sales

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// parseResult is the outcome of one decode attempt: either an object
// payload or the raw text that could not be decoded.
type parseResult struct {
	payload map[string]any
	raw     string
	ok      bool
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// parseObject decodes the first JSON object in raw, tolerating prose
// around it and common syntax slips.
func parseObject(raw string) parseResult {
	res := parseResult{raw: raw}
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return res
	}
	if obj, ok := decodeObject(cleaned); ok {
		return parseResult{payload: obj, raw: raw, ok: true}
	}
	cleaned = trailingComma.ReplaceAllString(cleaned, "$1")
	if obj, ok := decodeObject(cleaned); ok {
		return parseResult{payload: obj, raw: raw, ok: true}
	}
	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return res
	}
	if obj, ok := decodeObject(repaired); ok {
		return parseResult{payload: obj, raw: raw, ok: true}
	}
	return res
}

// extractJSON slices from the first '{' to the last '}'.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func decodeObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}
