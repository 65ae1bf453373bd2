// Package evidence checks provider payloads against the minimal contract
// the marketplace promises its clients and grades how trustworthy they look.
package evidence

import (
	"fmt"
	"strings"
)

// Validation messages.
const (
	MsgNotObject        = "Provider output must be a JSON object."
	MsgCitationsMissing = "Citations required but missing or invalid. Expected non-empty list field: citations: [str]."
	MsgTimestampMissing = "Citations required but retrieved_at timestamp is missing."
)

// Validate returns the contract violations in payload. An empty result
// means the payload is acceptable.
func Validate(payload any, requireCitations bool) []string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return []string{MsgNotObject}
	}
	var errs []string
	if requireCitations {
		if _, ok := citations(obj); !ok {
			errs = append(errs, MsgCitationsMissing)
		}
		if ts, _ := obj["retrieved_at"].(string); strings.TrimSpace(ts) == "" {
			errs = append(errs, MsgTimestampMissing)
		}
	}
	return errs
}

// citations returns the citation list when it is a non-empty list of
// non-blank strings.
func citations(obj map[string]any) ([]string, bool) {
	raw, ok := obj["citations"].([]any)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Quality is a coarse evidence grade.
type Quality string

const (
	QualityHigh Quality = "HIGH"
	QualityLow  Quality = "LOW"
)

var mockMarkers = map[string]struct{}{"mock": {}, "simulated": {}, "fake": {}, "test": {}}

// Assess grades payload without consulting any model.
func Assess(payload any) (Quality, []string) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return QualityLow, []string{"Evidence is not a JSON object."}
	}

	if marker := strings.ToLower(stringify(obj["quality"])); marker != "" {
		if _, mock := mockMarkers[marker]; mock {
			return QualityLow, []string{fmt.Sprintf("Provider marked quality=%s.", marker)}
		}
	}

	var reasons []string
	answer := strings.ToLower(stringify(obj["answer"]))
	if strings.Contains(answer, "mock data") || strings.Contains(answer, "simulated") || strings.Contains(answer, "dummy") {
		reasons = append(reasons, "Answer text indicates mock/simulated data.")
	}
	if list, ok := obj["citations"].([]any); !ok || len(list) == 0 {
		reasons = append(reasons, "No citations found.")
	}
	if len(reasons) > 0 {
		return QualityLow, reasons
	}
	return QualityHigh, []string{"Evidence appears non-mock and contains citations."}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// Provenance describes where a successful answer came from.
type Provenance struct {
	Sources     []string `json:"sources"`
	RetrievedAt string   `json:"retrieved_at"`
	Notes       []string `json:"notes"`
}

// ProvenanceFrom extracts sources and retrieval time from payload.
func ProvenanceFrom(payload any) Provenance {
	p := Provenance{Sources: []string{}, Notes: []string{}}
	obj, ok := payload.(map[string]any)
	if !ok {
		return p
	}
	if raw, ok := obj["citations"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				p.Sources = append(p.Sources, s)
			}
		}
	}
	p.RetrievedAt, _ = obj["retrieved_at"].(string)
	return p
}
