package sales

import (
	"regexp"
	"sort"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeLabel(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// resolver maps model-written identifiers back to candidate ids.
type resolver struct {
	ids   []string
	valid map[string]struct{}
	names map[string]string
}

func newResolver(cands []Candidate) resolver {
	r := resolver{valid: make(map[string]struct{}), names: make(map[string]string)}
	collisions := make(map[string]struct{})
	for _, c := range cands {
		if c.AppID == "" {
			continue
		}
		if _, dup := r.valid[c.AppID]; !dup {
			r.valid[c.AppID] = struct{}{}
			r.ids = append(r.ids, c.AppID)
		}
		key := normalizeLabel(c.Name)
		if key == "" {
			continue
		}
		if prev, ok := r.names[key]; ok && prev != c.AppID {
			collisions[key] = struct{}{}
			continue
		}
		r.names[key] = c.AppID
	}
	for key := range collisions {
		delete(r.names, key)
	}
	sort.Strings(r.ids)
	return r
}

// resolve tries, in order: exact id, case-insensitive id, a single id
// contained in the value, then an unambiguous normalized name.
func (r resolver) resolve(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if _, ok := r.valid[s]; ok {
		return s, true
	}

	lowered := strings.ToLower(s)
	var folded []string
	for _, id := range r.ids {
		if strings.ToLower(id) == lowered {
			folded = append(folded, id)
		}
	}
	if len(folded) == 1 {
		return folded[0], true
	}

	var contained []string
	for _, id := range r.ids {
		if strings.Contains(lowered, strings.ToLower(id)) {
			contained = append(contained, id)
		}
	}
	if len(contained) == 1 {
		return contained[0], true
	}

	if id, ok := r.names[normalizeLabel(s)]; ok {
		return id, true
	}
	return "", false
}

// coerceChoice unwraps a final_choice written as an object or a
// single-element list.
func coerceChoice(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for _, key := range []string{"app_id", "id", "name"} {
			if inner, ok := t[key]; ok {
				return coerceChoice(inner)
			}
		}
		if len(t) == 1 {
			for _, inner := range t {
				return coerceChoice(inner)
			}
		}
		return nil
	case []any:
		if len(t) == 1 {
			return coerceChoice(t[0])
		}
		return nil
	default:
		return v
	}
}

// validate enforces the answer invariants against the candidate set and
// backfills missing rationale or tradeoff text from candidate data.
func validate(payload map[string]any, cands []Candidate) (*Result, error) {
	summary, _ := payload["summary"].(string)
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, protocolErr(CodeInvalidSummary)
	}

	finalChoice, _ := coerceChoice(payload["final_choice"]).(string)
	finalChoice = strings.TrimSpace(finalChoice)

	recs, ok := payload["recommendations"].([]any)
	if !ok {
		if payload["recommendations"] != nil || finalChoice != NoMatch {
			return nil, protocolErr(CodeInvalidRecommendations)
		}
	}

	if finalChoice == NoMatch {
		if len(recs) > 0 {
			return nil, protocolErr(CodeNoMatchWithRecommendations)
		}
		return &Result{Summary: summary, FinalChoice: NoMatch, Recommendations: []Recommendation{}}, nil
	}

	if len(recs) == 0 {
		return nil, protocolErr(CodeMissingRecommendations)
	}
	if len(recs) > 3 {
		return nil, protocolErr(CodeTooManyRecommendations)
	}

	res := newResolver(cands)
	byID := make(map[string]Candidate, len(cands))
	for _, c := range cands {
		byID[c.AppID] = c
	}

	seen := make(map[string]struct{}, len(recs))
	out := make([]Recommendation, 0, len(recs))
	for _, raw := range recs {
		rec, ok := raw.(map[string]any)
		if !ok {
			return nil, protocolErr(CodeInvalidRecommendationEntry)
		}
		id, ok := res.resolve(coerceChoice(rec["app_id"]))
		if !ok {
			return nil, protocolErr(CodeInvalidAppID)
		}
		if _, dup := seen[id]; dup {
			return nil, protocolErr(CodeDuplicateAppID)
		}
		cand := byID[id]

		rationale, _ := rec["rationale"].(string)
		if strings.TrimSpace(rationale) == "" {
			rationale = cand.rationale()
		}
		if strings.TrimSpace(rationale) == "" {
			return nil, protocolErr(CodeInvalidRationale)
		}
		tradeoff, _ := rec["tradeoff"].(string)
		if strings.TrimSpace(tradeoff) == "" {
			tradeoff = cand.tradeoff()
		}
		if strings.TrimSpace(tradeoff) == "" {
			return nil, protocolErr(CodeInvalidTradeoff)
		}

		seen[id] = struct{}{}
		out = append(out, Recommendation{
			AppID:     id,
			Rationale: strings.TrimSpace(rationale),
			Tradeoff:  strings.TrimSpace(tradeoff),
		})
	}

	final, ok := res.resolve(finalChoice)
	if _, picked := seen[final]; !ok || !picked {
		final = out[0].AppID
	}
	return &Result{Summary: summary, FinalChoice: final, Recommendations: out}, nil
}
