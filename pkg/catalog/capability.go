package catalog

import (
	"fmt"
	"strings"
)

// Capability is a tag from the closed capability vocabulary.
type Capability string

const (
	CapWeather   Capability = "weather"
	CapFinance   Capability = "finance"
	CapSearch    Capability = "search"
	CapRealtime  Capability = "realtime"
	CapCitations Capability = "citations"
	CapMath      Capability = "math"
	CapCoding    Capability = "coding"
	CapDocs      Capability = "docs"
	CapSummarize Capability = "summarize"
	CapTranslate Capability = "translate"
)

// Vocabulary lists every allowed capability in canonical order.
var Vocabulary = []Capability{
	CapWeather,
	CapFinance,
	CapSearch,
	CapRealtime,
	CapCitations,
	CapMath,
	CapCoding,
	CapDocs,
	CapSummarize,
	CapTranslate,
}

var vocabularySet = func() map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(Vocabulary))
	for _, c := range Vocabulary {
		set[c] = struct{}{}
	}
	return set
}()

// Valid reports whether c is part of the vocabulary.
func (c Capability) Valid() bool {
	_, ok := vocabularySet[c]
	return ok
}

// ParseCapability normalizes s and checks it against the vocabulary.
func ParseCapability(s string) (Capability, bool) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// ParseCapabilities lowercases, deduplicates and validates raw tags,
// keeping first-seen order. Unknown tags produce an error naming them.
func ParseCapabilities(raw []string) ([]Capability, error) {
	out := make([]Capability, 0, len(raw))
	seen := make(map[Capability]struct{}, len(raw))
	var unknown []string
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		c, ok := ParseCapability(s)
		if !ok {
			unknown = append(unknown, s)
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(unknown) > 0 {
		return out, fmt.Errorf("unknown capabilities: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// FilterCapabilities keeps only vocabulary members, dropping anything else.
func FilterCapabilities(raw []string) []Capability {
	out := make([]Capability, 0, len(raw))
	seen := make(map[Capability]struct{}, len(raw))
	for _, s := range raw {
		c, ok := ParseCapability(s)
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Strings converts capabilities to plain strings.
func Strings(caps []Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
