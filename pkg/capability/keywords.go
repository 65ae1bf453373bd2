package capability

import (
	"strings"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
)

// keywordTable maps each capability to the substrings that imply it.
// Order follows catalog.Vocabulary so heuristic output is deterministic.
var keywordTable = []struct {
	capability catalog.Capability
	triggers   []string
}{
	{catalog.CapWeather, []string{"weather", "forecast", "temperature", "rain", "snow", "humidity", "wind"}},
	{catalog.CapFinance, []string{"stock", "price", "market", "finance", "inflation", "cpi", "crypto", "currency", "exchange rate"}},
	{catalog.CapSearch, []string{"search", "find", "look up"}},
	{catalog.CapRealtime, []string{"today", "now", "current", "latest", "live"}},
	{catalog.CapCitations, []string{"cite", "citation", "source", "link", "reference"}},
	{catalog.CapMath, []string{"calculate", "compute", "math", "equation", "derivative", "integral", "solve"}},
	{catalog.CapCoding, []string{"code", "python", "bug", "function", "program", "debug", "javascript"}},
	{catalog.CapDocs, []string{"documentation", "docs", "api", "manual"}},
	{catalog.CapSummarize, []string{"summarize", "summary", "tldr"}},
	{catalog.CapTranslate, []string{"translate", "translation", "spanish"}},
}

// Heuristic derives capabilities from keyword matches. It is pure and
// never consults a model.
func Heuristic(task string, forceCitations bool) []catalog.Capability {
	lower := strings.ToLower(task)
	out := make([]catalog.Capability, 0, 4)
	for _, row := range keywordTable {
		for _, trig := range row.triggers {
			if strings.Contains(lower, trig) {
				out = append(out, row.capability)
				break
			}
		}
	}
	if forceCitations {
		out = withCitations(out)
	}
	return out
}

func withCitations(caps []catalog.Capability) []catalog.Capability {
	for _, c := range caps {
		if c == catalog.CapCitations {
			return caps
		}
	}
	return append(caps, catalog.CapCitations)
}
