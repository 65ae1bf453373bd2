package router

import (
	"fmt"
	"strings"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
)

// explain builds the "why" lines for a ranked candidate. It always yields
// between three and five lines.
func explain(req Request, c Candidate, s Scores) []string {
	why := make([]string, 0, 5)

	if len(req.RequiredCapabilities) > 0 {
		covered, missing := splitCoverage(req.RequiredCapabilities, c.Entry)
		line := fmt.Sprintf("Capability match: %.2f (covers %s)", s.Capability, list(covered))
		if len(missing) > 0 {
			line += fmt.Sprintf("; missing: %s", list(missing))
		}
		why = append(why, line)
	} else {
		why = append(why, "No required capabilities specified; not penalized on capability coverage.")
	}

	if notes := constraintNotes(req.Constraints, c.Entry); notes != "" {
		why = append(why, notes)
	}

	why = append(why,
		fmt.Sprintf("Trust score: %.2f; relevance: %.2f", s.Trust, s.Relevance),
		fmt.Sprintf("Estimated latency: %dms", c.Entry.LatencyEstMs),
		fmt.Sprintf("Estimated cost: $%.4f", c.Entry.CostEstUSD),
	)
	return why
}

func constraintNotes(c Constraints, e catalog.Entry) string {
	var parts []string
	if c.Freshness != "" {
		parts = append(parts, fmt.Sprintf("Freshness matches requirement: %s", e.Freshness))
	}
	if c.CitationsRequired {
		parts = append(parts, "supports citations/provenance: yes")
	}
	if c.MaxLatencyMs != nil {
		parts = append(parts, fmt.Sprintf("within latency budget of %dms", *c.MaxLatencyMs))
	}
	if c.MaxCostUSD != nil {
		parts = append(parts, fmt.Sprintf("within cost budget of $%.4f", *c.MaxCostUSD))
	}
	return strings.Join(parts, "; ")
}

func splitCoverage(required []catalog.Capability, e catalog.Entry) (covered, missing []string) {
	for _, c := range required {
		if e.HasCapability(c) {
			covered = append(covered, string(c))
		} else {
			missing = append(missing, string(c))
		}
	}
	return covered, missing
}

func list(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
