package discovery

import "fmt"

// highAnomalyConfidence is the floor for counting an anomaly into the
// insight summary.
const highAnomalyConfidence = 0.7

// buildInsights summarizes the single strongest finding per category as
// advisory text. Insights feed reports, never further computation.
func buildInsights(r Result) []string {
	var insights []string

	if len(r.DiscoveredPatterns) > 0 {
		top := r.DiscoveredPatterns[0]
		insights = append(insights, fmt.Sprintf(
			"strongest discovered pattern: %q (%s) on %.0f%% of sites across %d names",
			top.Pattern, top.Type, top.Frequency*100, len(top.Examples)))
	}

	if len(r.EmergingVendors) > 0 {
		top := r.EmergingVendors[0]
		for _, candidate := range r.EmergingVendors[1:] {
			if len(candidate.Patterns) > len(top.Patterns) {
				top = candidate
			}
		}
		insights = append(insights, fmt.Sprintf(
			"emerging vendor candidate: %s with %d distinct naming patterns",
			top.Vendor, len(top.Patterns)))
	}

	versioning := 0
	for _, evo := range r.Evolutions {
		if evo.Kind == EvolutionVersioning {
			versioning++
		}
	}
	if versioning > 0 {
		insights = append(insights, fmt.Sprintf(
			"%d signal naming scheme(s) changed version across the corpus timespan", versioning))
	}

	confident := 0
	for _, anomaly := range r.Anomalies {
		if anomaly.Confidence >= highAnomalyConfidence {
			confident++
		}
	}
	if confident > 0 {
		insights = append(insights, fmt.Sprintf(
			"%d signal(s) show high-confidence semantic anomalies", confident))
	}

	return insights
}
