package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cmslens/cmslens/pkg/signals"
)

// valueCategoryMarkers maps observed-value fragments to the category the
// value's semantics imply. A header whose values look like cache verdicts
// is a caching header no matter what its name claims.
var valueCategoryMarkers = []struct {
	category signals.Category
	markers  []string
}{
	{signals.CategoryCache, []string{"hit", "miss", "stale", "bypass", "max-age", "no-cache", "no-store", "revalidate"}},
	{signals.CategorySecurity, []string{"default-src", "script-src", "nosniff", "sameorigin", "deny", "includesubdomains", "mode=block"}},
	{signals.CategoryAnalytics, []string{"ua-", "ga1.", "gtm-", "_ga", "utm_"}},
	{signals.CategoryCMS, []string{"wordpress", "wp-", "drupal", "joomla"}},
	{signals.CategoryCommerce, []string{"cart", "checkout", "shopify"}},
}

// semanticCategory classifies a signal by its observed values. Returns the
// category the plurality of matching values implies, plus the fraction of
// values that matched it (the anomaly confidence).
func semanticCategory(values []string) (signals.Category, float64) {
	if len(values) == 0 {
		return signals.CategoryUnknown, 0
	}

	counts := make(map[signals.Category]int)
	for _, value := range values {
		if cat := categoryOfValue(value); cat != signals.CategoryUnknown {
			counts[cat]++
		}
	}

	best := signals.CategoryUnknown
	bestCount := 0
	categories := make([]signals.Category, 0, len(counts))
	for cat := range counts {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	for _, cat := range categories {
		if counts[cat] > bestCount {
			best = cat
			bestCount = counts[cat]
		}
	}
	if best == signals.CategoryUnknown {
		return best, 0
	}
	return best, float64(bestCount) / float64(len(values))
}

// categoryOfValue returns the first marker group a value matches.
func categoryOfValue(value string) signals.Category {
	lowered := strings.ToLower(value)
	for _, group := range valueCategoryMarkers {
		for _, marker := range group.markers {
			if strings.Contains(lowered, marker) {
				return group.category
			}
		}
	}
	return signals.CategoryUnknown
}

// detectAnomalies flags signals whose name and observed semantics disagree.
// Only signals above the frequency floor are examined: an anomaly on a
// one-off header is noise, not insight.
func detectAnomalies(names map[string]*nameInfo, corpusSize int, minFrequency float64) []SemanticAnomaly {
	if corpusSize == 0 {
		return nil
	}

	signalNames := make([]string, 0, len(names))
	for name := range names {
		signalNames = append(signalNames, name)
	}
	sort.Strings(signalNames)

	var out []SemanticAnomaly
	for _, name := range signalNames {
		info := names[name]
		frequency := float64(len(info.sites)) / float64(corpusSize)
		if frequency < minFrequency {
			continue
		}

		expected := signals.ExpectedCategory(name)
		observed, confidence := semanticCategory(info.values)
		if expected != signals.CategoryUnknown && observed != signals.CategoryUnknown && expected != observed {
			out = append(out, SemanticAnomaly{
				Signal:     name,
				Kind:       AnomalyCategoryMismatch,
				Expected:   string(expected),
				Observed:   string(observed),
				Confidence: confidence,
				Detail: fmt.Sprintf("%s is named like a %s signal but its values read as %s",
					name, expected, observed),
			})
		}

		nameVendor := signals.VendorForHeader(name)
		valueVendor := signals.VendorInText(strings.Join(info.values, " "))
		if nameVendor != "" && valueVendor != "" && nameVendor != valueVendor {
			out = append(out, SemanticAnomaly{
				Signal:     name,
				Kind:       AnomalyVendorMismatch,
				Expected:   nameVendor,
				Observed:   valueVendor,
				Confidence: frequency,
				Detail: fmt.Sprintf("%s names %s but its values point at %s",
					name, nameVendor, valueVendor),
			})
		}
	}
	return out
}
