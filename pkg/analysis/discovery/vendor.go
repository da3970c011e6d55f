package discovery

import (
	"sort"
	"strings"

	"github.com/cmslens/cmslens/pkg/signals"
)

// inferVendors annotates discovered patterns with a potential vendor, in
// place. Attribution happens one of two ways: the pattern text matches the
// known-vendor keyword table, or (for prefix/contains patterns) the root
// token is long enough and not a common word, in which case the token
// itself names the candidate vendor.
func inferVendors(patterns []DiscoveredPattern) {
	for i := range patterns {
		p := &patterns[i]

		if vendor := signals.VendorForHeader(p.Pattern); vendor != "" {
			p.PotentialVendor = vendor
			continue
		}

		if p.Type != PatternPrefix && p.Type != PatternContains {
			continue
		}
		root := rootToken(p.Pattern)
		if len(root) < minTokenLen || signals.IsCommonWord(root) {
			continue
		}
		p.PotentialVendor = capitalize(root)
	}
}

// rootToken extracts the identifying token from a pattern string: the last
// non-trivial separator-delimited token, with the glob markers stripped.
// "x-sucuri-*" yields "sucuri"; "*litespeed*" yields "litespeed".
func rootToken(pattern string) string {
	trimmed := strings.Trim(pattern, "*")
	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	for i := len(fields) - 1; i >= 0; i-- {
		// "x" and similar shorthand prefixes never identify a vendor.
		if len(fields[i]) >= minTokenLen {
			return strings.ToLower(fields[i])
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// emergingVendors groups discovered patterns by inferred vendor and keeps
// the vendors that are genuinely novel: not resolvable through the known
// vendor table (probed with a synthetic header name) and backed by at least
// two distinct patterns.
func emergingVendors(patterns []DiscoveredPattern) []EmergingVendorPattern {
	byVendor := make(map[string][]DiscoveredPattern)
	for _, p := range patterns {
		if p.PotentialVendor == "" {
			continue
		}
		byVendor[p.PotentialVendor] = append(byVendor[p.PotentialVendor], p)
	}

	vendors := make([]string, 0, len(byVendor))
	for vendor := range byVendor {
		vendors = append(vendors, vendor)
	}
	sort.Strings(vendors)

	var out []EmergingVendorPattern
	for _, vendor := range vendors {
		group := byVendor[vendor]
		if len(group) < 2 {
			continue
		}
		probe := "x-" + strings.ToLower(vendor) + "-id"
		if signals.VendorForHeader(probe) != "" || signals.KnownVendor(vendor) {
			continue
		}
		sum := 0.0
		for _, p := range group {
			sum += p.Confidence
		}
		out = append(out, EmergingVendorPattern{
			Vendor:     vendor,
			Patterns:   group,
			Confidence: sum / float64(len(group)),
		})
	}
	return out
}
