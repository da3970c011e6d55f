// Package discovery mines the raw signal-name space for recurring naming
// patterns, independent of whether a signal is already tracked by the
// detector. Its outputs are leads for new detection rules: shared vendor
// prefixes, emerging vendor families, naming drift across time, and signal
// names whose semantics disagree with their observed behavior.
package discovery

// PatternType classifies how a discovered pattern groups names.
type PatternType string

const (
	PatternPrefix   PatternType = "prefix"
	PatternSuffix   PatternType = "suffix"
	PatternContains PatternType = "contains"
	PatternRegex    PatternType = "regex"
)

// DiscoveredPattern is one mined naming pattern with the corpus evidence
// backing it.
type DiscoveredPattern struct {
	Pattern         string             `json:"pattern"`
	Type            PatternType        `json:"type"`
	Frequency       float64            `json:"frequency"`
	Sites           []string           `json:"sites"`
	Examples        []string           `json:"examples"`
	Confidence      float64            `json:"confidence"`
	PotentialVendor string             `json:"potentialVendor,omitempty"`
	CMSCorrelation  map[string]float64 `json:"cmsCorrelation,omitempty"`
}

// EmergingVendorPattern groups discovered patterns attributed to a vendor
// that is not yet in the recognized vendor table.
type EmergingVendorPattern struct {
	Vendor     string              `json:"vendor"`
	Patterns   []DiscoveredPattern `json:"patterns"`
	Confidence float64             `json:"confidence"`
}

// EvolutionKind tags how a signal name changed between the two halves of a
// timestamped corpus.
type EvolutionKind string

const (
	EvolutionVersioning  EvolutionKind = "versioning"
	EvolutionNew         EvolutionKind = "new"
	EvolutionDeprecation EvolutionKind = "deprecation"
)

// PatternEvolution records one observed change in the signal-name space
// over time.
type PatternEvolution struct {
	Kind   EvolutionKind `json:"kind"`
	Base   string        `json:"base"`
	Before string        `json:"before,omitempty"`
	After  string        `json:"after,omitempty"`
	Detail string        `json:"detail"`
}

// AnomalyKind tags the two semantic-anomaly classes.
type AnomalyKind string

const (
	// AnomalyCategoryMismatch flags a name whose keyword-derived category
	// disagrees with the category its observed values imply.
	AnomalyCategoryMismatch AnomalyKind = "category-mismatch"

	// AnomalyVendorMismatch flags a name whose observed values point at a
	// different vendor than the name itself.
	AnomalyVendorMismatch AnomalyKind = "vendor-mismatch"
)

// SemanticAnomaly flags one signal whose name and observed semantics
// disagree.
type SemanticAnomaly struct {
	Signal     string      `json:"signal"`
	Kind       AnomalyKind `json:"kind"`
	Expected   string      `json:"expected"`
	Observed   string      `json:"observed"`
	Confidence float64     `json:"confidence"`
	Detail     string      `json:"detail"`
}

// Result bundles one discovery run's outputs. DiscoveredPatterns is sorted
// by frequency descending and capped; the secondary artifacts are advisory.
type Result struct {
	DiscoveredPatterns []DiscoveredPattern     `json:"discoveredPatterns"`
	EmergingVendors    []EmergingVendorPattern `json:"emergingVendors,omitempty"`
	Evolutions         []PatternEvolution      `json:"evolutions,omitempty"`
	Anomalies          []SemanticAnomaly       `json:"anomalies,omitempty"`
	Insights           []string                `json:"insights,omitempty"`
}
