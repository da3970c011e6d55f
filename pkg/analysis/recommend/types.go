// Package recommend combines bias-corrected signal statistics, raw corpus
// frequencies, and the static generic-signal allowlists into actionable
// recommendations: which signals to stop using, which to start using, and
// which existing rules fire too broadly to mean anything.
package recommend

import "github.com/cmslens/cmslens/pkg/analysis/bias"

// Recommendation is one actionable finding. Reason always cites the
// driving statistic; consumers parse the CMS name and percentage out of it.
type Recommendation struct {
	Pattern    string          `json:"pattern"`
	Reason     string          `json:"reason"`
	Frequency  float64         `json:"frequency"`
	Diversity  int             `json:"diversity"`
	Confidence bias.Confidence `json:"confidence"`
}

// LearnSurface says what the live detector's generic filter list should
// track.
type LearnSurface struct {
	// CurrentlyFiltered lists the signals already on the static allowlist.
	// Derived from the allowlist alone, so it is populated even for an
	// empty corpus.
	CurrentlyFiltered []string `json:"currentlyFiltered"`

	// RecommendToFilter lists unlisted signals that look like noise:
	// frequent, diverse values, no discriminative power.
	RecommendToFilter []Recommendation `json:"recommendToFilter"`

	// RecommendToKeep lists unlisted signals worth tracking: dominant
	// single-CMS correlation or high bias-corrected specificity.
	// Platform-specific entries always precede the rest.
	RecommendToKeep []Recommendation `json:"recommendToKeep"`
}

// DetectSurface proposes detector rule changes.
type DetectSurface struct {
	// NewPatternOpportunities are signal/value pairs correlating strongly
	// with a single CMS: candidates for new detection rules.
	NewPatternOpportunities []Recommendation `json:"newPatternOpportunities"`

	// PatternsToRefine are signals that fire broadly without
	// discriminating CMS.
	PatternsToRefine []Recommendation `json:"patternsToRefine"`
}

// GroundTruthSurface suggests meta-tag detection rules backed by corpus
// evidence.
type GroundTruthSurface struct {
	PotentialNewRules []Recommendation `json:"potentialNewRules"`
}

// Recommendations is the engine's complete output for one corpus snapshot.
type Recommendations struct {
	Learn       LearnSurface       `json:"learn"`
	Detect      DetectSurface      `json:"detect"`
	GroundTruth GroundTruthSurface `json:"groundTruth"`
}
