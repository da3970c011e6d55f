// Package capture defines the immutable per-site capture record consumed by
// every analysis component, plus helpers for resolving a capture's effective
// CMS label and for tolerant decoding of externally produced corpora.
package capture

import (
	"math"
	"net/url"
	"strings"
	"time"
)

// UnknownCMS is the label assigned when no detector verdict clears the
// minimum confidence threshold.
const UnknownCMS = "Unknown"

// DefaultMinConfidence is the verdict threshold below which a capture is
// labeled UnknownCMS.
const DefaultMinConfidence = 0.3

// DetectionResult is a single detector verdict for one capture.
type DetectionResult struct {
	Detector   string  `json:"detector"`
	CMS        string  `json:"cms"`
	Confidence float64 `json:"confidence"`
	Version    string  `json:"version,omitempty"`
}

// MetaTag represents one <meta> element observed on a page. Either Name or
// Property identifies the tag; Content carries its value.
type MetaTag struct {
	Name     string `json:"name,omitempty"`
	Property string `json:"property,omitempty"`
	Content  string `json:"content"`
}

// Key returns the signal key for the tag: the lowercased name attribute,
// falling back to the property attribute. Empty if the tag carries neither.
func (m MetaTag) Key() string {
	if k := strings.TrimSpace(m.Name); k != "" {
		return strings.ToLower(k)
	}
	if k := strings.TrimSpace(m.Property); k != "" {
		return strings.ToLower(k)
	}
	return ""
}

// Script is one script reference or inline block observed on a page.
type Script struct {
	Src    string `json:"src,omitempty"`
	Inline string `json:"inline,omitempty"`
}

// RobotsTxt carries the response metadata captured when fetching /robots.txt.
type RobotsTxt struct {
	HTTPHeaders map[string]string `json:"httpHeaders,omitempty"`
	Content     string            `json:"content,omitempty"`
	StatusCode  int               `json:"statusCode,omitempty"`
}

// DetectionDataPoint is one capture of one site. Produced once by the
// crawler/detector pipeline and treated as read-only by every consumer.
type DetectionDataPoint struct {
	URL              string            `json:"url"`
	Timestamp        time.Time         `json:"timestamp"`
	HTTPHeaders      map[string]string `json:"httpHeaders,omitempty"`
	MetaTags         []MetaTag         `json:"metaTags,omitempty"`
	Scripts          []Script          `json:"scripts,omitempty"`
	RobotsTxt        RobotsTxt         `json:"robotsTxt,omitempty"`
	DetectionResults []DetectionResult `json:"detectionResults,omitempty"`
}

// EffectiveCMS resolves the capture's CMS label: the highest-confidence
// verdict at or above minConfidence, normalized through the alias table.
// Verdicts with an empty detector or CMS name, or a NaN confidence, are
// treated as corrupt and skipped. With no usable verdict the label is
// UnknownCMS.
func (d *DetectionDataPoint) EffectiveCMS(minConfidence float64) string {
	best := ""
	bestConf := math.Inf(-1)
	for _, r := range d.DetectionResults {
		if r.Detector == "" || strings.TrimSpace(r.CMS) == "" {
			continue
		}
		if math.IsNaN(r.Confidence) || r.Confidence < minConfidence {
			continue
		}
		if r.Confidence > bestConf {
			best = r.CMS
			bestConf = r.Confidence
		}
	}
	if best == "" {
		return UnknownCMS
	}
	return NormalizeCMS(best)
}

// AllHeaders merges the page headers with the robots.txt response headers
// into one lowercased name→value map. Page headers win on key collisions.
func (d *DetectionDataPoint) AllHeaders() map[string]string {
	merged := make(map[string]string, len(d.HTTPHeaders)+len(d.RobotsTxt.HTTPHeaders))
	for k, v := range d.RobotsTxt.HTTPHeaders {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			merged[k] = v
		}
	}
	for k, v := range d.HTTPHeaders {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			merged[k] = v
		}
	}
	return merged
}

// cmsAliases folds detector verdict spellings into canonical platform names.
// The alias set mirrors the normalization the upstream analysis pipeline
// performs (e.g. "Joomla!" and "Joomla" are the same platform).
var cmsAliases = map[string]string{
	"wordpress":   "WordPress",
	"drupal":      "Drupal",
	"drupal 7":    "Drupal",
	"drupal 8":    "Drupal",
	"joomla":      "Joomla",
	"joomla!":     "Joomla",
	"duda":        "Duda",
	"shopify":     "Shopify",
	"wix":         "Wix",
	"squarespace": "Squarespace",
	"magento":     "Magento",
	"typo3":       "TYPO3",
	"unknown":     UnknownCMS,
}

// NormalizeCMS maps a verdict string onto its canonical platform name.
// Unrecognized names pass through trimmed but otherwise untouched, so new
// platforms reported by detectors keep their spelling.
func NormalizeCMS(name string) string {
	trimmed := strings.TrimSpace(name)
	if canonical, ok := cmsAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// NormalizeURL produces the canonical form used as storage index key:
// lowercased scheme and host, default ports stripped, trailing slash
// removed, fragment dropped. Unparseable input falls back to a trimmed,
// lowercased copy so corrupt URLs still index deterministically.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSuffix(trimmed, "/"))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
