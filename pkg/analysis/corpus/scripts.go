package corpus

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/cmslens/cmslens/pkg/capture"
)

// ExtractedScript is one script-derived signal: a namespaced pattern plus
// the raw fragment it was extracted from.
type ExtractedScript struct {
	Pattern string
	Example string
}

// libraryFile matches a script filename and captures the library base name,
// stripping version suffixes and minification markers. "jquery-3.6.0.min.js"
// yields "jquery".
var libraryFile = regexp.MustCompile(`(?i)^([a-z][a-z0-9.]*?)(?:[-._]v?\d[\w.]*)?(?:[-.]min)?\.js$`)

// pathSegments a script src may carry that identify a platform directory
// layout. Checked against each path segment verbatim.
var significantSegments = map[string]struct{}{
	"wp-content":  {},
	"wp-includes": {},
	"sites":       {},
	"core":        {},
	"media":       {},
	"templates":   {},
	"modules":     {},
	"components":  {},
	"cdn-cgi":     {},
	"_static":     {},
	"assets":      {},
}

// inlineTokens are globals and calls whose presence in inline script text is
// platform or vendor evidence.
var inlineTokens = []string{
	"wp-emoji",
	"wp.i18n",
	"Drupal.settings",
	"drupalSettings",
	"Joomla.JText",
	"joomla-script-options",
	"window.Parameters",
	"dmAPI",
	"Shopify.shop",
	"Squarespace",
	"wixBiSession",
	"gtag(",
	"ga(",
	"dataLayer",
	"fbq(",
}

// ExtractScriptPatterns applies the fixed extraction heuristics to one
// script reference. The heuristics are intentionally static: aggregation
// must produce identical patterns for identical input across runs.
func ExtractScriptPatterns(s capture.Script) []ExtractedScript {
	var out []ExtractedScript

	if src := strings.TrimSpace(s.Src); src != "" {
		out = append(out, extractFromSrc(src)...)
	}
	if inline := s.Inline; inline != "" {
		for _, token := range inlineTokens {
			if strings.Contains(inline, token) {
				out = append(out, ExtractedScript{
					Pattern: "inline:" + strings.ToLower(strings.TrimSuffix(token, "(")),
					Example: snippetAround(inline, token),
				})
			}
		}
	}
	return out
}

func extractFromSrc(src string) []ExtractedScript {
	var out []ExtractedScript

	parsed, err := url.Parse(src)
	path := src
	if err == nil && parsed.Path != "" {
		path = parsed.Path
	}

	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if _, ok := significantSegments[strings.ToLower(seg)]; ok {
			out = append(out, ExtractedScript{
				Pattern: "path:" + strings.ToLower(seg),
				Example: src,
			})
		}
	}

	if len(segments) > 0 {
		file := segments[len(segments)-1]
		if m := libraryFile.FindStringSubmatch(file); m != nil {
			out = append(out, ExtractedScript{
				Pattern: "lib:" + strings.ToLower(m[1]),
				Example: src,
			})
		}
	}
	return out
}

// snippetAround returns a short window of inline text surrounding the token
// so examples stay readable.
func snippetAround(inline, token string) string {
	idx := strings.Index(inline, token)
	if idx < 0 {
		return token
	}
	start := idx - 20
	if start < 0 {
		start = 0
	}
	end := idx + len(token) + 20
	if end > len(inline) {
		end = len(inline)
	}
	return strings.TrimSpace(inline[start:end])
}
