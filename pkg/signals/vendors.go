package signals

import "strings"

// Category is the coarse functional classification inferred from a signal
// name. Used by the discovery layer to flag names whose semantics disagree
// with their observed category.
type Category string

const (
	CategoryCache     Category = "caching"
	CategorySecurity  Category = "security"
	CategoryAnalytics Category = "analytics"
	CategoryCMS       Category = "cms"
	CategoryCommerce  Category = "ecommerce"
	CategoryUnknown   Category = "unknown"
)

// knownVendors maps a keyword that may occur inside a signal name to the
// vendor it identifies. Matching is substring-based and case-insensitive.
var knownVendors = map[string]string{
	"cloudflare":  "Cloudflare",
	"cloudfront":  "Amazon CloudFront",
	"fastly":      "Fastly",
	"akamai":      "Akamai",
	"aws":         "Amazon Web Services",
	"amz":         "Amazon Web Services",
	"azure":       "Microsoft Azure",
	"google":      "Google",
	"gstatic":     "Google",
	"varnish":     "Varnish",
	"nginx":       "Nginx",
	"apache":      "Apache",
	"iis":         "Microsoft IIS",
	"wordpress":   "WordPress",
	"wp":          "WordPress",
	"drupal":      "Drupal",
	"joomla":      "Joomla",
	"duda":        "Duda",
	"dm":          "Duda",
	"shopify":     "Shopify",
	"wix":         "Wix",
	"squarespace": "Squarespace",
	"magento":     "Magento",
	"typo3":       "TYPO3",
	"hubspot":     "HubSpot",
	"sucuri":      "Sucuri",
	"incapsula":   "Imperva Incapsula",
	"litespeed":   "LiteSpeed",
	"netlify":     "Netlify",
	"vercel":      "Vercel",
}

// commonWords is the denylist of root tokens too generic to attribute to a
// vendor during pattern discovery.
var commonWords = map[string]struct{}{
	"content":  {},
	"cache":    {},
	"request":  {},
	"response": {},
	"session":  {},
	"user":     {},
	"api":      {},
	"data":     {},
	"version":  {},
	"total":    {},
}

// VendorForHeader looks up the vendor a signal name belongs to via the
// known-vendor keyword table. Returns "" when no keyword matches.
func VendorForHeader(name string) string {
	lowered := strings.ToLower(name)
	// Longest keyword wins so "cloudfront" is not shadowed by shorter
	// overlapping keywords.
	best := ""
	bestLen := 0
	for keyword, vendor := range knownVendors {
		if len(keyword) > bestLen && containsToken(lowered, keyword) {
			best = vendor
			bestLen = len(keyword)
		}
	}
	return best
}

// VendorInText scans free-form text (typically an observed header value)
// for known-vendor keywords. Unlike VendorForHeader, short keywords are not
// token-bounded here because values concatenate freely.
func VendorInText(text string) string {
	lowered := strings.ToLower(text)
	best := ""
	bestLen := 0
	for keyword, vendor := range knownVendors {
		if len(keyword) < 4 {
			continue
		}
		if len(keyword) > bestLen && strings.Contains(lowered, keyword) {
			best = vendor
			bestLen = len(keyword)
		}
	}
	return best
}

// KnownVendor reports whether the vendor name is already in the recognized
// vendor table. The discovery layer uses it to decide whether an inferred
// vendor is genuinely emerging.
func KnownVendor(vendor string) bool {
	lowered := strings.ToLower(vendor)
	for _, v := range knownVendors {
		if strings.ToLower(v) == lowered {
			return true
		}
	}
	_, ok := knownVendors[lowered]
	return ok
}

// IsCommonWord reports whether the token is on the vendor-inference
// denylist.
func IsCommonWord(token string) bool {
	_, ok := commonWords[strings.ToLower(token)]
	return ok
}

// containsToken matches keyword as a separator-bounded token inside name,
// falling back to a plain substring match for keywords of 4+ characters.
// Short keywords ("wp", "dm") require token boundaries to avoid firing
// inside unrelated words.
func containsToken(name, keyword string) bool {
	if len(keyword) >= 4 {
		return strings.Contains(name, keyword)
	}
	for _, tok := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ':' || r == ' '
	}) {
		if tok == keyword {
			return true
		}
	}
	return false
}

// categoryKeywords drives ExpectedCategory. Order matters: the first
// matching group wins, so CMS markers take precedence over generic words.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryCMS, []string{"wp", "wordpress", "drupal", "joomla", "generator"}},
	{CategoryCommerce, []string{"shop", "commerce", "cart", "checkout"}},
	{CategorySecurity, []string{"security", "csp", "hsts", "xss", "frame-options"}},
	{CategoryAnalytics, []string{"analytics", "tracking", "gtm", "pixel"}},
	{CategoryCache, []string{"cache", "age", "expires", "etag"}},
}

// ExpectedCategory infers the functional category a signal name claims to
// belong to, from simple keyword heuristics.
func ExpectedCategory(name string) Category {
	lowered := strings.ToLower(name)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if containsToken(lowered, kw) {
				return group.category
			}
		}
	}
	return CategoryUnknown
}
