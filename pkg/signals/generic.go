package signals

// Built-in generic-signal allowlists. A generic signal is one that appears
// across platforms regardless of CMS (transport metadata, caching, standard
// SEO tags) and therefore carries no identification value. The
// recommendation engine never proposes keeping or filtering a signal that is
// already on these lists.

var genericHTTPHeaders = []string{
	"accept-ranges",
	"age",
	"cache-control",
	"connection",
	"content-encoding",
	"content-language",
	"content-length",
	"content-security-policy",
	"content-type",
	"date",
	"etag",
	"expires",
	"keep-alive",
	"last-modified",
	"pragma",
	"referrer-policy",
	"server",
	"set-cookie",
	"transfer-encoding",
	"vary",
	"via",
	"x-content-type-options",
	"x-frame-options",
	"x-xss-protection",
}

var genericMetaTags = []string{
	"author",
	"charset",
	"description",
	"format-detection",
	"google-site-verification",
	"keywords",
	"msapplication-tilecolor",
	"og:description",
	"og:image",
	"og:locale",
	"og:site_name",
	"og:title",
	"og:type",
	"og:url",
	"referrer",
	"robots",
	"theme-color",
	"twitter:card",
	"twitter:description",
	"twitter:image",
	"twitter:title",
	"viewport",
}

// GenericHTTPHeaders returns the built-in HTTP header allowlist.
func GenericHTTPHeaders() *Set { return NewSet(genericHTTPHeaders...) }

// GenericMetaTags returns the built-in meta tag allowlist.
func GenericMetaTags() *Set { return NewSet(genericMetaTags...) }
