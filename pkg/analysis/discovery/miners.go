package discovery

import (
	"regexp"
	"sort"
	"strings"
)

// prefix candidates end at a separator and span 2–12 characters; suffix
// candidates span 2–8 with no separator requirement.
const (
	minPrefixLen = 2
	maxPrefixLen = 12
	minSuffixLen = 2
	maxSuffixLen = 8
	minTokenLen  = 3
)

// shapeTemplates is the fixed regex-shape library. Each template describes
// a naming convention vendors commonly follow; matches with at least two
// member names are reported.
var shapeTemplates = []struct {
	name string
	re   *regexp.Regexp
}{
	{"x-word-word", regexp.MustCompile(`^x-[a-z0-9]+-[a-z0-9]+$`)},
	{"x-word", regexp.MustCompile(`^x-[a-z0-9]+$`)},
	{"word-id", regexp.MustCompile(`^[a-z0-9]+[-_]id$`)},
	{"word-version", regexp.MustCompile(`^[a-z0-9]+[-_]version$`)},
	{"word-status", regexp.MustCompile(`^[a-z0-9-]+[-_]status$`)},
	{"word-cache", regexp.MustCompile(`^[a-z0-9]+[-_]cache(?:[-_][a-z0-9]+)?$`)},
}

// group is a set of signal names sharing one mined trait.
type group struct {
	members map[string]*nameInfo
}

func (g *group) add(name string, info *nameInfo) {
	if g.members == nil {
		g.members = make(map[string]*nameInfo)
	}
	g.members[name] = info
}

// toPattern materializes the group: frequency over the union of member
// sites, correlation as the per-name average, member names as examples.
func (g *group) toPattern(pattern string, typ PatternType, corpusSize int) DiscoveredPattern {
	union := make(map[string]struct{})
	correlationSums := make(map[string]float64)
	names := make([]string, 0, len(g.members))

	for name, info := range g.members {
		names = append(names, name)
		for site := range info.sites {
			union[site] = struct{}{}
		}
		for cms, share := range info.correlation() {
			correlationSums[cms] += share
		}
	}
	sort.Strings(names)

	correlation := make(map[string]float64, len(correlationSums))
	for cms, sum := range correlationSums {
		correlation[cms] = sum / float64(len(g.members))
	}

	sites := make([]string, 0, len(union))
	for site := range union {
		sites = append(sites, site)
	}
	sort.Strings(sites)

	frequency := 0.0
	if corpusSize > 0 {
		frequency = float64(len(union)) / float64(corpusSize)
	}

	return DiscoveredPattern{
		Pattern:        pattern,
		Type:           typ,
		Frequency:      frequency,
		Sites:          sites,
		Examples:       names,
		Confidence:     patternConfidence(len(g.members), frequency),
		CMSCorrelation: correlation,
	}
}

// patternConfidence scores a mined pattern from its member count and site
// coverage. Pure and order-independent so discovery stays idempotent.
func patternConfidence(members int, frequency float64) float64 {
	conf := 0.45 + 0.05*float64(members) + 0.25*frequency
	if conf > 0.95 {
		return 0.95
	}
	return conf
}

// mineAll runs every miner over the collected name space.
func mineAll(names map[string]*nameInfo, corpusSize int) []DiscoveredPattern {
	var out []DiscoveredPattern
	out = append(out, minePrefixes(names, corpusSize)...)
	out = append(out, mineSuffixes(names, corpusSize)...)
	out = append(out, mineTokens(names, corpusSize)...)
	out = append(out, mineShapes(names, corpusSize)...)
	return out
}

// minePrefixes groups names by shared separator-bounded prefixes. A group
// needs at least two distinct names: a prefix observed on one name is just
// that name.
func minePrefixes(names map[string]*nameInfo, corpusSize int) []DiscoveredPattern {
	groups := make(map[string]*group)
	for name, info := range names {
		for i, r := range name {
			if r != '-' && r != '_' {
				continue
			}
			length := i + 1
			if length < minPrefixLen || length > maxPrefixLen {
				continue
			}
			prefix := name[:length]
			g := groups[prefix]
			if g == nil {
				g = &group{}
				groups[prefix] = g
			}
			g.add(name, info)
		}
	}
	return materialize(groups, PatternPrefix, corpusSize, 2, func(key string) string {
		return key + "*"
	})
}

// mineSuffixes groups names by shared suffixes of length 2–8.
func mineSuffixes(names map[string]*nameInfo, corpusSize int) []DiscoveredPattern {
	groups := make(map[string]*group)
	for name, info := range names {
		for length := minSuffixLen; length <= maxSuffixLen; length++ {
			if len(name) <= length {
				break
			}
			suffix := name[len(name)-length:]
			g := groups[suffix]
			if g == nil {
				g = &group{}
				groups[suffix] = g
			}
			g.add(name, info)
		}
	}
	return materialize(groups, PatternSuffix, corpusSize, 2, func(key string) string {
		return "*" + key
	})
}

// mineTokens groups names sharing a token. Tokens come from splitting on
// separators plus raw alphabetic runs of three or more characters, so
// "x-wpengine-cache" and "wpengine_id" meet on "wpengine".
func mineTokens(names map[string]*nameInfo, corpusSize int) []DiscoveredPattern {
	groups := make(map[string]*group)
	for name, info := range names {
		for token := range tokenize(name) {
			g := groups[token]
			if g == nil {
				g = &group{}
				groups[token] = g
			}
			g.add(name, info)
		}
	}
	return materialize(groups, PatternContains, corpusSize, 3, func(key string) string {
		return "*" + key + "*"
	})
}

// mineShapes tests every name against the fixed shape-template library.
func mineShapes(names map[string]*nameInfo, corpusSize int) []DiscoveredPattern {
	groups := make(map[string]*group)
	for name, info := range names {
		for _, tmpl := range shapeTemplates {
			if !tmpl.re.MatchString(name) {
				continue
			}
			g := groups[tmpl.name]
			if g == nil {
				g = &group{}
				groups[tmpl.name] = g
			}
			g.add(name, info)
		}
	}
	return materialize(groups, PatternRegex, corpusSize, 2, func(key string) string {
		return key
	})
}

func materialize(groups map[string]*group, typ PatternType, corpusSize, minMembers int, render func(string) string) []DiscoveredPattern {
	keys := make([]string, 0, len(groups))
	for key, g := range groups {
		if len(g.members) >= minMembers {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]DiscoveredPattern, 0, len(keys))
	for _, key := range keys {
		out = append(out, groups[key].toPattern(render(key), typ, corpusSize))
	}
	return out
}

var alphaRun = regexp.MustCompile(`[a-z]{3,}`)

// tokenize returns the token set for a name: separator-split fields plus
// alphabetic runs of minTokenLen or more.
func tokenize(name string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' ' || r == '\t'
	}) {
		if len(field) >= minTokenLen {
			tokens[field] = struct{}{}
		}
	}
	for _, run := range alphaRun.FindAllString(name, -1) {
		tokens[run] = struct{}{}
	}
	return tokens
}
