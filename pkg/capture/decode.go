package capture

import (
	"github.com/spf13/cast"
)

// FromMap decodes one loosely-typed capture record, as produced by external
// crawlers exporting JSON, into a DetectionDataPoint. Decoding is tolerant:
// fields with unexpected types are coerced where possible and dropped
// otherwise, and only the known schema keys are traversed, so ad-hoc or
// self-referential structure hanging off a record cannot derail a run.
func FromMap(raw map[string]any) DetectionDataPoint {
	dp := DetectionDataPoint{
		URL:       cast.ToString(raw["url"]),
		Timestamp: cast.ToTime(raw["timestamp"]),
	}

	if hdrs := cast.ToStringMapString(raw["httpHeaders"]); len(hdrs) > 0 {
		dp.HTTPHeaders = hdrs
	}

	for _, entry := range cast.ToSlice(raw["metaTags"]) {
		m, err := cast.ToStringMapE(entry)
		if err != nil {
			continue
		}
		tag := MetaTag{
			Name:     cast.ToString(m["name"]),
			Property: cast.ToString(m["property"]),
			Content:  cast.ToString(m["content"]),
		}
		if tag.Key() == "" {
			continue
		}
		dp.MetaTags = append(dp.MetaTags, tag)
	}

	for _, entry := range cast.ToSlice(raw["scripts"]) {
		switch v := entry.(type) {
		case string:
			dp.Scripts = append(dp.Scripts, Script{Src: v})
		default:
			m, err := cast.ToStringMapE(entry)
			if err != nil {
				continue
			}
			s := Script{
				Src:    cast.ToString(m["src"]),
				Inline: cast.ToString(m["inline"]),
			}
			if s.Src == "" && s.Inline == "" {
				continue
			}
			dp.Scripts = append(dp.Scripts, s)
		}
	}

	if robots, err := cast.ToStringMapE(raw["robotsTxt"]); err == nil {
		dp.RobotsTxt = RobotsTxt{
			HTTPHeaders: cast.ToStringMapString(robots["httpHeaders"]),
			Content:     cast.ToString(robots["content"]),
			StatusCode:  cast.ToInt(robots["statusCode"]),
		}
	}

	for _, entry := range cast.ToSlice(raw["detectionResults"]) {
		m, err := cast.ToStringMapE(entry)
		if err != nil {
			continue
		}
		res := DetectionResult{
			Detector:   cast.ToString(m["detector"]),
			CMS:        cast.ToString(m["cms"]),
			Confidence: cast.ToFloat64(m["confidence"]),
			Version:    cast.ToString(m["version"]),
		}
		dp.DetectionResults = append(dp.DetectionResults, res)
	}

	return dp
}

// SliceFromMaps decodes a whole exported corpus. Entries that are not
// objects are skipped rather than aborting the import.
func SliceFromMaps(raw []any) []DetectionDataPoint {
	out := make([]DetectionDataPoint, 0, len(raw))
	for _, entry := range raw {
		m, err := cast.ToStringMapE(entry)
		if err != nil {
			continue
		}
		out = append(out, FromMap(m))
	}
	return out
}
