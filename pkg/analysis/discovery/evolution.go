package discovery

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/cmslens/cmslens/pkg/capture"
)

// versionedName captures the `base-vN` naming convention vendors use when
// they revise a header scheme.
var versionedName = regexp.MustCompile(`^([a-z0-9][a-z0-9_.-]*?)[-_]v(\d+(?:\.\d+)*)$`)

// detectEvolution splits a timestamped corpus chronologically in half and
// compares the signal-name sets of the two halves. It reports version
// migrations (same base, changed version suffix), newly appearing names,
// and disappearing names. Corpora with fewer than minEvolutionPoints
// timestamped captures produce nothing: one noisy crawl would otherwise
// read as churn.
func detectEvolution(dataPoints []capture.DetectionDataPoint) []PatternEvolution {
	timestamped := make([]capture.DetectionDataPoint, 0, len(dataPoints))
	for _, dp := range dataPoints {
		if !dp.Timestamp.IsZero() && dp.URL != "" {
			timestamped = append(timestamped, dp)
		}
	}
	if len(timestamped) < minEvolutionPoints {
		return nil
	}

	sort.SliceStable(timestamped, func(i, j int) bool {
		return timestamped[i].Timestamp.Before(timestamped[j].Timestamp)
	})

	mid := len(timestamped) / 2
	early := nameSet(timestamped[:mid])
	late := nameSet(timestamped[mid:])

	var out []PatternEvolution
	out = append(out, versionMigrations(early, late)...)
	out = append(out, appearances(early, late)...)
	out = append(out, disappearances(early, late)...)
	return out
}

func nameSet(dataPoints []capture.DetectionDataPoint) map[string]struct{} {
	names := make(map[string]struct{})
	for i := range dataPoints {
		for name := range dataPoints[i].AllHeaders() {
			names[name] = struct{}{}
		}
	}
	return names
}

// versionMigrations finds bases whose version suffix differs between the
// two halves. The semver comparison distinguishes upgrades from rollbacks
// in the detail text; unparseable version strings still count as a
// migration, just without direction.
func versionMigrations(early, late map[string]struct{}) []PatternEvolution {
	earlyVersions := versionsByBase(early)
	lateVersions := versionsByBase(late)

	bases := make([]string, 0, len(earlyVersions))
	for base := range earlyVersions {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	var out []PatternEvolution
	for _, base := range bases {
		before := earlyVersions[base]
		after, ok := lateVersions[base]
		if !ok || before == after {
			continue
		}

		direction := "changed"
		if bv, err1 := semver.NewVersion(before); err1 == nil {
			if av, err2 := semver.NewVersion(after); err2 == nil {
				if av.GreaterThan(bv) {
					direction = "upgraded"
				} else if av.LessThan(bv) {
					direction = "rolled back"
				}
			}
		}

		out = append(out, PatternEvolution{
			Kind:   EvolutionVersioning,
			Base:   base,
			Before: fmt.Sprintf("%s-v%s", base, before),
			After:  fmt.Sprintf("%s-v%s", base, after),
			Detail: fmt.Sprintf("%s %s from v%s to v%s", base, direction, before, after),
		})
	}
	return out
}

// versionsByBase maps each versioned base name to its highest version in
// the set.
func versionsByBase(names map[string]struct{}) map[string]string {
	versions := make(map[string]string)
	for name := range names {
		m := versionedName.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		base, ver := m[1], m[2]
		current, ok := versions[base]
		if !ok {
			versions[base] = ver
			continue
		}
		cv, err1 := semver.NewVersion(current)
		nv, err2 := semver.NewVersion(ver)
		if err1 == nil && err2 == nil && nv.GreaterThan(cv) {
			versions[base] = ver
		}
	}
	return versions
}

func appearances(early, late map[string]struct{}) []PatternEvolution {
	var names []string
	for name := range late {
		if _, ok := early[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]PatternEvolution, 0, len(names))
	for _, name := range names {
		out = append(out, PatternEvolution{
			Kind:   EvolutionNew,
			Base:   name,
			After:  name,
			Detail: fmt.Sprintf("%s appeared in the later half of the corpus", name),
		})
	}
	return out
}

func disappearances(early, late map[string]struct{}) []PatternEvolution {
	var names []string
	for name := range early {
		if _, ok := late[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]PatternEvolution, 0, len(names))
	for _, name := range names {
		out = append(out, PatternEvolution{
			Kind:   EvolutionDeprecation,
			Base:   name,
			Before: name,
			Detail: fmt.Sprintf("%s disappeared from the later half of the corpus", name),
		})
	}
	return out
}
