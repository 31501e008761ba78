// Package ancestor implements AncestorSelector (spec §4.E): a greedy
// weighted set-cover that reduces path-finding's candidate gamete pool to
// at most maxAncestors gametes per sample, chosen from the coverage each
// gamete's haplotype provides across a sample's ReadMappingCounts.
package ancestor

import (
	"sort"

	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/readmap"
)

// Options configures the selector (spec §4.E, §6's useLikelyAncestors /
// maxAncestors / minCoverage).
type Options struct {
	MaxAncestors int
	MinCoverage  float64 // default 1.0
}

// DefaultOptions requests full coverage with no cap.
var DefaultOptions = Options{MaxAncestors: 0, MinCoverage: 1.0}

// Pick is one entry of the selector's output: the gamete chosen, the
// number of new read observations it accounted for when picked, and the
// cumulative coverage fraction after the pick.
type Pick struct {
	Gamete             graph.SampleGamete
	IncrementalReads   int
	CumulativeCoverage float64
}

// Select runs the greedy weighted set-cover of spec §4.E over candidates,
// against the sample's ReadMappingCounts in counts, using g to resolve
// each candidate's haplotype at each range. Candidates with no haplotype
// at a given range simply contribute nothing there.
//
// If opts.MaxAncestors <= 0, all candidates remain eligible (the cap
// only stops early, per spec.md §9's minGametesPerRange=0 convention of
// "0 means no filtering" applied analogously here).
func Select(g *graph.Graph, counts *readmap.Counts, candidates []graph.SampleGamete, opts Options) []Pick {
	type obs struct {
		rangeID graph.RangeID
		set     readmap.HapSet
		count   int
	}
	var observations []obs
	totalCoverable := 0
	for _, r := range counts.Ranges() {
		rc := counts.Range(r)
		for _, s := range rc.Sets() {
			c := rc.Count(s)
			observations = append(observations, obs{rangeID: r, set: s, count: c})
			totalCoverable += c
		}
	}

	// hapAt[gamete][rangeID] = hapId, precomputed once.
	hapAt := make(map[graph.SampleGamete]map[graph.RangeID]string, len(candidates))
	for _, cand := range candidates {
		m := make(map[graph.RangeID]string)
		for _, r := range counts.Ranges() {
			if hapID, ok := g.SampleToHapID(r, cand); ok {
				m[r] = hapID
			}
		}
		hapAt[cand] = m
	}

	covered := make([]bool, len(observations))
	var picks []Pick
	cumulative := 0

	remaining := append([]graph.SampleGamete{}, candidates...)
	sort.Slice(remaining, func(i, j int) bool { return less(remaining[i], remaining[j]) })

	for totalCoverable > 0 && (opts.MaxAncestors <= 0 || len(picks) < opts.MaxAncestors) {
		if float64(cumulative) >= opts.MinCoverage*float64(totalCoverable) {
			break
		}
		bestIdx := -1
		bestGain := -1
		for i, cand := range remaining {
			gain := 0
			hapMap := hapAt[cand]
			for j, o := range observations {
				if covered[j] {
					continue
				}
				hapID, ok := hapMap[o.rangeID]
				if !ok {
					continue
				}
				if containsHap(o.set, hapID) {
					gain += o.count
				}
			}
			if gain > bestGain || (gain == bestGain && bestIdx >= 0 && less(cand, remaining[bestIdx])) {
				bestGain = gain
				bestIdx = i
			}
		}
		if bestIdx < 0 || bestGain <= 0 {
			break
		}
		chosen := remaining[bestIdx]
		hapMap := hapAt[chosen]
		for j, o := range observations {
			if covered[j] {
				continue
			}
			hapID, ok := hapMap[o.rangeID]
			if ok && containsHap(o.set, hapID) {
				covered[j] = true
			}
		}
		cumulative += bestGain
		picks = append(picks, Pick{
			Gamete:             chosen,
			IncrementalReads:   bestGain,
			CumulativeCoverage: float64(cumulative) / float64(totalCoverable),
		})
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return picks
}

func containsHap(set readmap.HapSet, hapID string) bool {
	// set is sorted; a linear scan is fine at the small per-range set
	// sizes ReadMapper produces.
	for _, h := range set {
		if h == hapID {
			return true
		}
	}
	return false
}

func less(a, b graph.SampleGamete) bool {
	if a.Sample != b.Sample {
		return a.Sample < b.Sample
	}
	return a.Gamete < b.Gamete
}
