package pathfinder

import (
	"math"
	"sort"

	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/logspace"
	"github.com/maize-genetics/phg-impute/readmap"
)

// nullHap is the sentinel haplotype id for a candidate gamete absent at a
// range (spec §4.F's "missing" state). No real hapId is ever empty.
const nullHap = ""

// HaploidPathFinder is the first-order HMM of spec §4.F: at each retained
// range, the state is a single candidate SampleGamete.
type HaploidPathFinder struct {
	ProbSame    float64 // self-transition probability, default 0.99
	ProbCorrect float64 // emission binomial success probability, default 0.99
	Filter      FilterOptions
}

// Run imputes a haploid path for one sample over ranges (already
// restricted to whatever the caller wants considered — typically
// g.FilterSparseRanges' output), against counts and the candidate gamete
// pool candidates (typically ancestor.Select's output). Per spec §7's
// DegenerateHMM handling, zero surviving ranges yields an empty Path.
func (h *HaploidPathFinder) Run(g *graph.Graph, counts *readmap.Counts, candidates []graph.SampleGamete, ranges []graph.RangeID) Path {
	retained := filterRanges(g, counts, ranges, h.Filter, candidates)
	if len(retained) == 0 {
		return nil
	}

	states := append([]graph.SampleGamete{}, candidates...)
	sort.Slice(states, func(i, j int) bool { return lessGamete(states[i], states[j]) })
	n := len(states)
	if n == 0 {
		return nil
	}

	logSame := math.Log(h.ProbSame)
	logSwitch := math.Log((1 - h.ProbSame) / math.Max(1, float64(n-1)))

	delta := make([]float64, n)
	parent := make([][]int, len(retained))

	for i, s := range states {
		hapID := hapOrNull(g, retained[0], s)
		delta[i] = emissionHaploid(counts.Range(retained[0]), hapID, h.ProbCorrect)
	}
	parent[0] = nil

	for ri := 1; ri < len(retained); ri++ {
		r := retained[ri]
		next := make([]float64, n)
		par := make([]int, n)

		best1, best2 := topTwoIndices(delta)
		for i, s := range states {
			selfScore := delta[i] + logSame
			var otherScore float64
			var otherIdx int
			switch {
			case n == 1:
				// No other state to switch from.
				otherScore = logspace.NegInf
			case best1 != i:
				otherScore = delta[best1] + logSwitch
				otherIdx = best1
			default:
				otherScore = delta[best2] + logSwitch
				otherIdx = best2
			}
			if selfScore >= otherScore {
				par[i] = i
				next[i] = selfScore
			} else {
				par[i] = otherIdx
				next[i] = otherScore
			}
			hapID := hapOrNull(g, r, s)
			next[i] += emissionHaploid(counts.Range(r), hapID, h.ProbCorrect)
		}
		delta = next
		parent[ri] = par
	}

	last := argMaxTieBreak(delta, states)
	path := make(Path, len(retained))
	idx := last
	for ri := len(retained) - 1; ri >= 0; ri-- {
		path[ri] = PathNode{Range: retained[ri], Gametes: []graph.SampleGamete{states[idx]}}
		if ri > 0 {
			idx = parent[ri][idx]
		}
	}
	return path
}

func hapOrNull(g *graph.Graph, r graph.RangeID, s graph.SampleGamete) string {
	hapID, ok := g.SampleToHapID(r, s)
	if !ok {
		return nullHap
	}
	return hapID
}

func emissionHaploid(rc *readmap.RangeCounts, hapID string, probCorrect float64) float64 {
	total := 0.0
	for _, s := range rc.Sets() {
		c := rc.Count(s)
		k := 0
		if hapID != nullHap && containsHap(s, hapID) {
			k = c
		}
		total += logspace.LogBinomial(c, k, probCorrect)
	}
	return total
}

// topTwoIndices returns the indices of the two largest values in xs,
// tie-broken toward the lower index (so downstream tie-break-by-gamete-id
// sort order holds, since states is already sorted).
func topTwoIndices(xs []float64) (int, int) {
	best1, best2 := 0, -1
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best1] {
			best2 = best1
			best1 = i
		} else if best2 == -1 || xs[i] > xs[best2] {
			best2 = i
		}
	}
	return best1, best2
}

func argMaxTieBreak(xs []float64, states []graph.SampleGamete) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] || (xs[i] == xs[best] && lessGamete(states[i], states[best])) {
			best = i
		}
	}
	return best
}
