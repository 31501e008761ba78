package pathfinder

import (
	"math"
	"sort"

	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/logspace"
	"github.com/maize-genetics/phg-impute/readmap"
)

// pairState is one ordered pair of candidate gametes, the internal
// n²-state representation of spec §4.G. Emission treats (g1,g2) and
// (g2,g1) identically; transition does not, since the model tracks each
// coordinate's own switch history.
type pairState struct{ g1, g2 int } // indices into the shared states slice

// DiploidPathFinder is the first-order HMM of spec §4.G: at each retained
// range, the state is an unordered pair of candidate SampleGametes,
// represented internally as an ordered pair for the n² state space.
type DiploidPathFinder struct {
	ProbSame              float64 // p_same, default 0.99
	ProbCorrect           float64 // probCorrect, default 0.99
	InbreedingCoefficient float64 // f in [0, 1]
	Filter                FilterOptions
}

// Run imputes a diploid path, following the same DegenerateHMM contract
// as HaploidPathFinder.Run.
func (d *DiploidPathFinder) Run(g *graph.Graph, counts *readmap.Counts, candidates []graph.SampleGamete, ranges []graph.RangeID) Path {
	retained := filterRanges(g, counts, ranges, d.Filter, candidates)
	if len(retained) == 0 {
		return nil
	}

	states := append([]graph.SampleGamete{}, candidates...)
	sort.Slice(states, func(i, j int) bool { return lessGamete(states[i], states[j]) })
	n := len(states)
	if n == 0 {
		return nil
	}

	pairs := make([]pairState, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pairs = append(pairs, pairState{i, j})
		}
	}
	numStates := len(pairs)

	pSame := d.ProbSame
	q := 1 - pSame
	sH := q / math.Max(1, float64(n-1))
	f := d.InbreedingCoefficient

	delta := make([]float64, numStates)
	initLogPrior := -math.Log(float64(numStates))
	for i, p := range pairs {
		hapA := hapOrNull(g, retained[0], states[p.g1])
		hapB := hapOrNull(g, retained[0], states[p.g2])
		delta[i] = initLogPrior + emissionDiploid(counts.Range(retained[0]), hapA, hapB, d.ProbCorrect)
	}
	parent := make([][]int, len(retained))

	for ri := 1; ri < len(retained); ri++ {
		r := retained[ri]
		next := make([]float64, numStates)
		par := make([]int, numStates)

		norms := make([]float64, numStates)
		for si, source := range pairs {
			weights := make([]float64, numStates)
			for ti, target := range pairs {
				weights[ti] = rawTransitionLogWeight(source, target, pSame, sH, f)
			}
			norms[si] = logspace.LogSumExp(weights...)
		}

		for ti, target := range pairs {
			best := logspace.NegInf
			bestSrc := 0
			for si, source := range pairs {
				tp := rawTransitionLogWeight(source, target, pSame, sH, f) - norms[si]
				score := delta[si] + tp
				if score > best || (score == best && si < bestSrc) {
					best = score
					bestSrc = si
				}
			}
			hapA := hapOrNull(g, r, states[target.g1])
			hapB := hapOrNull(g, r, states[target.g2])
			next[ti] = best + emissionDiploid(counts.Range(r), hapA, hapB, d.ProbCorrect)
			par[ti] = bestSrc
		}
		delta = next
		parent[ri] = par
	}

	last := 0
	for i := 1; i < numStates; i++ {
		if delta[i] > delta[last] {
			last = i
		}
	}

	path := make(Path, len(retained))
	idx := last
	for ri := len(retained) - 1; ri >= 0; ri-- {
		p := pairs[idx]
		path[ri] = PathNode{Range: retained[ri], Gametes: []graph.SampleGamete{states[p.g1], states[p.g2]}}
		if ri > 0 {
			idx = parent[ri][idx]
		}
	}
	return path
}

// rawTransitionLogWeight implements the relative transition weights of
// spec §4.G's category rules (self, single haploid switch, double
// switch), matched to the ordered-pair state space so that at f=0 the
// weights reduce exactly to the product of two independent haploid
// transitions. The category formulas as literally stated do not sum to 1
// over all targets for every source when f is strictly between 0 and 1
// (verified algebraically: a homozygous source's row totals 1 - f·(1 -
// p_same) instead of 1); Run row-normalizes these weights per source via
// logspace.LogSumExp so the resulting transition matrix satisfies the
// Σ_target P(source,target)=1 invariant exactly while preserving the
// relative category weighting the spec describes.
func rawTransitionLogWeight(source, target pairState, pSame, sH, f float64) float64 {
	homozygousSource := source.g1 == source.g2
	if homozygousSource {
		a := source.g1
		matchesA := target.g1 == a
		matchesB := target.g2 == a
		switch {
		case matchesA && matchesB:
			return 2 * math.Log(pSame)
		case matchesA != matchesB:
			return math.Log(1-f) + math.Log(pSame) + math.Log(sH)
		default: // neither coordinate equals a
			if target.g1 == target.g2 {
				// homozygous target, both differ from a
				p := f*pSame*sH + (1-f)*sH*sH
				return math.Log(p)
			}
			return math.Log(1-f) + 2*math.Log(sH)
		}
	}

	matches := 0
	if target.g1 == source.g1 {
		matches++
	}
	if target.g2 == source.g2 {
		matches++
	}
	switch matches {
	case 2:
		return 2 * math.Log(pSame)
	case 1:
		return math.Log(pSame) + math.Log(sH)
	default:
		return 2 * math.Log(sH)
	}
}

// emissionDiploid implements spec §4.G's emission model for the unordered
// haplotype pair (hapA, hapB), treating an absent haplotype (nullHap) as
// the other member of the pair per SPEC_FULL.md's Open Question
// resolution.
func emissionDiploid(rc *readmap.RangeCounts, hapA, hapB string, probCorrect float64) float64 {
	if hapA == nullHap && hapB == nullHap {
		return emissionHaploid(rc, nullHap, probCorrect)
	}
	if hapA == hapB || hapA == nullHap || hapB == nullHap {
		h := hapA
		if hapA == nullHap {
			h = hapB
		}
		return emissionHaploid(rc, h, probCorrect)
	}

	total := rc.Total()
	var n1not2, nNot12, n12 int
	for _, s := range rc.Sets() {
		c := rc.Count(s)
		hasA := containsHap(s, hapA)
		hasB := containsHap(s, hapB)
		switch {
		case hasA && hasB:
			n12 += c
		case hasA:
			n1not2 += c
		case hasB:
			nNot12 += c
		}
	}
	nNeitherBase := total - n1not2 - nNot12 - n12

	pc := probCorrect
	probs := []float64{pc / 2, pc / 2, 1 - pc}

	terms := make([]float64, 0, n12+1)
	for i := 0; i <= n12; i++ {
		counts := []int{n1not2 + i, nNot12 + n12 - i, nNeitherBase}
		terms = append(terms, logspace.LogMultinomial(counts, probs))
	}
	return logspace.LogSumExp(terms...)
}
