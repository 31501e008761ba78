package pathfinder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/pathfinder"
	"github.com/maize-genetics/phg-impute/readmap"
)

func gamete(sample string) graph.SampleGamete { return graph.SampleGamete{Sample: sample, Gamete: 0} }

func buildThreeRangeGraph(t *testing.T) *graph.Graph {
	var tuples []graph.Tuple
	for i, contig := range []string{"chr1", "chr2", "chr3"} {
		r := graph.ReferenceRange{Contig: contig, Start: 0, End: 1000}
		for _, s := range []string{"A", "B"} {
			tuples = append(tuples, graph.Tuple{
				Range:  r,
				Gamete: gamete(s),
				HapID:  s + contig,
			})
		}
		_ = i
	}
	g, err := graph.Build(tuples)
	require.NoError(t, err)
	return g
}

func allRanges(g *graph.Graph) []graph.RangeID {
	out := make([]graph.RangeID, g.NumRanges())
	for i := range out {
		out[i] = graph.RangeID(i)
	}
	return out
}

// TestHaploidPathLengthEqualsRangeCount implements spec §8's S4: a
// sample whose reads survive filtering at k ranges yields a path with
// exactly k nodes in ascending reference order.
func TestHaploidPathLengthEqualsRangeCount(t *testing.T) {
	g := buildThreeRangeGraph(t)
	counts := readmap.NewCounts()
	for _, r := range allRanges(g) {
		counts.Range(r).Add(readmap.HapSet{"A" + g.Ranges()[r].Contig})
	}

	hf := &pathfinder.HaploidPathFinder{
		ProbSame:    0.99,
		ProbCorrect: 0.99,
		Filter:      pathfinder.FilterOptions{MinReadsPerRange: 1},
	}
	path := hf.Run(g, counts, []graph.SampleGamete{gamete("A"), gamete("B")}, allRanges(g))
	require.Len(t, path, 3)
	for i := 1; i < len(path); i++ {
		assert.Less(t, path[i-1].Range, path[i].Range)
	}
	for _, node := range path {
		assert.Equal(t, gamete("A"), node.Gametes[0])
	}
}

func TestHaploidDegenerateHMMReturnsEmptyPath(t *testing.T) {
	g := buildThreeRangeGraph(t)
	counts := readmap.NewCounts() // no reads recorded anywhere

	hf := &pathfinder.HaploidPathFinder{
		ProbSame:    0.99,
		ProbCorrect: 0.99,
		Filter:      pathfinder.FilterOptions{MinReadsPerRange: 1},
	}
	path := hf.Run(g, counts, []graph.SampleGamete{gamete("A"), gamete("B")}, allRanges(g))
	assert.Empty(t, path)
}

// TestHaploidRunSingleCandidateAcrossMultipleRanges implements spec §8's
// required "range with exactly one gamete" boundary: with only one
// candidate gamete supplied but several ranges surviving the filter,
// there is no second state to switch from at any range after the first.
// Run must not panic and must stay on the sole candidate throughout.
func TestHaploidRunSingleCandidateAcrossMultipleRanges(t *testing.T) {
	g := buildThreeRangeGraph(t)
	counts := readmap.NewCounts()
	for _, r := range allRanges(g) {
		counts.Range(r).Add(readmap.HapSet{"A" + g.Ranges()[r].Contig})
	}

	hf := &pathfinder.HaploidPathFinder{
		ProbSame:    0.99,
		ProbCorrect: 0.99,
		Filter:      pathfinder.FilterOptions{MinReadsPerRange: 1},
	}
	path := hf.Run(g, counts, []graph.SampleGamete{gamete("A")}, allRanges(g))
	require.Len(t, path, 3)
	for _, node := range path {
		require.Len(t, node.Gametes, 1)
		assert.Equal(t, gamete("A"), node.Gametes[0])
	}
}

// TestHaploidRunWithDegenerateProbCorrect implements spec §8's required
// "probCorrect = 1 (degenerate binomial)" boundary through the HMM
// itself: every observed read set must exactly match the assigned
// haplotype's set or the emission is -Inf, so a candidate with even one
// contradicting read is eliminated outright rather than merely
// penalized.
func TestHaploidRunWithDegenerateProbCorrect(t *testing.T) {
	g := buildThreeRangeGraph(t)
	counts := readmap.NewCounts()
	for _, r := range allRanges(g) {
		counts.Range(r).Add(readmap.HapSet{"A" + g.Ranges()[r].Contig})
	}

	hf := &pathfinder.HaploidPathFinder{
		ProbSame:    0.99,
		ProbCorrect: 1,
		Filter:      pathfinder.FilterOptions{MinReadsPerRange: 1},
	}
	path := hf.Run(g, counts, []graph.SampleGamete{gamete("A"), gamete("B")}, allRanges(g))
	require.Len(t, path, 3)
	for _, node := range path {
		assert.Equal(t, gamete("A"), node.Gametes[0])
	}
}

func TestDiploidPathLengthEqualsRangeCount(t *testing.T) {
	g := buildThreeRangeGraph(t)
	counts := readmap.NewCounts()
	for _, r := range allRanges(g) {
		counts.Range(r).Add(readmap.HapSet{"A" + g.Ranges()[r].Contig})
	}

	df := &pathfinder.DiploidPathFinder{
		ProbSame:              0.99,
		ProbCorrect:           0.99,
		InbreedingCoefficient: 0.1,
		Filter:                pathfinder.FilterOptions{MinReadsPerRange: 1},
	}
	path := df.Run(g, counts, []graph.SampleGamete{gamete("A"), gamete("B")}, allRanges(g))
	require.Len(t, path, 3)
	for _, node := range path {
		require.Len(t, node.Gametes, 2)
	}
}

func TestDiploidDegenerateHMMReturnsEmptyPath(t *testing.T) {
	g := buildThreeRangeGraph(t)
	counts := readmap.NewCounts()

	df := &pathfinder.DiploidPathFinder{
		ProbSame:              0.99,
		ProbCorrect:           0.99,
		InbreedingCoefficient: 0.0,
		Filter:                pathfinder.FilterOptions{MinReadsPerRange: 1},
	}
	path := df.Run(g, counts, []graph.SampleGamete{gamete("A"), gamete("B")}, allRanges(g))
	assert.Empty(t, path)
}
