// Package pathfinder implements HaploidPathFinder and DiploidPathFinder
// (spec §4.F, §4.G): first-order HMMs that recover, per sample, the
// sequence of gametes (haploid) or gamete pairs (diploid) best explaining
// a sample's ReadMappingCounts across the graph's reference ranges.
//
// Both finders share range filtering (this file), and log-space numerics
// from the logspace package. Each performs its own Viterbi reduction,
// since the haploid and diploid transition/emission models differ in
// state shape.
package pathfinder

import (
	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/readmap"
)

// PathNode is one step of an imputed path: the reference range and the
// gamete(s) assigned to it. Haploid paths carry one gamete; diploid paths
// carry two (order is the arbitrary order chosen by Viterbi, not
// significant — the emission model treats the pair as unordered).
type PathNode struct {
	Range   graph.RangeID
	Gametes []graph.SampleGamete
}

// Path is a sequence of PathNodes in ascending RangeID (reference) order.
// An empty Path means "not imputed" (spec §7's DegenerateHMM handling).
type Path []PathNode

// FilterOptions is the range-filtering step common to both path finders
// (spec §4.F "Range filtering", reused verbatim by §4.G).
type FilterOptions struct {
	MinReadsPerRange int     // minReads: minimum distinct observed sets
	MaxReadsPerKb    float64 // 0 disables the check
	RemoveEqual      bool
}

// filterRanges returns the subset of candidateRanges that survive
// FilterOptions, in ascending RangeID order. candidates are the gametes
// whose haplotypes the RemoveEqual check compares.
func filterRanges(g *graph.Graph, counts *readmap.Counts, candidateRanges []graph.RangeID, opts FilterOptions, candidates []graph.SampleGamete) []graph.RangeID {
	var out []graph.RangeID
	for _, r := range candidateRanges {
		rc := counts.Range(r)
		sets := rc.Sets()
		if len(sets) < opts.MinReadsPerRange {
			continue
		}
		if opts.MaxReadsPerKb > 0 {
			rr := g.Ranges()[r]
			length := rr.End - rr.Start
			if length > 0 {
				perKb := float64(rc.Total()) * 1000 / float64(length)
				if perKb > opts.MaxReadsPerKb {
					continue
				}
			}
		}
		if opts.RemoveEqual && allHapsEquallySupported(g, rc, r, candidates) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// allHapsEquallySupported implements filter (iii): true when every
// haplotype carried by a candidate gamete at r has identical total
// read-count support, meaning the range carries no discriminating signal.
func allHapsEquallySupported(g *graph.Graph, rc *readmap.RangeCounts, r graph.RangeID, candidates []graph.SampleGamete) bool {
	support := make(map[string]int)
	for _, cand := range candidates {
		hapID, ok := g.SampleToHapID(r, cand)
		if !ok {
			continue
		}
		if _, seen := support[hapID]; seen {
			continue
		}
		support[hapID] = hapSupport(rc, hapID)
	}
	if len(support) < 2 {
		return false
	}
	var first int
	i := 0
	for _, v := range support {
		if i == 0 {
			first = v
		} else if v != first {
			return false
		}
		i++
	}
	return true
}

func hapSupport(rc *readmap.RangeCounts, hapID string) int {
	total := 0
	for _, s := range rc.Sets() {
		if containsHap(s, hapID) {
			total += rc.Count(s)
		}
	}
	return total
}

func containsHap(set readmap.HapSet, hapID string) bool {
	for _, h := range set {
		if h == hapID {
			return true
		}
	}
	return false
}

func lessGamete(a, b graph.SampleGamete) bool {
	if a.Sample != b.Sample {
		return a.Sample < b.Sample
	}
	return a.Gamete < b.Gamete
}
