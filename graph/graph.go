// Package graph implements the in-memory HaplotypeGraph (spec §3, §4.A):
// reference ranges, haplotypes, and the sample-gamete-to-haplotype
// membership relation. Following the dense-integer-identifier design of
// spec §9, every reference range and every haplotype within a range is
// addressed by a small integer index rather than by pointer, so the
// finished Graph is a set of read-only, safely shared slices.
package graph

import (
	"sort"

	"github.com/maize-genetics/phg-impute/phgerr"
)

// RangeID is the dense, zero-based identifier assigned to a ReferenceRange
// after all ranges have been collected and sorted.
type RangeID int32

// ReferenceRange is a half-open interval [Start, End) on Contig.
type ReferenceRange struct {
	Contig string
	Start  int64
	End    int64
}

// Less orders ranges by (contig, start), the total order required by
// spec §3.
func (r ReferenceRange) Less(o ReferenceRange) bool {
	if r.Contig != o.Contig {
		return r.Contig < o.Contig
	}
	if r.Start != o.Start {
		return r.Start < o.Start
	}
	return r.End < o.End
}

// SampleGamete identifies one chromosome copy of one sample.
type SampleGamete struct {
	Sample string
	Gamete int
}

// HapMetadata is the file-level metadata a haplotype-VCF associates with a
// hapId: its originating assembly region and content checksum (spec §4.A,
// §6).
type HapMetadata struct {
	AssemblyRegion string
	Checksum       uint64
	HasChecksum    bool
}

// Tuple is the parsed unit the core consumes from haplotype-VCF input,
// exactly the 6-tuple named in spec §6: (contig, start, end, sampleGamete,
// hapId, hapIdMetadata).
type Tuple struct {
	Range  ReferenceRange
	Gamete SampleGamete
	HapID  string
	Meta   HapMetadata
}

// rangeData holds everything the graph knows about a single reference
// range, indexed by the range's dense within-range haplotype index.
type rangeData struct {
	hapIDs      []string          // dense hap-index -> hapId, first-seen order
	hapIndex    map[string]int    // hapId -> dense hap-index
	hapMeta     map[string]HapMetadata
	sampleToHap map[SampleGamete]int // gamete -> dense hap-index; absent key means no haplotype at this range
	hapToSample map[int][]SampleGamete
}

// Graph is the read-only HaplotypeGraph. Zero value is not usable; build
// one with Build.
type Graph struct {
	ranges   []ReferenceRange // sorted; index is the RangeID
	rangeIDs map[ReferenceRange]RangeID
	data     []rangeData // parallel to ranges
	gametes  map[SampleGamete]struct{}
}

// Ranges returns the sorted list of reference ranges. The slice must not
// be mutated by callers.
func (g *Graph) Ranges() []ReferenceRange { return g.ranges }

// NumRanges returns the number of reference ranges in the graph.
func (g *Graph) NumRanges() int { return len(g.ranges) }

// RangeID returns the dense identifier for r, and false if r is not part
// of the graph.
func (g *Graph) RangeID(r ReferenceRange) (RangeID, bool) {
	id, ok := g.rangeIDs[r]
	return id, ok
}

// HapIDs returns the haplotype identifiers present at range r, in a
// stable dense order (index i corresponds to bit position i in any bit
// row built by kmerindex for this range).
func (g *Graph) HapIDs(r RangeID) []string {
	return g.data[r].hapIDs
}

// HapIndex returns the dense within-range index of hapID at range r.
func (g *Graph) HapIndex(r RangeID, hapID string) (int, bool) {
	idx, ok := g.data[r].hapIndex[hapID]
	return idx, ok
}

// HapMetadata returns the metadata recorded for hapID at range r.
func (g *Graph) HapMetadata(r RangeID, hapID string) (HapMetadata, bool) {
	m, ok := g.data[r].hapMeta[hapID]
	return m, ok
}

// HapIdToSamples returns, for range r, the map from hapId to the list of
// sample gametes carrying that haplotype (spec §4.A).
func (g *Graph) HapIdToSamples(r RangeID) map[string][]SampleGamete {
	d := g.data[r]
	out := make(map[string][]SampleGamete, len(d.hapIDs))
	for hapIdx, samples := range d.hapToSample {
		out[d.hapIDs[hapIdx]] = samples
	}
	return out
}

// SampleToHapID returns the hapId carried by gamete at range r, or
// ok=false if the gamete is absent at that range (the "null haplotype"
// case of spec §3).
func (g *Graph) SampleToHapID(r RangeID, gamete SampleGamete) (hapID string, ok bool) {
	d := g.data[r]
	idx, present := d.sampleToHap[gamete]
	if !present {
		return "", false
	}
	return d.hapIDs[idx], true
}

// SampleGametesInGraph returns the graph-wide set of sample gametes, in
// no particular order.
func (g *Graph) SampleGametesInGraph() []SampleGamete {
	out := make([]SampleGamete, 0, len(g.gametes))
	for sg := range g.gametes {
		out = append(out, sg)
	}
	return out
}

// FilterSparseRanges returns the subset of RangeIDs whose gamete
// membership count is at least minGametes, in ascending RangeID order
// (spec §3: "ranges with fewer than a configured minimum of gametes may
// be filtered out before path finding").
func (g *Graph) FilterSparseRanges(minGametes int) []RangeID {
	var out []RangeID
	for i, d := range g.data {
		if len(d.sampleToHap) >= minGametes {
			out = append(out, RangeID(i))
		}
	}
	return out
}

// Build assembles a Graph from an unordered stream of Tuples, as produced
// by ParseFiles. It performs the two invariant checks named in spec §3/§7:
// a sample gamete may not map to two different hapIds at the same range
// (InvariantViolation, fatal), and every stored row must be internally
// consistent between hapIdToSamples and sampleToHapId (checked
// structurally by construction, since both are derived from one pass over
// the same tuples).
func Build(tuples []Tuple) (*Graph, error) {
	rangeSet := make(map[ReferenceRange]struct{})
	for _, t := range tuples {
		rangeSet[t.Range] = struct{}{}
	}
	ranges := make([]ReferenceRange, 0, len(rangeSet))
	for r := range rangeSet {
		ranges = append(ranges, r)
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Less(ranges[j]) })

	rangeIDs := make(map[ReferenceRange]RangeID, len(ranges))
	for i, r := range ranges {
		rangeIDs[r] = RangeID(i)
	}

	data := make([]rangeData, len(ranges))
	for i := range data {
		data[i] = rangeData{
			hapIndex:    make(map[string]int),
			hapMeta:     make(map[string]HapMetadata),
			sampleToHap: make(map[SampleGamete]int),
			hapToSample: make(map[int][]SampleGamete),
		}
	}

	gametes := make(map[SampleGamete]struct{})

	for _, t := range tuples {
		rid := rangeIDs[t.Range]
		d := &data[rid]

		idx, ok := d.hapIndex[t.HapID]
		if !ok {
			idx = len(d.hapIDs)
			d.hapIndex[t.HapID] = idx
			d.hapIDs = append(d.hapIDs, t.HapID)
		}
		if t.Meta.HasChecksum || t.Meta.AssemblyRegion != "" {
			d.hapMeta[t.HapID] = t.Meta
		}

		if existing, ok := d.sampleToHap[t.Gamete]; ok && existing != idx {
			return nil, phgerr.E(phgerr.InvariantViolation,
				"sample gamete ", t.Gamete, " maps to multiple hapIds at range ", t.Range)
		}
		d.sampleToHap[t.Gamete] = idx
		d.hapToSample[idx] = append(d.hapToSample[idx], t.Gamete)
		gametes[t.Gamete] = struct{}{}
	}

	return &Graph{ranges: ranges, rangeIDs: rangeIDs, data: data, gametes: gametes}, nil
}
