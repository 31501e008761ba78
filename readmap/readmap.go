// Package readmap implements the ReadMapper of spec §4.D: it streams
// reads through the k-mer index, resolves each read (or read pair) to a
// per-range haplotype-set, and accumulates the result into
// ReadMappingCounts, keyed the way fusion/postprocess.go's
// groupCandidatesByGenePair keys its candidate map — a highwayhash sum
// over the sorted member list — generalized from a gene-id list to a
// sorted hapId list.
package readmap

import (
	"encoding/binary"
	"sort"

	"github.com/minio/highwayhash"

	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/kmer"
	"github.com/maize-genetics/phg-impute/kmerindex"
)

type hashKey = [highwayhash.Size]uint8

var zeroSeed = hashKey{}

// HapSet is an immutable, lexicographically sorted list of hapIds — the
// value type ReadMappingCounts counts occurrences of.
type HapSet []string

func newHapSet(ids []string) HapSet {
	out := append(HapSet{}, ids...)
	sort.Strings(out)
	return out
}

func (h HapSet) hash() hashKey {
	buf := make([]byte, 0, 4*len(h))
	for _, id := range h {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(id)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, id...)
	}
	return hashKey(highwayhash.Sum(buf, zeroSeed[:]))
}

// RangeCounts is the ReadMappingCounts of spec §3 for a single reference
// range: a multiset over sorted HapSets.
type RangeCounts struct {
	sets   map[hashKey]HapSet
	counts map[hashKey]int
}

func newRangeCounts() *RangeCounts {
	return &RangeCounts{sets: make(map[hashKey]HapSet), counts: make(map[hashKey]int)}
}

// Add records one more read observation of set, merging it into the
// multiset. Exported so callers that build ReadMappingCounts outside of
// Mapper — tests, and the CLI's reload of saved per-range counts — can populate an
// accumulator the same way MapRead/MapPair do.
func (c *RangeCounts) Add(set HapSet) {
	h := set.hash()
	if _, ok := c.sets[h]; !ok {
		c.sets[h] = set
	}
	c.counts[h]++
}

// Sets returns every distinct HapSet observed, in no particular order.
func (c *RangeCounts) Sets() []HapSet {
	out := make([]HapSet, 0, len(c.sets))
	for _, s := range c.sets {
		out = append(out, s)
	}
	return out
}

// Count returns the number of reads that mapped to exactly set.
func (c *RangeCounts) Count(set HapSet) int {
	return c.counts[set.hash()]
}

// Total returns the total number of reads recorded across all sets.
func (c *RangeCounts) Total() int {
	n := 0
	for _, v := range c.counts {
		n += v
	}
	return n
}

// Counts is the per-sample output of mapping: one RangeCounts per range
// that received a read or was looked up with Range.
type Counts struct {
	byRange map[graph.RangeID]*RangeCounts
}

// NewCounts returns an empty Counts accumulator.
func NewCounts() *Counts {
	return &Counts{byRange: make(map[graph.RangeID]*RangeCounts)}
}

// Range returns the RangeCounts for r, creating it if necessary.
func (c *Counts) Range(r graph.RangeID) *RangeCounts {
	rc, ok := c.byRange[r]
	if !ok {
		rc = newRangeCounts()
		c.byRange[r] = rc
	}
	return rc
}

// Ranges returns every range that has a RangeCounts, including ranges that
// Range created without any read being recorded.
func (c *Counts) Ranges() []graph.RangeID {
	out := make([]graph.RangeID, 0, len(c.byRange))
	for r := range c.byRange {
		out = append(out, r)
	}
	return out
}

// perRangeHits accumulates, for a single read (or one mate of a pair),
// the per-hapId kmer hit count within each range it touched.
type perRangeHits map[graph.RangeID]map[string]int

func collectHits(idx *kmerindex.KmerIndex, g *graph.Graph, seq string) perRangeHits {
	hits := make(perRangeHits)
	for _, run := range splitOnNonACGT(seq) {
		if len(run) < kmer.Length {
			continue
		}
		kmer.Scan(run, func(h kmer.Hit) {
			for _, t := range idx.Lookup(h.Kmer) {
				rows := idx.Ranges[t.Range]
				hapIDs := g.HapIDs(t.Range)
				for _, hIdx := range rows.HapSet(t.Offset) {
					m, ok := hits[t.Range]
					if !ok {
						m = make(map[string]int)
						hits[t.Range] = m
					}
					m[hapIDs[hIdx]]++
				}
			}
		})
	}
	return hits
}

// splitOnNonACGT implements spec §4.D step 1: split the read on any
// non-ACGT base into maximal runs of length > 31.
func splitOnNonACGT(seq string) []string {
	var runs []string
	start := -1
	for i := 0; i <= len(seq); i++ {
		valid := i < len(seq) && isACGT(seq[i])
		if valid {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if i-start > kmer.Length-1 {
				runs = append(runs, seq[start:i])
			}
			start = -1
		}
	}
	return runs
}

func isACGT(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		return true
	}
	return false
}
