package readmap

import (
	"context"
	"math"
	"sort"

	"github.com/maize-genetics/phg-impute/encoding/readfile"
	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/kmerindex"
)

// Options carries the ReadMapper filters of spec §4.D / §6.
type Options struct {
	// LimitSingleRefRange, when true, drops a read unless one range holds
	// at least MinSameReferenceRange of all its kmer hits.
	LimitSingleRefRange   bool
	MinSameReferenceRange float64 // default 0.9
	// MinProportionOfMaxCount keeps only hapIds whose hit count is at
	// least ceil(m * MinProportionOfMaxCount), m the per-range max.
	// Default 1.0 (strict argmax).
	MinProportionOfMaxCount float64
}

// DefaultOptions mirrors spec §4.D's stated defaults.
var DefaultOptions = Options{
	MinSameReferenceRange:   0.9,
	MinProportionOfMaxCount: 1.0,
}

// Mapper resolves reads against a fixed KmerIndex and HaplotypeGraph.
type Mapper struct {
	idx  *kmerindex.KmerIndex
	g    *graph.Graph
	opts Options
}

// New returns a Mapper for idx and g using opts.
func New(idx *kmerindex.KmerIndex, g *graph.Graph, opts Options) *Mapper {
	return &Mapper{idx: idx, g: g, opts: opts}
}

// perRangeSet resolves one mate's hits into the per-range surviving
// hapId set, applying spec §4.D steps 3-4 (single-range restriction, then
// argmax-proportion filtering).
func (m *Mapper) perRangeSet(hits perRangeHits) map[graph.RangeID][]string {
	if m.opts.LimitSingleRefRange && len(hits) > 1 {
		total := 0
		var bestRange graph.RangeID
		bestCount := -1
		for r, counts := range hits {
			c := sumCounts(counts)
			total += c
			if c > bestCount {
				bestCount = c
				bestRange = r
			}
		}
		if total == 0 || float64(bestCount)/float64(total) < m.opts.MinSameReferenceRange {
			return nil
		}
		hits = perRangeHits{bestRange: hits[bestRange]}
	}

	out := make(map[graph.RangeID][]string, len(hits))
	for r, counts := range hits {
		maxCount := 0
		for _, c := range counts {
			if c > maxCount {
				maxCount = c
			}
		}
		if maxCount == 0 {
			continue
		}
		threshold := int(math.Ceil(float64(maxCount) * m.opts.MinProportionOfMaxCount))
		var set []string
		for hapID, c := range counts {
			if c >= threshold {
				set = append(set, hapID)
			}
		}
		if len(set) > 0 {
			out[r] = set
		}
	}
	return out
}

func sumCounts(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

// MapRead maps a single unpaired read into acc, per spec §4.D steps 1,2,3,4,6
// (step 5 does not apply to unpaired reads).
func (m *Mapper) MapRead(acc *Counts, seq string) {
	hits := collectHits(m.idx, m.g, seq)
	sets := m.perRangeSet(hits)
	for r, ids := range sets {
		acc.Range(r).Add(newHapSet(ids))
	}
}

// MapPair maps a read pair into acc, per spec §4.D step 5: each mate's
// per-range set is computed independently, then intersected; ranges whose
// intersection is empty contribute nothing.
func (m *Mapper) MapPair(acc *Counts, seq1, seq2 string) {
	set1 := m.perRangeSet(collectHits(m.idx, m.g, seq1))
	set2 := m.perRangeSet(collectHits(m.idx, m.g, seq2))
	for r, ids1 := range set1 {
		ids2, ok := set2[r]
		if !ok {
			continue
		}
		inter := intersect(ids1, ids2)
		if len(inter) > 0 {
			acc.Range(r).Add(newHapSet(inter))
		}
	}
}

func intersect(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, x := range b {
		in[x] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := in[x]; ok {
			out = append(out, x)
		}
	}
	sort.Strings(out)
	return out
}

// MapSingleEnded streams every read from r into acc using MapRead.
func (m *Mapper) MapSingleEnded(ctx context.Context, acc *Counts, r *readfile.Scanner) error {
	var read readfile.Read
	for r.Scan(&read) {
		m.MapRead(acc, read.Seq)
	}
	return r.Err()
}

// MapPairedEnded streams every pair from p into acc using MapPair.
func (m *Mapper) MapPairedEnded(ctx context.Context, acc *Counts, p *readfile.PairScanner) error {
	var r1, r2 readfile.Read
	for p.Scan(&r1, &r2) {
		m.MapPair(acc, r1.Seq, r2.Seq)
	}
	return p.Err()
}
