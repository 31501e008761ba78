package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/readmap"
)

// writeCountsDir persists one ReadMappingCounts as a directory of
// per-range files, one call to readmap.WriteFile per non-empty range,
// named by the range's dense RangeID so loadCountsDir can reconstruct the
// mapping without re-parsing the graph's range list.
func writeCountsDir(ctx context.Context, outDir, sample string, meta readmap.FileMeta, counts *readmap.Counts) error {
	for _, r := range counts.Ranges() {
		rc := counts.Range(r)
		if rc.Total() == 0 {
			continue
		}
		path := filepath.Join(outDir, sample, fmt.Sprintf("range-%d.tsv", r))
		if err := readmap.WriteFile(ctx, path, meta, rc); err != nil {
			return err
		}
	}
	return nil
}

// loadCountsDir reconstructs a *readmap.Counts from a directory written by
// writeCountsDir, one file per reference range in g.
func loadCountsDir(ctx context.Context, inDir, sample string, g *graph.Graph) (*readmap.Counts, error) {
	counts := readmap.NewCounts()
	for i := 0; i < g.NumRanges(); i++ {
		r := graph.RangeID(i)
		path := filepath.Join(inDir, sample, fmt.Sprintf("range-%d.tsv", r))
		_, rc, err := readmap.ReadFile(ctx, path)
		if err != nil {
			continue // range has no reads mapped to it for this sample
		}
		for _, set := range rc.Sets() {
			for i := 0; i < rc.Count(set); i++ {
				counts.Range(r).Add(set)
			}
		}
	}
	return counts, nil
}
