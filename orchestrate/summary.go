package orchestrate

import (
	"context"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"

	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/pathfinder"
)

// Summary is the per-sample metrics record of SPEC_FULL.md's supplemented
// feature 3: written alongside every path, grounded in the teacher's
// habit of writing a metrics file next to primary output
// (markduplicates/metrics.go).
type Summary struct {
	Sample        string `tsv:"sample"`
	RangesTotal   int    `tsv:"rangesTotal"`
	RangesKept    int    `tsv:"rangesKept"`
	RangesDropped int    `tsv:"rangesDropped"`
	TotalReads    int    `tsv:"totalReads"`
	AncestorCount int    `tsv:"ancestorCount"`
}

func writeResult(ctx context.Context, outputDir string, g *graph.Graph, r result) error {
	if err := writePathFile(ctx, pathFilePath(outputDir, r.sample), g, r.path); err != nil {
		return err
	}
	return writeSummaryFile(ctx, summaryFilePath(outputDir, r.sample), r.summary)
}

func writeSummaryFile(ctx context.Context, path string, s Summary) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("sample")
	w.WriteString("rangesTotal")
	w.WriteString("rangesKept")
	w.WriteString("rangesDropped")
	w.WriteString("totalReads")
	w.WriteString("ancestorCount")
	if err := w.EndLine(); err != nil {
		return err
	}
	w.WriteString(s.Sample)
	w.WriteString(strconv.Itoa(s.RangesTotal))
	w.WriteString(strconv.Itoa(s.RangesKept))
	w.WriteString(strconv.Itoa(s.RangesDropped))
	w.WriteString(strconv.Itoa(s.TotalReads))
	w.WriteString(strconv.Itoa(s.AncestorCount))
	if err := w.EndLine(); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return out.Close(ctx)
}

// writePathFile persists a Path in the hand-rolled line format used
// throughout this module for structures a general TSV reader doesn't fit
// naturally (kmerindex.Write follows the same convention for its
// three-line-per-range groups): one line per PathNode, `contig:start-end`
// then a tab, then a comma-separated list of `sample/gameteIndex` gamete
// identifiers.
func writePathFile(ctx context.Context, path string, g *graph.Graph, p pathfinder.Path) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	w := out.Writer(ctx)
	for _, node := range p {
		line := formatRangeHeader(g, node.Range) + "\t" + formatGametes(node) + "\n"
		if _, err := w.Write([]byte(line)); err != nil {
			return err
		}
	}
	return out.Close(ctx)
}

func formatRangeHeader(g *graph.Graph, r graph.RangeID) string {
	rr := g.Ranges()[r]
	return rr.Contig + ":" + strconv.FormatInt(rr.Start, 10) + "-" + strconv.FormatInt(rr.End, 10)
}

func formatGametes(node pathfinder.PathNode) string {
	parts := make([]string, len(node.Gametes))
	for i, sg := range node.Gametes {
		parts[i] = sg.Sample + "/" + strconv.Itoa(sg.Gamete)
	}
	return strings.Join(parts, ",")
}
