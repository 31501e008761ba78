// Package cmd implements the phg-impute subcommands, structured the way
// bio-pamtool/cmd lays out one file per subcommand under a v.io/x/lib/cmdline
// tree with github.com/grailbio/base/cmdutil runners.
package cmd

import (
	"context"
	"strings"

	"github.com/grailbio/base/log"

	"github.com/maize-genetics/phg-impute/graph"

	"v.io/x/lib/cmdline"
)

// Run parses os.Args and dispatches to the matching subcommand. It is the
// single entry point called from main.
func Run() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:  "phg-impute",
		Short: "Impute sample paths through a pangenome haplotype graph",
		Long: `phg-impute builds a k-mer index over a haplotype graph, maps short reads
against that index, and reconstructs per-sample haploid or diploid paths
with a first-order HMM.`,
		Children: []*cmdline.Command{
			newCmdIndexFasta(),
			newCmdBuildIndex(),
			newCmdValidate(),
			newCmdMapReads(),
			newCmdImpute(),
		},
	})
}

// loadGraph parses one or more comma-separated haplotype-VCF paths and
// builds the in-memory graph, the shared first step of every subcommand
// that touches the graph.
func loadGraph(ctx context.Context, hapVCFPaths string) (*graph.Graph, error) {
	paths := strings.Split(hapVCFPaths, ",")
	tuples, err := graph.ParseFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(tuples)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded graph: %d ranges from %d files", g.NumRanges(), len(paths))
	return g, nil
}

// numHapsPerRange returns, for every RangeID in order, the number of
// haplotypes registered at that range, the shape kmerindex.Read needs to
// preallocate its bitsets.
func numHapsPerRange(g *graph.Graph) []int {
	n := g.NumRanges()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = len(g.HapIDs(graph.RangeID(i)))
	}
	return out
}
