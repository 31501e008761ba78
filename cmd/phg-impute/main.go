// Command phg-impute imputes complete diploid or haploid paths through a
// pangenome haplotype graph from short-read sequencing data, following the
// pipeline of spec §4: build a k-mer index over the graph, map reads to
// haplotype sets, then run the per-sample HMM path finder.
package main

import "github.com/maize-genetics/phg-impute/cmd/phg-impute/cmd"

func main() {
	cmd.Run()
}
