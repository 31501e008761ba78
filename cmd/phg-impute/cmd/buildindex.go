package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/grailbio/base/vcontext"

	"github.com/maize-genetics/phg-impute/kmerindex"
	"github.com/maize-genetics/phg-impute/sequence"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"
)

type buildIndexFlags struct {
	hapVCF      *string
	fastaPath   *string
	fastaIndex  *string
	execCmd     *string
	out         *string
	maxHapFrac  *float64
	hashMask    *uint64
	hashFilter  *uint64
	freezeIndex *bool
}

func newCmdBuildIndex() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "build-index",
		Short:    "Build a two-level k-mer index over a haplotype graph",
		ArgsName: "",
	}
	flags := buildIndexFlags{
		hapVCF:      cmd.Flags.String("hap-vcf", "", "Comma-separated list of haplotype-VCF input paths"),
		fastaPath:   cmd.Flags.String("fasta", "", "Path to a FASTA file containing haplotype sequences; mutually exclusive with -exec"),
		fastaIndex:  cmd.Flags.String("fasta-index", "", "Path to a *.fai index for -fasta (see index-fasta); when set, sequences are read by random access instead of loaded into memory"),
		execCmd:     cmd.Flags.String("exec", "", "External command used to fetch haplotype sequences on demand; mutually exclusive with -fasta"),
		out:         cmd.Flags.String("out", "index.tsv", "Output path for the k-mer index"),
		maxHapFrac:  cmd.Flags.Float64("max-hap-proportion", kmerindex.DefaultBuildOptions.MaxHaplotypeProportion, "Drop a kmer once it occurs in more than this fraction of a range's haplotypes"),
		hashMask:    cmd.Flags.Uint64("hash-mask", 0, "Deterministic sub-sampling mask; a kmer is kept only if (kmer & mask) == filter-value"),
		hashFilter:  cmd.Flags.Uint64("hash-filter-value", 0, "Deterministic sub-sampling filter value, used with -hash-mask"),
		freezeIndex: cmd.Flags.Bool("freeze-large-index", false, "Copy the built index's row matrices into a single huge-page-advised mmap region before writing it out, for pangenomes too large to leave scattered across many Go heap allocations"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return buildIndex(vcontext.Background(), flags)
	})
	return cmd
}

func buildIndex(ctx context.Context, flags buildIndexFlags) error {
	if *flags.hapVCF == "" {
		return fmt.Errorf("-hap-vcf is required")
	}
	if (*flags.fastaPath == "") == (*flags.execCmd == "") {
		return fmt.Errorf("exactly one of -fasta or -exec is required")
	}

	g, err := loadGraph(ctx, *flags.hapVCF)
	if err != nil {
		return err
	}

	provider, err := newProvider(ctx, *flags.fastaPath, *flags.fastaIndex, *flags.execCmd)
	if err != nil {
		return err
	}
	defer closeProvider(ctx, provider)

	opts := kmerindex.BuildOptions{
		MaxHaplotypeProportion: *flags.maxHapFrac,
		HashMask:               *flags.hashMask,
		HashFilterValue:        *flags.hashFilter,
	}
	idx, err := kmerindex.Build(ctx, g, provider, opts)
	if err != nil {
		return err
	}
	if *flags.freezeIndex {
		if err := idx.Freeze(); err != nil {
			return err
		}
		defer idx.Unfreeze()
	}
	return kmerindex.Write(ctx, *flags.out, idx, g.Ranges())
}

// newProvider constructs the sequence.Provider named by the
// -fasta/-fasta-index/-exec flags: a plain FASTAProvider slurps the whole
// reference into memory up front, an indexed FASTAProvider resolves
// sequence by random access against a *.fai companion index instead, and
// an ExecProvider shells out to fetch sequence on demand (spec §4.B's
// named sequence sources).
func newProvider(ctx context.Context, fastaPath, fastaIndexPath, execCmd string) (sequence.Provider, error) {
	if fastaPath != "" {
		if fastaIndexPath != "" {
			return sequence.NewIndexedFASTAProvider(ctx, fastaPath, fastaIndexPath)
		}
		return sequence.NewFASTAProvider(ctx, fastaPath)
	}
	fields := strings.Fields(execCmd)
	if len(fields) == 0 {
		return nil, fmt.Errorf("-exec must name a command")
	}
	return sequence.NewExecProvider(fields[0], fields[1:]...), nil
}

// closeProvider releases resources held by provider if it exposes a
// Close method (only the indexed FASTAProvider keeps a file handle open
// past construction); other providers are no-ops.
func closeProvider(ctx context.Context, provider sequence.Provider) {
	if c, ok := provider.(interface{ Close(context.Context) error }); ok {
		_ = c.Close(ctx)
	}
}
