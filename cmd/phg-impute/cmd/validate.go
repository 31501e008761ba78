package cmd

import (
	"context"

	"github.com/grailbio/base/vcontext"

	"blainsmith.com/go/seahash"

	"github.com/grailbio/base/file"

	"github.com/maize-genetics/phg-impute/encoding/fasta"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"
)

type validateFlags struct {
	hapVCF     *string
	fastaPath  *string
	fastaIndex *string
	execCmd    *string
}

func newCmdValidate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "validate",
		Short: "Cross-check haplotype checksums against a sequence source",
	}
	flags := validateFlags{
		hapVCF:     cmd.Flags.String("hap-vcf", "", "Comma-separated list of haplotype-VCF input paths"),
		fastaPath:  cmd.Flags.String("fasta", "", "Path to a FASTA file containing haplotype sequences; mutually exclusive with -exec"),
		fastaIndex: cmd.Flags.String("fasta-index", "", "Path to a *.fai index for -fasta (see index-fasta); when set, sequences are read by random access instead of loaded into memory"),
		execCmd:    cmd.Flags.String("exec", "", "External command used to fetch haplotype sequences on demand; mutually exclusive with -fasta"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := vcontext.Background()
		g, err := loadGraph(ctx, *flags.hapVCF)
		if err != nil {
			return err
		}
		provider, err := newProvider(ctx, *flags.fastaPath, *flags.fastaIndex, *flags.execCmd)
		if err != nil {
			return err
		}
		defer closeProvider(ctx, provider)
		if *flags.fastaIndex != "" {
			refLengths, err := loadReferenceLengths(ctx, *flags.fastaIndex)
			if err != nil {
				return err
			}
			if err := g.ValidateContigLengths(refLengths); err != nil {
				return err
			}
		}
		return g.Validate(ctx, provider, seahashChecksum)
	})
	return cmd
}

// loadReferenceLengths reads a *.fai index and returns its contig→length
// map, used to cross-check the haplotype-VCF's declared ranges without
// fetching any sequence.
func loadReferenceLengths(ctx context.Context, faiPath string) (map[string]uint64, error) {
	in, err := file.Open(ctx, faiPath)
	if err != nil {
		return nil, err
	}
	defer in.Close(ctx)
	return fasta.FaiToReferenceLengths(in.Reader(ctx))
}

// seahashChecksum is the concrete checksum function graph.Validate uses to
// cross-check a haplotype-VCF's recorded checksum against the sequence a
// provider actually returns, grounded in cmd/bio-pamtool/checksum.go's use
// of blainsmith's seahash for record-level checksumming.
func seahashChecksum(s string) uint64 {
	h := seahash.New()
	h.Write([]byte(s))
	return h.Sum64()
}
