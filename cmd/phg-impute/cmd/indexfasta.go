package cmd

import (
	"context"
	"fmt"

	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/base/file"

	"github.com/maize-genetics/phg-impute/encoding/fasta"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"
)

type indexFastaFlags struct {
	fastaPath *string
	out       *string
}

func newCmdIndexFasta() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "index-fasta",
		Short: "Generate a *.fai index for a FASTA file",
		Long: `index-fasta reads an uncompressed FASTA file and writes a *.fai index next
to it, in the same format samtools faidx produces. Pass the resulting file
to build-index or validate's -fasta-index flag to resolve sequence by
random access instead of loading the whole reference into memory.`,
	}
	flags := indexFastaFlags{
		fastaPath: cmd.Flags.String("fasta", "", "Path to the FASTA file to index"),
		out:       cmd.Flags.String("out", "", "Output path for the *.fai index (defaults to -fasta + \".fai\")"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return indexFasta(vcontext.Background(), flags)
	})
	return cmd
}

func indexFasta(ctx context.Context, flags indexFastaFlags) error {
	if *flags.fastaPath == "" {
		return fmt.Errorf("-fasta is required")
	}
	out := *flags.out
	if out == "" {
		out = *flags.fastaPath + ".fai"
	}

	in, err := file.Open(ctx, *flags.fastaPath)
	if err != nil {
		return err
	}
	defer in.Close(ctx)

	w, err := file.Create(ctx, out)
	if err != nil {
		return err
	}
	if err := fasta.GenerateIndex(w.Writer(ctx), in.Reader(ctx)); err != nil {
		w.Close(ctx)
		return err
	}
	return w.Close(ctx)
}
