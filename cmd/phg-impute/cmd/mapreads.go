package cmd

import (
	"fmt"

	"github.com/grailbio/base/vcontext"

	"github.com/maize-genetics/phg-impute/encoding/readfile"
	"github.com/maize-genetics/phg-impute/kmerindex"
	"github.com/maize-genetics/phg-impute/readmap"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"
)

type mapReadsFlags struct {
	hapVCF                string
	indexPath             string
	sample                string
	r1, r2                string
	outDir                string
	limitSingleRefRange   bool
	minSameReferenceRange float64
	minProportionOfMax    float64
}

func newCmdMapReads() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "map-reads",
		Short: "Map a sample's short reads against a k-mer index",
	}
	flags := mapReadsFlags{}
	cmd.Flags.StringVar(&flags.hapVCF, "hap-vcf", "", "Comma-separated list of haplotype-VCF input paths")
	cmd.Flags.StringVar(&flags.indexPath, "index", "", "Path to a k-mer index written by build-index")
	cmd.Flags.StringVar(&flags.sample, "sample", "", "Sample name recorded in the output header")
	cmd.Flags.StringVar(&flags.r1, "r1", "", "Path to the (optionally gzipped) FASTQ file, or R1 of a pair")
	cmd.Flags.StringVar(&flags.r2, "r2", "", "Path to R2 of a paired FASTQ input; omit for single-ended reads")
	cmd.Flags.StringVar(&flags.outDir, "out", "readmap", "Output directory for per-range read-mapping counts")
	cmd.Flags.BoolVar(&flags.limitSingleRefRange, "limit-single-ref-range", readmap.DefaultOptions.LimitSingleRefRange, "Drop a read unless one range holds most of its kmer hits")
	cmd.Flags.Float64Var(&flags.minSameReferenceRange, "min-same-reference-range", readmap.DefaultOptions.MinSameReferenceRange, "Minimum fraction of hits a single range must hold, used with -limit-single-ref-range")
	cmd.Flags.Float64Var(&flags.minProportionOfMax, "min-proportion-of-max-count", readmap.DefaultOptions.MinProportionOfMaxCount, "Keep only hapIds whose hit count is at least this fraction of the per-range max")

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return mapReads(flags)
	})
	return cmd
}

func mapReads(flags mapReadsFlags) error {
	ctx := vcontext.Background()
	if flags.hapVCF == "" || flags.indexPath == "" || flags.sample == "" || flags.r1 == "" {
		return fmt.Errorf("-hap-vcf, -index, -sample, and -r1 are required")
	}

	g, err := loadGraph(ctx, flags.hapVCF)
	if err != nil {
		return err
	}
	idx, err := kmerindex.Read(ctx, flags.indexPath, numHapsPerRange(g))
	if err != nil {
		return err
	}

	mapper := readmap.New(idx, g, readmap.Options{
		LimitSingleRefRange:     flags.limitSingleRefRange,
		MinSameReferenceRange:   flags.minSameReferenceRange,
		MinProportionOfMaxCount: flags.minProportionOfMax,
	})
	counts := readmap.NewCounts()

	if flags.r2 == "" {
		src, err := readfile.Open(ctx, flags.r1)
		if err != nil {
			return err
		}
		defer src.Close()
		sc := readfile.NewScanner(src.Reader(), readfile.Seq)
		if err := mapper.MapSingleEnded(ctx, counts, sc); err != nil {
			return err
		}
	} else {
		src1, err := readfile.Open(ctx, flags.r1)
		if err != nil {
			return err
		}
		defer src1.Close()
		src2, err := readfile.Open(ctx, flags.r2)
		if err != nil {
			return err
		}
		defer src2.Close()
		p := readfile.NewPairScanner(src1.Reader(), src2.Reader(), readfile.Seq)
		if err := mapper.MapPairedEnded(ctx, counts, p); err != nil {
			return err
		}
	}

	meta := readmap.FileMeta{SampleName: flags.sample, Filename1: flags.r1, Filename2: flags.r2}
	return writeCountsDir(ctx, flags.outDir, flags.sample, meta, counts)
}
