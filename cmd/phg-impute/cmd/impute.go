package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/grailbio/base/vcontext"

	"github.com/maize-genetics/phg-impute/orchestrate"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"
)

type imputeFlags struct {
	hapVCF                string
	readmapDir            string
	samples               string
	outDir                string
	pathType              string
	probCorrect           float64
	probSameGamete        float64
	inbreedingCoefficient float64
	minGametes            int
	minReads              int
	maxReadsPerKb         float64
	removeEqual           bool
	useLikelyAncestors    bool
	maxAncestors          int
	minCoverage           float64
	threads               int
}

func newCmdImpute() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "impute",
		Short: "Reconstruct per-sample paths through the haplotype graph",
	}
	flags := imputeFlags{}
	cmd.Flags.StringVar(&flags.hapVCF, "hap-vcf", "", "Comma-separated list of haplotype-VCF input paths")
	cmd.Flags.StringVar(&flags.readmapDir, "readmap-dir", "", "Directory of per-sample read-mapping counts written by map-reads")
	cmd.Flags.StringVar(&flags.samples, "samples", "", "Comma-separated list of sample names to impute")
	cmd.Flags.StringVar(&flags.outDir, "out", "impute-out", "Output directory for per-sample paths and summaries")
	cmd.Flags.StringVar(&flags.pathType, "path-type", "haploid", "Path finder to use: 'haploid' or 'diploid'")
	cmd.Flags.Float64Var(&flags.probCorrect, "prob-correct", orchestrate.DefaultOptions.ProbCorrect, "Probability a read's kmer hit correctly reflects its true source haplotype")
	cmd.Flags.Float64Var(&flags.probSameGamete, "prob-same-gamete", orchestrate.DefaultOptions.ProbSameGamete, "Self-transition probability of the path HMM")
	cmd.Flags.Float64Var(&flags.inbreedingCoefficient, "inbreeding-coefficient", orchestrate.DefaultOptions.InbreedingCoefficient, "Diploid model's inbreeding coefficient f, in [0,1]")
	cmd.Flags.IntVar(&flags.minGametes, "min-gametes", orchestrate.DefaultOptions.MinGametes, "Drop ranges backed by fewer than this many sample gametes")
	cmd.Flags.IntVar(&flags.minReads, "min-reads", orchestrate.DefaultOptions.MinReads, "Drop ranges with fewer than this many distinct observed haplotype sets")
	cmd.Flags.Float64Var(&flags.maxReadsPerKb, "max-reads-per-kb", orchestrate.DefaultOptions.MaxReadsPerKb, "Drop ranges with more than this many mapped reads per kb; 0 disables the filter")
	cmd.Flags.BoolVar(&flags.removeEqual, "remove-equal", orchestrate.DefaultOptions.RemoveEqual, "Drop ranges where every candidate haplotype has equal read support")
	cmd.Flags.BoolVar(&flags.useLikelyAncestors, "use-likely-ancestors", orchestrate.DefaultOptions.UseLikelyAncestors, "Run AncestorSelector to prune the candidate gamete pool before path finding")
	cmd.Flags.IntVar(&flags.maxAncestors, "max-ancestors", orchestrate.DefaultOptions.MaxAncestors, "Upper bound on ancestors AncestorSelector may pick; 0 means unbounded")
	cmd.Flags.Float64Var(&flags.minCoverage, "min-coverage", orchestrate.DefaultOptions.MinCoverage, "AncestorSelector's target fraction of coverable read observations")
	cmd.Flags.IntVar(&flags.threads, "threads", runtime.NumCPU(), "Number of samples to impute concurrently")

	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return impute(flags)
	})
	return cmd
}

func impute(flags imputeFlags) error {
	ctx := vcontext.Background()
	if flags.hapVCF == "" || flags.readmapDir == "" || flags.samples == "" {
		return fmt.Errorf("-hap-vcf, -readmap-dir, and -samples are required")
	}

	g, err := loadGraph(ctx, flags.hapVCF)
	if err != nil {
		return err
	}

	pathType := orchestrate.Haploid
	switch flags.pathType {
	case "haploid":
	case "diploid":
		pathType = orchestrate.Diploid
	default:
		return fmt.Errorf("unknown -path-type %q, want 'haploid' or 'diploid'", flags.pathType)
	}

	sampleNames := strings.Split(flags.samples, ",")
	inputs := make([]orchestrate.SampleInput, 0, len(sampleNames))
	for _, s := range sampleNames {
		counts, err := loadCountsDir(ctx, flags.readmapDir, s, g)
		if err != nil {
			return err
		}
		inputs = append(inputs, orchestrate.SampleInput{Name: s, Counts: counts})
	}

	opts := orchestrate.Options{
		ProbCorrect:           flags.probCorrect,
		ProbSameGamete:        flags.probSameGamete,
		InbreedingCoefficient: flags.inbreedingCoefficient,
		MinGametes:            flags.minGametes,
		MinReads:              flags.minReads,
		MaxReadsPerKb:         flags.maxReadsPerKb,
		RemoveEqual:           flags.removeEqual,
		UseLikelyAncestors:    flags.useLikelyAncestors,
		MaxAncestors:          flags.maxAncestors,
		MinCoverage:           flags.minCoverage,
		PathType:              pathType,
		Threads:               flags.threads,
		OutputDir:             flags.outDir,
	}
	return orchestrate.Run(ctx, g, inputs, opts)
}
