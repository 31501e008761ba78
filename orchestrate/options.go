package orchestrate

import "github.com/maize-genetics/phg-impute/phgerr"

// PathType selects which path finder the Orchestrator runs per sample
// (spec §6's pathType config option).
type PathType int

const (
	Haploid PathType = iota
	Diploid
)

func (t PathType) String() string {
	if t == Diploid {
		return "diploid"
	}
	return "haploid"
}

// Options is the single configuration surface for a batch imputation run,
// gathering every field spec §6 names under "Configuration options
// consumed by the core", in the shape of a validated-up-front struct the
// way fusion.Opts/fusion.DefaultOpts works in the teacher.
type Options struct {
	// Emission / transition parameters (spec §4.F, §4.G).
	ProbCorrect           float64
	ProbSameGamete        float64
	InbreedingCoefficient float64

	// Range filtering (spec §4.F "Range filtering", §3).
	MinGametes    int
	MinReads      int
	MaxReadsPerKb float64
	RemoveEqual   bool

	// Ancestor pruning (spec §4.E).
	UseLikelyAncestors bool
	MaxAncestors       int
	MinCoverage        float64

	PathType PathType
	Threads  int

	OutputDir string
}

// DefaultOptions mirrors the defaults named throughout spec.md §4.
var DefaultOptions = Options{
	ProbCorrect:           0.99,
	ProbSameGamete:        0.99,
	InbreedingCoefficient: 0,
	MinGametes:            0,
	MinReads:              0,
	MaxReadsPerKb:         0,
	UseLikelyAncestors:    false,
	MaxAncestors:          0,
	MinCoverage:           1.0,
	PathType:              Haploid,
	Threads:               3,
}

// Validate checks every field against its declared range. Per spec §7,
// configuration outside these ranges is fatal before any work starts, so
// callers should treat a non-nil return as unrecoverable.
func (o Options) Validate() error {
	switch {
	case o.ProbCorrect <= 0 || o.ProbCorrect > 1:
		return phgerr.E(phgerr.InvariantViolation, "probCorrect must be in (0,1], got ", o.ProbCorrect)
	case o.ProbSameGamete <= 0 || o.ProbSameGamete >= 1:
		return phgerr.E(phgerr.InvariantViolation, "probSameGamete must be in (0,1), got ", o.ProbSameGamete)
	case o.InbreedingCoefficient < 0 || o.InbreedingCoefficient > 1:
		return phgerr.E(phgerr.InvariantViolation, "inbreedingCoefficient must be in [0,1], got ", o.InbreedingCoefficient)
	case o.MinGametes < 0:
		return phgerr.E(phgerr.InvariantViolation, "minGametes must be >= 0")
	case o.MinReads < 0:
		return phgerr.E(phgerr.InvariantViolation, "minReads must be >= 0")
	case o.MaxReadsPerKb < 0:
		return phgerr.E(phgerr.InvariantViolation, "maxReadsPerKb must be >= 0")
	case o.MaxAncestors < 0:
		return phgerr.E(phgerr.InvariantViolation, "maxAncestors must be >= 0")
	case o.MinCoverage <= 0 || o.MinCoverage > 1:
		return phgerr.E(phgerr.InvariantViolation, "minCoverage must be in (0,1], got ", o.MinCoverage)
	case o.Threads <= 0:
		return phgerr.E(phgerr.InvariantViolation, "threads must be >= 1")
	case o.OutputDir == "":
		return phgerr.E(phgerr.InvariantViolation, "outputDir is required")
	}
	return nil
}
