package orchestrate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maize-genetics/phg-impute/orchestrate"
	"github.com/maize-genetics/phg-impute/phgerr"
)

func validOptions() orchestrate.Options {
	opts := orchestrate.DefaultOptions
	opts.OutputDir = "/tmp/does-not-need-to-exist"
	return opts
}

// TestValidateAcceptsDegenerateProbCorrect implements spec §8's required
// "probCorrect = 1 (degenerate binomial)" boundary: the emission model
// handles p==1 (logspace.LogBinomial returns 0 when k==n and -Inf
// otherwise), so Validate must accept it rather than rejecting it as an
// invariant violation.
func TestValidateAcceptsDegenerateProbCorrect(t *testing.T) {
	opts := validOptions()
	opts.ProbCorrect = 1
	require.NoError(t, opts.Validate())
}

func TestValidateRejectsProbCorrectAboveOne(t *testing.T) {
	opts := validOptions()
	opts.ProbCorrect = 1.1
	err := opts.Validate()
	require.Error(t, err)
	assert.True(t, phgerr.Is(err, phgerr.InvariantViolation))
}

func TestValidateRejectsNonPositiveProbCorrect(t *testing.T) {
	opts := validOptions()
	opts.ProbCorrect = 0
	err := opts.Validate()
	require.Error(t, err)
	assert.True(t, phgerr.Is(err, phgerr.InvariantViolation))
}
