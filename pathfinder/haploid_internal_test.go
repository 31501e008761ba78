package pathfinder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maize-genetics/phg-impute/readmap"
)

// TestHaploidTransitionSumsToOne implements spec §8's S7 for the haploid
// model: self-transition plus (n-1) uniform switch transitions sum to 1
// exactly, with no normalization needed (unlike the diploid model).
func TestHaploidTransitionSumsToOne(t *testing.T) {
	pSame := 0.99
	for _, n := range []int{1, 2, 5} {
		logSame := math.Log(pSame)
		var logSwitch float64
		if n > 1 {
			logSwitch = math.Log((1 - pSame) / float64(n-1))
		}
		total := math.Exp(logSame)
		for i := 1; i < n; i++ {
			total += math.Exp(logSwitch)
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	}
}

func TestEmissionHaploidZeroReadsIsZero(t *testing.T) {
	rc := readmap.NewCounts().Range(0)
	assert.Equal(t, 0.0, emissionHaploid(rc, "H1", 0.99))
}
