package sequence_test

import (
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maize-genetics/phg-impute/encoding/fasta"
	"github.com/maize-genetics/phg-impute/sequence"
)

func TestFASTAProviderGetSequence(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "sequence")
	defer cleanup()
	path := dir + "/haps.fasta"

	w, err := file.Create(ctx, path)
	require.NoError(t, err)
	_, err = w.Writer(ctx).Write([]byte(">HAP_A\nACGTACGT\n>HAP_B\nTTTT\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	p, err := sequence.NewFASTAProvider(ctx, path)
	require.NoError(t, err)

	seq, err := p.GetSequence(ctx, "HAP_A", "chr1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT", seq)

	_, err = p.GetSequence(ctx, "HAP_MISSING", "chr1", 0, 0)
	assert.Error(t, err)
}

func TestIndexedFASTAProviderGetSequence(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "sequence")
	defer cleanup()
	fastaPath := dir + "/haps.fasta"
	faiPath := dir + "/haps.fasta.fai"

	w, err := file.Create(ctx, fastaPath)
	require.NoError(t, err)
	_, err = w.Writer(ctx).Write([]byte(">HAP_A\nACGTACGT\n>HAP_B\nTTTT\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	in, err := file.Open(ctx, fastaPath)
	require.NoError(t, err)
	faiOut, err := file.Create(ctx, faiPath)
	require.NoError(t, err)
	require.NoError(t, fasta.GenerateIndex(faiOut.Writer(ctx), in.Reader(ctx)))
	require.NoError(t, faiOut.Close(ctx))
	require.NoError(t, in.Close(ctx))

	p, err := sequence.NewIndexedFASTAProvider(ctx, fastaPath, faiPath)
	require.NoError(t, err)
	defer p.Close(ctx)

	seq, err := p.GetSequence(ctx, "HAP_A", "chr1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT", seq)

	seq, err = p.GetSequence(ctx, "HAP_B", "chr1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "TTTT", seq)

	_, err = p.GetSequence(ctx, "HAP_MISSING", "chr1", 0, 0)
	assert.Error(t, err)
}

func TestExecProviderGetSequence(t *testing.T) {
	ctx := vcontext.Background()
	p := sequence.NewExecProvider("printf", "%s")
	seq, err := p.GetSequence(ctx, "HAP_A", "chr1", 0, 100)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(seq, "HAP_A"))
}
