package graph_test

import (
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/phgerr"
)

func writeFile(t *testing.T, path, content string) {
	ctx := vcontext.Background()
	w, err := file.Create(ctx, path)
	require.NoError(t, err)
	_, err = w.Writer(ctx).Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))
}

func TestBuildFromTuplesAssignsDenseRangeIDs(t *testing.T) {
	tuples := []graph.Tuple{
		{Range: graph.ReferenceRange{Contig: "chr1", Start: 1000, End: 2000},
			Gamete: graph.SampleGamete{Sample: "B73", Gamete: 0}, HapID: "H1"},
		{Range: graph.ReferenceRange{Contig: "chr1", Start: 0, End: 1000},
			Gamete: graph.SampleGamete{Sample: "B73", Gamete: 0}, HapID: "H0"},
		{Range: graph.ReferenceRange{Contig: "chr1", Start: 0, End: 1000},
			Gamete: graph.SampleGamete{Sample: "Mo17", Gamete: 0}, HapID: "H0b"},
	}
	g, err := graph.Build(tuples)
	require.NoError(t, err)
	require.Equal(t, 2, g.NumRanges())

	first := g.Ranges()[0]
	assert.Equal(t, int64(0), first.Start)
	rid, ok := g.RangeID(first)
	require.True(t, ok)
	assert.Equal(t, graph.RangeID(0), rid)

	hapID, ok := g.SampleToHapID(rid, graph.SampleGamete{Sample: "B73", Gamete: 0})
	require.True(t, ok)
	assert.Equal(t, "H0", hapID)

	_, ok = g.SampleToHapID(rid, graph.SampleGamete{Sample: "Nobody", Gamete: 0})
	assert.False(t, ok)
}

func TestBuildRejectsConflictingHapAssignment(t *testing.T) {
	r := graph.ReferenceRange{Contig: "chr1", Start: 0, End: 1000}
	tuples := []graph.Tuple{
		{Range: r, Gamete: graph.SampleGamete{Sample: "B73", Gamete: 0}, HapID: "H0"},
		{Range: r, Gamete: graph.SampleGamete{Sample: "B73", Gamete: 0}, HapID: "H1"},
	}
	_, err := graph.Build(tuples)
	require.Error(t, err)
	assert.True(t, phgerr.Is(err, phgerr.InvariantViolation))
}

func TestValidateContigLengths(t *testing.T) {
	r := graph.ReferenceRange{Contig: "chr1", Start: 0, End: 1000}
	tuples := []graph.Tuple{
		{Range: r, Gamete: graph.SampleGamete{Sample: "B73", Gamete: 0}, HapID: "H0"},
	}
	g, err := graph.Build(tuples)
	require.NoError(t, err)

	require.NoError(t, g.ValidateContigLengths(map[string]uint64{"chr1": 1000}))
	require.NoError(t, g.ValidateContigLengths(map[string]uint64{"chr1": 5000}))

	err = g.ValidateContigLengths(map[string]uint64{"chr1": 500})
	require.Error(t, err)
	assert.True(t, phgerr.Is(err, phgerr.MissingReference))

	err = g.ValidateContigLengths(map[string]uint64{"chr2": 1000})
	require.Error(t, err)
	assert.True(t, phgerr.Is(err, phgerr.MissingReference))
}

func TestHapIdToSamples(t *testing.T) {
	r := graph.ReferenceRange{Contig: "chr1", Start: 0, End: 1000}
	tuples := []graph.Tuple{
		{Range: r, Gamete: graph.SampleGamete{Sample: "A", Gamete: 0}, HapID: "H0"},
		{Range: r, Gamete: graph.SampleGamete{Sample: "B", Gamete: 0}, HapID: "H0"},
		{Range: r, Gamete: graph.SampleGamete{Sample: "C", Gamete: 0}, HapID: "H1"},
	}
	g, err := graph.Build(tuples)
	require.NoError(t, err)
	rid, _ := g.RangeID(r)
	m := g.HapIdToSamples(rid)
	assert.Len(t, m["H0"], 2)
	assert.Len(t, m["H1"], 1)
}

func TestFilterSparseRanges(t *testing.T) {
	dense := graph.ReferenceRange{Contig: "chr1", Start: 0, End: 1000}
	sparse := graph.ReferenceRange{Contig: "chr1", Start: 1000, End: 2000}
	tuples := []graph.Tuple{
		{Range: dense, Gamete: graph.SampleGamete{Sample: "A", Gamete: 0}, HapID: "H0"},
		{Range: dense, Gamete: graph.SampleGamete{Sample: "B", Gamete: 0}, HapID: "H0"},
		{Range: sparse, Gamete: graph.SampleGamete{Sample: "A", Gamete: 0}, HapID: "H0"},
	}
	g, err := graph.Build(tuples)
	require.NoError(t, err)
	kept := g.FilterSparseRanges(2)
	require.Len(t, kept, 1)
	assert.Equal(t, dense, g.Ranges()[kept[0]])
}

func TestParseFilesAndBuild(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "graph")
	defer cleanup()
	path := dir + "/sample.hvcf"
	writeFile(t, path, ""+
		"##hapId=H0 region=scaffold_1:0-1000 checksum=deadbeef\n"+
		"#CONTIG\tSTART\tEND\tSAMPLE\tGAMETE\tHAPID\n"+
		"chr1\t0\t1000\tB73\t0\tH0\n"+
		"chr1\t0\t1000\tMo17\t0\tH1\n")

	ctx := vcontext.Background()
	tuples, err := graph.ParseFiles(ctx, []string{path})
	require.NoError(t, err)
	require.Len(t, tuples, 2)

	g, err := graph.Build(tuples)
	require.NoError(t, err)
	rid, ok := g.RangeID(graph.ReferenceRange{Contig: "chr1", Start: 0, End: 1000})
	require.True(t, ok)
	meta, ok := g.HapMetadata(rid, "H0")
	require.True(t, ok)
	assert.Equal(t, "scaffold_1:0-1000", meta.AssemblyRegion)
	assert.True(t, meta.HasChecksum)
	assert.Equal(t, uint64(0xdeadbeef), meta.Checksum)
}

func TestParseFilesRejectsMalformedRow(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "graph")
	defer cleanup()
	path := dir + "/bad.hvcf"
	writeFile(t, path, "chr1\t0\tnotanumber\tB73\t0\tH0\n")

	ctx := vcontext.Background()
	_, err := graph.ParseFiles(ctx, []string{path})
	require.Error(t, err)
	assert.True(t, phgerr.Is(err, phgerr.MalformedInput))
}
