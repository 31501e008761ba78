package bgzf

import (
	"bytes"
	"io/ioutil"
	"math/rand"
	"os"
	"testing"

	"github.com/grailbio/base/grail"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	// Create random bytes.
	for _, length := range []int{0, 1, 100, 65279, 65280, 65281, 500000} {
		t.Logf("length: %d", length)
		input := make([]byte, length)
		n, err := rand.Read(input)
		require.Nil(t, err)
		assert.Equal(t, length, n)

		var buf bytes.Buffer
		w, err := NewWriter(&buf, 1)
		require.Nil(t, err)
		n, err = w.Write(input)
		assert.Nil(t, err)
		assert.Equal(t, length, n)
		require.Nil(t, w.Close())

		r, err := gzip.NewReader(&buf)
		require.Nil(t, err)
		actual, err := ioutil.ReadAll(r)
		require.Nil(t, err)
		assert.Equal(t, length, len(actual))
		assert.Equal(t, 0, bytes.Compare(input, actual))
	}
}

func TestVOffset(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 1)
	require.Nil(t, err)

	_, err = w.Write([]byte("ABCD"))
	require.Nil(t, err)
	assert.Equal(t, uint64(4), w.VOffset())

	// Force the current block to flush without appending the terminator, so
	// VOffset reflects the start of a fresh block.
	require.Nil(t, w.CloseWithoutTerminator())
	voffset1 := w.VOffset()
	assert.Equal(t, uint64(0), voffset1&uint64(0xffff))
	assert.NotEqual(t, uint64(0), voffset1>>16)

	_, err = w.Write([]byte("E"))
	require.Nil(t, err)
	voffset2 := w.VOffset()
	assert.Equal(t, uint64(1), voffset2&uint64(0xffff))
	assert.Equal(t, voffset1>>16, voffset2>>16)
}

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	defer shutdown()
	os.Exit(m.Run())
}
