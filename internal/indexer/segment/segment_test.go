package segment

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pagerank map[string]float64

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pagerank.seg")
	in := pagerank{"84": 0.25, "1342": 0.75}

	h, err := WriteFile(path, "pagerank", in)
	require.NoError(t, err)
	assert.Equal(t, "pagerank", h.Kind)

	var out pagerank
	got, err := ReadFile(path, "pagerank", &out)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, h.Checksum, got.Checksum)
	assert.Equal(t, h.RawLen, got.RawLen)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestDecodeDetectsCorruption(t *testing.T) {
	data, _, err := Encode("graph", map[string]int{"a": 1})
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xff
	var v map[string]int
	_, err = Decode(flipped, "graph", &v)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Decode(data, "index", &v)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Decode(data[:10], "graph", &v)
	assert.ErrorIs(t, err, ErrCorrupt)

	truncated := data[:len(data)-1]
	_, err = Decode(truncated, "graph", &v)
	assert.ErrorIs(t, err, ErrCorrupt)

	badMagic := append([]byte(nil), data...)
	badMagic[0] = 0
	_, err = Decode(badMagic, "graph", &v)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestEncodeRejectsBadKind(t *testing.T) {
	_, _, err := Encode("", 1)
	assert.Error(t, err)
	_, _, err = Encode("a-kind-name-that-is-too-long", 1)
	assert.Error(t, err)
}

func TestReadFileMissing(t *testing.T) {
	var v any
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope"), "index", &v)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
