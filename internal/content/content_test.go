package content

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirReadAndPrefix(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "84.txt"), []byte("Frankenstein;\nor, the Modern Prométhée\xff!"), 0o644))
	d := NewDir(root)
	ctx := context.Background()

	text, err := d.Read(ctx, "84.txt")
	require.NoError(t, err)
	assert.Equal(t, "Frankenstein;\nor, the Modern Prométhée!", text)

	prefix, err := d.ReadPrefix(ctx, "84.txt", 12)
	require.NoError(t, err)
	assert.Equal(t, "Frankenstein", prefix)

	prefix, err = d.ReadPrefix(ctx, "84.txt", 1000)
	require.NoError(t, err)
	assert.Equal(t, text, prefix)
}

func TestDirErrors(t *testing.T) {
	d := NewDir(t.TempDir())
	_, err := d.Read(context.Background(), "missing.txt")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = d.Read(context.Background(), "../etc/passwd")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.ReadPrefix(ctx, "missing.txt", 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirWriteExists(t *testing.T) {
	d := NewDir(t.TempDir())
	assert.False(t, d.Exists("books/1.txt"))
	require.NoError(t, d.Write("books/1.txt", "hello"))
	assert.True(t, d.Exists("books/1.txt"))
	text, err := d.Read(context.Background(), "books/1.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "line one line two...", Snippet("line one\nline two"))
	assert.Equal(t, "a b...", Snippet("a\r\nb"))
	assert.Equal(t, "...", Snippet(""))
}

func TestPaginate(t *testing.T) {
	text := "abcdefghij"
	tests := []struct {
		name      string
		page      int
		size      int
		wantPage  int
		wantTotal int
		wantText  string
	}{
		{"first", 1, 4, 1, 3, "abcd"},
		{"last partial", 3, 4, 3, 3, "ij"},
		{"clamped high", 9, 4, 3, 3, "ij"},
		{"clamped low", 0, 4, 1, 3, "abcd"},
		{"exact fit", 2, 5, 2, 2, "fghij"},
		{"huge size", 1, math.MaxInt, 1, 1, "abcdefghij"},
		{"huge page and size", math.MaxInt, math.MaxInt, 1, 1, "abcdefghij"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(text, tt.page, tt.size)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantTotal, p.TotalPages)
			assert.Equal(t, tt.wantText, p.Text)
		})
	}

	p := Paginate("", 3, 10)
	assert.Equal(t, Page{Page: 1, TotalPages: 0, Text: ""}, p)

	p = Paginate("héllo", 2, 2)
	assert.Equal(t, "ll", p.Text)
}
