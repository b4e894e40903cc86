package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestLoad_Text(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "paris.txt", []byte("Paris is the capital of France."))

	text, err := New().Load(p)
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", text)
}

func TestLoad_TextDropsInvalidBytes(t *testing.T) {
	dir := t.TempDir()
	data := append([]byte("\xef\xbb\xbfcaf\xc3\xa9 "), 0xff, 0xfe, 'o', 'k', 0x00)
	p := writeFile(t, dir, "mixed.TXT", data)

	text, err := New().Load(p)
	require.NoError(t, err)
	assert.Equal(t, "café ok", text)
}

func TestLoad_Unsupported(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "notes.docx", []byte("binary"))

	text, err := New().Load(p)
	assert.Empty(t, text)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := New().Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, domain.ErrLoad)
}

func TestLoad_BrokenPDF(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "broken.pdf", []byte("this is not a pdf"))

	text, err := New().Load(p)
	assert.Empty(t, text)
	assert.ErrorIs(t, err, domain.ErrLoad)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.PDF"))
	assert.True(t, Supported("b.txt"))
	assert.True(t, Supported("c.md"))
	assert.False(t, Supported("d.docx"))
	assert.False(t, Supported("noext"))
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("a"))
	b := writeFile(t, dir, "b.pdf", []byte("b"))
	writeFile(t, dir, "c.docx", []byte("c"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, filepath.Join(dir, "sub"), "d.txt", []byte("d"))

	got := ExpandPaths([]string{dir, filepath.Join(dir, "*.txt"), "missing.txt"})
	assert.Equal(t, []string{a, b, "missing.txt"}, got)
}
