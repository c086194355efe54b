package document_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/document"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    document.Type
		wantErr bool
	}{
		{name: "plain text", path: "notes.txt", want: document.TypeText},
		{name: "log file", path: "server.log", want: document.TypeText},
		{name: "markdown", path: "README.md", want: document.TypeMarkdown},
		{name: "markdown long extension", path: "doc.markdown", want: document.TypeMarkdown},
		{name: "pdf", path: "paper.pdf", want: document.TypePDF},
		{name: "uppercase extension", path: "NOTES.TXT", want: document.TypeText},
		{name: "unknown extension", path: "binary.exe", wantErr: true},
		{name: "no extension", path: "Makefile", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := document.DetectType(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, document.ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, document.Supported("a.md"))
	assert.False(t, document.Supported("a.bin"))
}

func TestLoad_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes\nmore notes\n"), 0o644))

	doc, err := document.Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, doc.Source)
	assert.Equal(t, document.TypeText, doc.Type)
	assert.Equal(t, "some notes\nmore notes\n", doc.Content)
	assert.Equal(t, "text", doc.Metadata["doc_type"])
}

func TestLoad_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody text."), 0o644))

	doc, err := document.Load(path)
	require.NoError(t, err)

	assert.Equal(t, document.TypeMarkdown, doc.Type)
	assert.Contains(t, doc.Content, "# Title")
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n\t\n"), 0o644))

	_, err := document.Load(path)
	require.ErrorIs(t, err, document.ErrEmptyDocument)
}

func TestLoad_UnsupportedType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50}, 0o644))

	_, err := document.Load(path)
	require.ErrorIs(t, err, document.ErrUnsupportedType)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := document.Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestFromText(t *testing.T) {
	doc := document.FromText("stdin", "hello world")

	assert.Equal(t, "stdin", doc.Source)
	assert.Equal(t, document.TypeText, doc.Type)
	assert.Equal(t, "hello world", doc.Content)
}

func TestSupportedExtensions(t *testing.T) {
	exts := document.SupportedExtensions()
	assert.Contains(t, exts, ".txt")
	assert.Contains(t, exts, ".md")
	assert.Contains(t, exts, ".pdf")
}
