// Package document loads source documents and extracts their plain text.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for document loading.
var (
	// ErrUnsupportedType is returned for file types the loader cannot read.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrEmptyDocument is returned when a document yields no text.
	ErrEmptyDocument = errors.New("document has no extractable text")
)

// Type identifies how a document's text is extracted.
type Type string

const (
	// TypeText is plain text, used verbatim.
	TypeText Type = "text"

	// TypeMarkdown is markdown, used verbatim (structure is kept as text).
	TypeMarkdown Type = "markdown"

	// TypePDF is PDF, text is extracted page by page.
	TypePDF Type = "pdf"
)

// extensionTypes maps lowercase file extensions to document types.
var extensionTypes = map[string]Type{
	".txt":      TypeText,
	".text":     TypeText,
	".log":      TypeText,
	".md":       TypeMarkdown,
	".markdown": TypeMarkdown,
	".pdf":      TypePDF,
}

// Document is a loaded source document with its extracted text.
type Document struct {
	// Source identifies the document, typically its file path.
	Source string

	// Type is the detected document type.
	Type Type

	// Content is the extracted plain text.
	Content string

	// Metadata carries loader-provided key-value pairs, merged into every
	// chunk derived from this document.
	Metadata map[string]interface{}
}

// DetectType returns the document type for a file path based on its
// extension. Returns ErrUnsupportedType for unknown extensions.
func DetectType(path string) (Type, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
}

// Supported reports whether the file's extension is loadable.
func Supported(path string) bool {
	_, err := DetectType(path)
	return err == nil
}

// SupportedExtensions returns the loadable file extensions.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionTypes))
	for ext := range extensionTypes {
		exts = append(exts, ext)
	}
	return exts
}

// FromText wraps raw text as a document, for callers that already hold
// content (stdin, tests) rather than a file.
func FromText(source, content string) *Document {
	return &Document{
		Source:  source,
		Type:    TypeText,
		Content: content,
		Metadata: map[string]interface{}{
			"doc_type": string(TypeText),
		},
	}
}

// Load reads a file and extracts its text according to the detected type.
func Load(path string) (*Document, error) {
	docType, err := DetectType(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var content string
	metadata := map[string]interface{}{
		"doc_type": string(docType),
	}

	switch docType {
	case TypePDF:
		text, pageCount := extractPDFText(data)
		content = text
		metadata["page_count"] = pageCount
	default:
		content = string(data)
	}

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}

	return &Document{
		Source:   path,
		Type:     docType,
		Content:  content,
		Metadata: metadata,
	}, nil
}
