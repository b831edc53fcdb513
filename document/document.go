// Package document reads source requirements documents for extraction.
//
// Only plain text and markdown are parsed here; richer formats (docx, pdf)
// belong to external converters. A ParseError is fatal for the extract
// stage: there is no retry that fixes an unreadable document.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DetectedType identifies the source document format.
type DetectedType string

const (
	TypeText     DetectedType = "text"
	TypeMarkdown DetectedType = "markdown"
)

// maxDocumentSize caps how much source text is read into a run.
const maxDocumentSize = 4 * 1024 * 1024 // 4MB

// ParseError indicates the source document could not be read or is not a
// supported format.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse document %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Source reads a document and detects its type.
type Source interface {
	Read(path string) (text string, typ DetectedType, err error)
}

// FileSource reads documents from the local filesystem.
type FileSource struct{}

// NewFileSource creates a filesystem-backed document source.
func NewFileSource() *FileSource {
	return &FileSource{}
}

// Read implements Source.
func (s *FileSource) Read(path string) (string, DetectedType, error) {
	typ, err := detectType(path)
	if err != nil {
		return "", "", &ParseError{Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", "", &ParseError{Path: path, Err: err}
	}
	if info.Size() > maxDocumentSize {
		return "", "", &ParseError{Path: path, Err: fmt.Errorf("document exceeds %d bytes", maxDocumentSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", &ParseError{Path: path, Err: err}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", "", &ParseError{Path: path, Err: errors.New("document is empty")}
	}
	return text, typ, nil
}

func detectType(path string) (DetectedType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", "":
		return TypeText, nil
	case ".md", ".markdown":
		return TypeMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}
