// internal/extractor/extractor.go
package extractor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("document is empty")
	ErrCorruptDocument   = errors.New("document is corrupt")
)

// Format is a document type recognized by file extension.
type Format string

const (
	FormatTXT     Format = "txt"
	FormatDOCX    Format = "docx"
	FormatDOC     Format = "doc"
	FormatUnknown Format = ""
)

// FormatOf returns the document format for filename.
func FormatOf(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text":
		return FormatTXT
	case ".docx":
		return FormatDOCX
	case ".doc":
		return FormatDOC
	default:
		return FormatUnknown
	}
}

// Extractor turns an uploaded document into plain text.
type Extractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// Chain tries each extractor in order and moves on only when one reports
// ErrUnsupportedFormat.
type Chain []Extractor

func (c Chain) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	err := error(ErrUnsupportedFormat)
	for _, ex := range c {
		var text string
		text, err = ex.Extract(ctx, filename, content)
		if err == nil || !errors.Is(err, ErrUnsupportedFormat) {
			return text, err
		}
	}
	return "", err
}
