// internal/extractor/local.go
package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const maxDocumentXMLBytes = 64 << 20

// Local extracts TXT and DOCX documents in-process.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (l *Local) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	format := FormatOf(filename)
	if format != FormatTXT && format != FormatDOCX {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	if len(content) == 0 {
		return "", ErrEmptyDocument
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if format == FormatDOCX {
		return docxText(content)
	}
	return decodeText(content)
}

// decodeText honours a UTF-8 or UTF-16 byte order mark and falls back to
// Windows-1252 when the bytes are not valid UTF-8.
func decodeText(content []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if utf8.Valid(out) {
		return string(out), nil
	}

	out, err = charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return string(out), nil
}

// docxText reads word/document.xml. Paragraphs become lines and the cells
// of a table row are joined by tabs so one row stays one line.
func docxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: word/document.xml missing", ErrCorruptDocument)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	defer rc.Close()

	var (
		b      strings.Builder
		dec    = xml.NewDecoder(io.LimitReader(rc, maxDocumentXMLBytes))
		inText bool
		rows   []int // cells seen per open table row
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				if len(rows) > 0 {
					b.WriteByte(' ')
				} else {
					b.WriteByte('\n')
				}
			case "tr":
				rows = append(rows, 0)
			case "tc":
				if n := len(rows); n > 0 {
					if rows[n-1] > 0 {
						b.WriteByte('\t')
					}
					rows[n-1]++
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if len(rows) > 0 {
					b.WriteByte(' ')
				} else {
					b.WriteByte('\n')
				}
			case "tr":
				if len(rows) > 0 {
					rows = rows[:len(rows)-1]
				}
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}
