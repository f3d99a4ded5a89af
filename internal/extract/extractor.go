// Package extract provides text extraction from the document formats accepted for ingestion.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/models"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// FormatOf returns the format tag for path based on its extension.
// Unknown extensions are treated as plain text.
func FormatOf(path string) models.Format {
	return formatOfExt(filepath.Ext(path))
}

func formatOfExt(ext string) models.Format {
	switch strings.ToLower(ext) {
	case ".pdf":
		return models.FormatPDF
	case ".html", ".htm":
		return models.FormatHTML
	case ".rtf":
		return models.FormatRTF
	default:
		return models.FormatText
	}
}

// Extract reads the file at path and returns its text content.
// Errors are extraction errors carrying the path.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errs.E(errs.KindExtraction, "extract "+path, fmt.Errorf("read file: %w", err))
	}
	text, err := e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return "", errs.E(errs.KindExtraction, "extract "+path, err)
	}
	return text, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch formatOfExt(ext) {
	case models.FormatPDF:
		return extractPDF(content)
	case models.FormatHTML:
		return extractHTML(content)
	case models.FormatRTF:
		return extractRTF(content)
	default:
		return extractPlain(content)
	}
}
