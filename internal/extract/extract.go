// Package extract converts uploaded documents into plain UTF-8 text.
// Extractors are selected by detected MIME type with a filename-extension
// fallback when content sniffing is inconclusive.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/oriondocs/orion/internal/errs"
)

// Extractor converts one document format into plain text.
type Extractor interface {
	// Supports reports whether this extractor handles the given MIME type.
	Supports(mime string) bool

	// Extract reads the file at path and returns its text content.
	Extract(path string) (string, error)
}

// MIME types recognized by the default registry.
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDOC  = "application/msword"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEXLS  = "application/vnd.ms-excel"
	MIMECSV  = "text/csv"
	MIMEText = "text/plain"
	MIMEJSON = "application/json"
	MIMEXML  = "application/xml"
	MIMEXML2 = "text/xml"
)

// extensionMIME is the extension fallback used when content detection fails
// or returns an unhelpful generic type.
var extensionMIME = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
	".doc":  MIMEDOC,
	".xlsx": MIMEXLSX,
	".xls":  MIMEXLS,
	".csv":  MIMECSV,
	".txt":  MIMEText,
	".json": MIMEJSON,
	".xml":  MIMEXML,
}

// DetectMIME determines the MIME type of the file at path by inspecting its
// leading bytes, falling back to the extension of name (the original client
// filename) when sniffing yields application/octet-stream.
func DetectMIME(path, name string) string {
	if mt, err := mimetype.DetectFile(path); err == nil {
		detected := baseMIME(mt.String())
		if detected != "application/octet-stream" {
			return detected
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	if m, ok := extensionMIME[ext]; ok {
		return m
	}
	return "application/octet-stream"
}

// baseMIME strips any parameters such as "; charset=utf-8".
func baseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}

// Registry dispatches documents to format-specific extractors.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry with the default format bindings.
func NewRegistry() *Registry {
	return &Registry{
		extractors: []Extractor{
			PDFExtractor{},
			DOCXExtractor{},
			XLSXExtractor{},
			CSVExtractor{},
			TextExtractor{},
		},
	}
}

// Supported reports whether any registered extractor handles the MIME type.
func (r *Registry) Supported(mime string) bool {
	for _, e := range r.extractors {
		if e.Supports(mime) {
			return true
		}
	}
	return false
}

// Extract selects the extractor for the MIME type and runs it.
func (r *Registry) Extract(path, mime string) (string, error) {
	for _, e := range r.extractors {
		if e.Supports(mime) {
			text, err := e.Extract(path)
			if err != nil {
				return "", fmt.Errorf("%w: %s; %w", errs.ErrExtractionFailed, mime, err)
			}
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: no extractor for %q", errs.ErrUnsupportedType, mime)
}
