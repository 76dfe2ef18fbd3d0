package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// TextExtractor handles formats that are already plain text. JSON and XML
// pass through verbatim so their structure stays searchable.
type TextExtractor struct{}

// Supports reports whether this extractor handles the MIME type.
func (TextExtractor) Supports(mime string) bool {
	switch mime {
	case MIMEText, MIMEJSON, MIMEXML, MIMEXML2:
		return true
	}
	return false
}

// Extract reads the file and validates it decodes as UTF-8.
func (TextExtractor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read text file; %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8")
	}
	return strings.TrimSpace(string(data)), nil
}
