package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts text from PDF documents page by page. Each page is
// prefixed with a page marker so chunk provenance survives chunking.
type PDFExtractor struct{}

// Supports reports whether this extractor handles the MIME type.
func (PDFExtractor) Supports(mime string) bool {
	return strings.EqualFold(mime, MIMEPDF)
}

// Extract returns the concatenated plain text of all pages.
func (PDFExtractor) Extract(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf; %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	n := rdr.NumPage()
	for i := 1; i <= n; i++ {
		page := rdr.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only or malformed page. Skip rather than fail the document.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n%s\n\n", i, text)
	}

	return strings.TrimSpace(sb.String()), nil
}
