package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVExtractor converts CSV files into tab-separated plain text, one record
// per line.
type CSVExtractor struct{}

// Supports reports whether this extractor handles the MIME type.
func (CSVExtractor) Supports(mime string) bool {
	return mime == MIMECSV
}

// Extract reads the CSV record by record so a single malformed row does not
// discard the rest of the file.
func (CSVExtractor) Extract(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open csv; %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var sb strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		sb.WriteString(strings.Join(record, "\t"))
		sb.WriteByte('\n')
	}

	return strings.TrimSpace(sb.String()), nil
}
