package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// DOCXExtractor extracts text from Word documents. DOCX is a ZIP archive;
// the body lives in word/document.xml. Paragraphs become lines, table rows
// become cells joined with " | ".
type DOCXExtractor struct{}

// Supports reports whether this extractor handles the MIME type.
func (DOCXExtractor) Supports(mime string) bool {
	return mime == MIMEDOCX || mime == MIMEDOC
}

// Extract returns the document body as plain text.
func (DOCXExtractor) Extract(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx as zip; %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			data, err := readZipFile(f)
			if err != nil {
				return "", err
			}
			return parseDocumentXML(data)
		}
	}
	return "", fmt.Errorf("word/document.xml not found in archive")
}

// parseDocumentXML walks the WordprocessingML body collecting run text.
// Paragraph boundaries (w:p) emit newlines; table cells (w:tc) within a row
// are joined with " | ".
func parseDocumentXML(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		out      strings.Builder
		para     strings.Builder
		row      []string
		inCell   bool
		cellText strings.Builder
	)

	flushPara := func() {
		if s := strings.TrimSpace(para.String()); s != "" {
			out.WriteString(s)
			out.WriteByte('\n')
		}
		para.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml; %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tc":
				inCell = true
				cellText.Reset()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if !inCell {
					flushPara()
				}
			case "tc":
				inCell = false
				if s := strings.TrimSpace(cellText.String()); s != "" {
					row = append(row, s)
				}
			case "tr":
				if len(row) > 0 {
					out.WriteString(strings.Join(row, " | "))
					out.WriteByte('\n')
					row = nil
				}
			}
		case xml.CharData:
			if inCell {
				cellText.Write(t)
			} else {
				para.Write(t)
			}
		}
	}
	flushPara()

	return strings.TrimSpace(out.String()), nil
}

// XLSXExtractor extracts text from Excel workbooks. Each worksheet is
// serialized row by row with cells joined by tabs, under a sheet header.
type XLSXExtractor struct{}

// Supports reports whether this extractor handles the MIME type.
func (XLSXExtractor) Supports(mime string) bool {
	return mime == MIMEXLSX || mime == MIMEXLS
}

// Extract returns all worksheet contents as plain text.
func (XLSXExtractor) Extract(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open xlsx as zip; %w", err)
	}
	defer r.Close()

	shared, err := readSharedStrings(&r.Reader)
	if err != nil {
		return "", err
	}

	var sheets []*zip.File
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			sheets = append(sheets, f)
		}
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].Name < sheets[j].Name })

	var out strings.Builder
	for i, f := range sheets {
		rows, err := parseSheetRows(f, shared)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&out, "--- Sheet %d ---\n", i+1)
		for _, cells := range rows {
			out.WriteString(strings.Join(cells, "\t"))
			out.WriteByte('\n')
		}
		out.WriteByte('\n')
	}

	return strings.TrimSpace(out.String()), nil
}

// readSharedStrings loads xl/sharedStrings.xml, which holds the string pool
// referenced by cells of type "s".
func readSharedStrings(r *zip.Reader) ([]string, error) {
	for _, f := range r.File {
		if f.Name != "xl/sharedStrings.xml" {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}

		var pool []string
		dec := xml.NewDecoder(bytes.NewReader(data))
		var cur strings.Builder
		depth := 0
		for {
			tok, err := dec.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to parse sharedStrings.xml; %w", err)
			}
			switch t := tok.(type) {
			case xml.StartElement:
				if t.Name.Local == "si" {
					depth = 1
					cur.Reset()
				}
			case xml.CharData:
				if depth == 1 {
					cur.Write(t)
				}
			case xml.EndElement:
				if t.Name.Local == "si" {
					depth = 0
					pool = append(pool, cur.String())
				}
			}
		}
		return pool, nil
	}
	return nil, nil
}

// sheetCell mirrors the SpreadsheetML cell element.
type sheetCell struct {
	Ref   string `xml:"r,attr"`
	Type  string `xml:"t,attr"`
	Value string `xml:"v"`
	IS    string `xml:"is>t"`
}

// sheetRow mirrors the SpreadsheetML row element.
type sheetRow struct {
	Cells []sheetCell `xml:"c"`
}

// parseSheetRows decodes one worksheet into rows of resolved cell strings.
func parseSheetRows(f *zip.File, shared []string) ([][]string, error) {
	data, err := readZipFile(f)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Rows []sheetRow `xml:"sheetData>row"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse worksheet %s; %w", f.Name, err)
	}

	rows := make([][]string, 0, len(doc.Rows))
	for _, r := range doc.Rows {
		cells := make([]string, 0, len(r.Cells))
		for _, c := range r.Cells {
			cells = append(cells, resolveCell(c, shared))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows, nil
}

// resolveCell maps a raw cell to its display string. Shared-string cells
// index into the pool; inline strings carry their own text.
func resolveCell(c sheetCell, shared []string) string {
	switch c.Type {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err == nil && idx >= 0 && idx < len(shared) {
			return shared[idx]
		}
		return ""
	case "inlineStr":
		return c.IS
	default:
		return c.Value
	}
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s; %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s; %w", f.Name, err)
	}
	return data, nil
}
