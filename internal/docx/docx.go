// Package docx extracts raw text from .docx files. Exam papers and
// grading guides ship as Word documents, so only text matters here:
// formatting, images and tables are flattened to plain paragraphs.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// ExtractFile reads the .docx at path and returns its raw text.
func ExtractFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	return Extract(data)
}

// Extract returns the raw text of a .docx document given its bytes.
// Paragraphs become lines, tabs and breaks are preserved as whitespace.
func Extract(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	text, err := extractXML(rc)
	if err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}
	return text, nil
}

// extractXML walks WordprocessingML and collects the text runs.
// <w:p> ends a paragraph, <w:tab/> is a tab, <w:br/> a line break.
func extractXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var b strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
