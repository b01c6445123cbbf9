package triage

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// maxXMLDepth guards against billion-laughs style nesting bombs in office
// archives.
const maxXMLDepth = 256

// extractDocx reads word/document.xml from the .docx archive and returns the
// paragraph text plus the number of paragraphs seen.
func extractDocx(path string) (string, int, error) {
	rc, err := openZipPart(path, "word/document.xml")
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder
	var current strings.Builder
	inParagraph := false
	paragraphs := 0
	depth := 0

	for {
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", 0, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return "", 0, fmt.Errorf("document.xml exceeds XML nesting depth %d", maxXMLDepth)
			}
			if t.Name.Local == "p" {
				inParagraph = true
				current.Reset()
			}
		case xml.CharData:
			if inParagraph {
				current.Write(t)
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				text := strings.TrimSpace(current.String())
				if text == "" {
					continue
				}
				paragraphs++
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
	}

	return sb.String(), paragraphs, nil
}

// openZipPart opens one named part of a zip archive.
func openZipPart(path, part string) (io.ReadCloser, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	for _, f := range r.File {
		if f.Name == part {
			rc, err := f.Open()
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("open %s: %w", part, err)
			}
			return &zipPartReader{rc: rc, zr: r}, nil
		}
	}
	r.Close()
	return nil, fmt.Errorf("%s not found in archive", part)
}

type zipPartReader struct {
	rc io.ReadCloser
	zr *zip.ReadCloser
}

func (z *zipPartReader) Read(p []byte) (int, error) { return z.rc.Read(p) }

func (z *zipPartReader) Close() error {
	z.rc.Close()
	return z.zr.Close()
}

// countXMLCharData totals the character-data bytes in an XML stream. Used by
// the quality assessor's office density probe; parse errors end the count.
func countXMLCharData(r io.Reader) int64 {
	decoder := xml.NewDecoder(r)
	var total int64
	depth := 0
	for {
		tok, err := decoder.Token()
		if err != nil {
			return total
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return total
			}
		case xml.EndElement:
			depth--
		case xml.CharData:
			total += int64(len(strings.TrimSpace(string(t))))
		}
	}
}
