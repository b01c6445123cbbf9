package triage

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractODT reads content.xml from the .odt archive and returns heading and
// paragraph text plus the number of blocks seen.
func extractODT(path string) (string, int, error) {
	rc, err := openZipPart(path, "content.xml")
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder
	var current strings.Builder
	inBlock := false
	blocks := 0
	depth := 0

	for {
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", 0, fmt.Errorf("parse content.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return "", 0, fmt.Errorf("content.xml exceeds XML nesting depth %d", maxXMLDepth)
			}
			// <text:h> and <text:p> both carry content.
			if t.Name.Local == "h" || t.Name.Local == "p" {
				inBlock = true
				current.Reset()
			}
		case xml.CharData:
			if inBlock {
				current.Write(t)
			}
		case xml.EndElement:
			depth--
			if (t.Name.Local == "h" || t.Name.Local == "p") && inBlock {
				inBlock = false
				text := strings.TrimSpace(current.String())
				if text == "" {
					continue
				}
				blocks++
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
	}

	return sb.String(), blocks, nil
}
