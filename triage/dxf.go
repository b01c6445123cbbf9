package triage

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// dxfSummary is the structured content of a DXF drawing.
type dxfSummary struct {
	EntityCount   int
	Layers        []string
	BlockCount    int
	TextEntities  []string
	HasDimensions bool
}

// parseDXF scans the ASCII DXF tag stream: alternating group-code and value
// lines. It counts entities and blocks, collects layer names and embedded
// text, and flags dimension entities. Binary DXF is rejected.
func parseDXF(path string) (*dxfSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	sum := &dxfSummary{}
	layers := map[string]struct{}{}

	section := ""
	entityType := ""
	pairs := 0

	for {
		code, ok := nextLine(sc)
		if !ok {
			break
		}
		value, ok := nextLine(sc)
		if !ok {
			break
		}
		pairs++

		switch code {
		case "0":
			switch value {
			case "SECTION", "ENDSEC", "EOF":
				entityType = ""
				if value != "SECTION" {
					section = ""
				}
			case "BLOCK":
				sum.BlockCount++
				entityType = value
			default:
				entityType = value
				if section == "ENTITIES" {
					sum.EntityCount++
					if value == "DIMENSION" {
						sum.HasDimensions = true
					}
				}
			}
		case "2":
			if section == "" {
				section = value
			} else if section == "TABLES" && entityType == "LAYER" {
				layers[value] = struct{}{}
			}
		case "8":
			if value != "" {
				layers[value] = struct{}{}
			}
		case "1":
			if isDXFTextEntity(entityType) && strings.TrimSpace(value) != "" {
				sum.TextEntities = append(sum.TextEntities, strings.TrimSpace(value))
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan dxf: %w", err)
	}
	if pairs == 0 {
		return nil, fmt.Errorf("not a readable DXF tag stream")
	}

	for l := range layers {
		sum.Layers = append(sum.Layers, l)
	}
	sort.Strings(sum.Layers)
	return sum, nil
}

func nextLine(sc *bufio.Scanner) (string, bool) {
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func isDXFTextEntity(entityType string) bool {
	switch entityType {
	case "TEXT", "MTEXT", "ATTRIB", "ATTDEF":
		return true
	}
	return false
}
