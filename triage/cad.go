package triage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/hazyhaar/triage/cadconv"
)

// CADProcessor is the enhanced CAD extractor: DXF-family files get
// structured extraction; proprietary binaries (DWG) are converted through
// the resolver first. When no converter is available the file is still
// processed and gets a descriptive placeholder instead of a rejection.
type CADProcessor struct {
	resolver *cadconv.Resolver
	limiter  *rate.Limiter // nil = unlimited
}

// NewCADProcessor builds the enhanced CAD extractor. limiter may be nil.
func NewCADProcessor(resolver *cadconv.Resolver, limiter *rate.Limiter) *CADProcessor {
	return &CADProcessor{resolver: resolver, limiter: limiter}
}

func (c *CADProcessor) Name() string { return "EnhancedCADProcessor" }

func (c *CADProcessor) CanHandle(ft FileType) bool { return ft == TypeCAD }

func (c *CADProcessor) Process(ctx context.Context, path string, _ FileType) ProcessingResult {
	start := time.Now()
	res := ProcessingResult{
		Metadata: map[string]any{"processor": c.Name()},
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	dxfPath := path
	var cleanup func()
	if ext != "dxf" {
		converted, cl, err := c.convert(ctx, path)
		if err != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("CAD content extraction unavailable (%v); emitted placeholder summary", err))
			res.Success = true
			res.ExtractedText = cadPlaceholder(path, ext)
			res.ProcessingTime = time.Since(start).Seconds()
			return res
		}
		dxfPath = converted
		cleanup = cl
		res.Metadata["converted_from"] = ext
	}
	if cleanup != nil {
		defer cleanup()
	}

	sum, err := parseDXF(dxfPath)
	if err != nil {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("structured CAD extraction failed (%v); emitted placeholder summary", err))
		res.Success = true
		res.ExtractedText = cadPlaceholder(path, ext)
		res.ProcessingTime = time.Since(start).Seconds()
		return res
	}

	res.Metadata["cad_data"] = map[string]any{
		"entity_count":      sum.EntityCount,
		"layer_count":       len(sum.Layers),
		"layers":            sum.Layers,
		"block_count":       sum.BlockCount,
		"text_entity_count": len(sum.TextEntities),
		"has_dimensions":    sum.HasDimensions,
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CAD drawing %s: %d entities on %d layers",
		filepath.Base(path), sum.EntityCount, len(sum.Layers))
	if sum.BlockCount > 0 {
		fmt.Fprintf(&sb, ", %d blocks", sum.BlockCount)
	}
	if sum.HasDimensions {
		sb.WriteString(", dimensioned")
	}
	if len(sum.TextEntities) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(sum.TextEntities, "\n"))
	}

	res.Success = true
	res.ExtractedText = sb.String()
	res.ProcessingTime = time.Since(start).Seconds()
	return res
}

// convert obtains a DXF rendition of a proprietary CAD file via the
// resolver. The returned cleanup removes the converted artifact.
func (c *CADProcessor) convert(ctx context.Context, path string) (string, func(), error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", nil, err
		}
	}

	outDir, err := os.MkdirTemp("", "triage-cad-*")
	if err != nil {
		return "", nil, err
	}
	converted, err := c.resolver.Convert(ctx, path, outDir)
	if err != nil {
		os.RemoveAll(outDir)
		return "", nil, err
	}
	return converted, func() { os.RemoveAll(outDir) }, nil
}

// cadFormatNames maps CAD extensions to human-readable format names.
var cadFormatNames = map[string]string{
	"dwg": "DWG (AutoCAD proprietary binary)",
	"dxf": "DXF (Drawing Exchange Format)",
	"dwf": "DWF (Design Web Format)",
}

// cadPlaceholder describes a CAD file whose content could not be extracted.
// Downstream consumers index this summary instead of dropping the file.
func cadPlaceholder(path, ext string) string {
	formatName := cadFormatNames[ext]
	if formatName == "" {
		formatName = strings.ToUpper(ext)
	}

	var size string
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	} else {
		size = "unknown"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CAD drawing: %s\n", filepath.Base(path))
	fmt.Fprintf(&sb, "Format: %s\n", formatName)
	fmt.Fprintf(&sb, "Size: %s\n", size)
	sb.WriteString("Category: cad\n")
	sb.WriteString("Content extraction unavailable: this format requires specialized viewer or converter software.\n")
	sb.WriteString("Recommended viewers: AutoCAD, ODA File Converter, LibreCAD (after DXF conversion).")
	return sb.String()
}
