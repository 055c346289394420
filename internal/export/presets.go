/*
 * Copyright (c) 2025 the CanvasForge authors.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"canvasforge/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb     PresetName = "web"     // 96-dpi PNG and SVG
	PresetPrint   PresetName = "print"   // 300-dpi PDF and PNG
	PresetArchive PresetName = "archive" // self-describing zip bundle
)

// BatchOptions controls batch export across multiple formats.
//
// Path semantics:
//   - If OutDir is empty or relative, outputs land under
//     <workspace>/exports/<preset>/.
//   - File names derive from the document name.
type BatchOptions struct {
	Preset      PresetName
	Formats     []string // allowed: png, svg, pdf, bundle; empty means preset defaults
	DPIOverride int      // when > 0 overrides the preset resolution
	Background  string   // hex; empty falls back to the document background
	OutDir      string
}

// BatchExport runs the exports the preset names and returns the paths
// written, in format order.
func BatchExport(dh *storage.DocumentHandle, opt BatchOptions) ([]string, error) {
	if dh == nil || dh.Doc == nil {
		return nil, fmt.Errorf("document handle is nil")
	}

	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	for i := range formats {
		formats[i] = strings.ToLower(strings.TrimSpace(formats[i]))
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
	}
	if baseOut == "" {
		baseOut = "batch"
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(dh.Root, "exports", baseOut)
	}

	dpi := opt.DPIOverride
	if dpi <= 0 {
		dpi = presetDPI(opt.Preset)
	}
	name := exportName(dh.Doc.Name)

	var written []string
	for _, f := range formats {
		switch f {
		case "png":
			out, err := ExportPNG(dh, filepath.Join(baseOut, name+".png"), PNGOptions{DPI: dpi, Background: opt.Background})
			if err != nil {
				return written, fmt.Errorf("png: %w", err)
			}
			written = append(written, out)
		case "svg":
			out, err := ExportSVG(dh, filepath.Join(baseOut, name+".svg"), SVGOptions{DPI: dpi, Background: opt.Background})
			if err != nil {
				return written, fmt.Errorf("svg: %w", err)
			}
			written = append(written, out)
		case "pdf":
			out, err := ExportPDF(dh, filepath.Join(baseOut, name+".pdf"), PDFOptions{DPI: dpi, Background: opt.Background})
			if err != nil {
				return written, fmt.Errorf("pdf: %w", err)
			}
			written = append(written, out)
		case "bundle":
			out, err := ExportBundle(dh, filepath.Join(baseOut, name+".zip"), BundleOptions{DPI: dpi, Background: opt.Background})
			if err != nil {
				return written, fmt.Errorf("bundle: %w", err)
			}
			written = append(written, out)
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "svg"}
	case PresetPrint:
		return []string{"pdf", "png"}
	case PresetArchive:
		return []string{"bundle"}
	default:
		return []string{"png"}
	}
}

func presetDPI(p PresetName) int {
	if p == PresetPrint {
		return 300
	}
	return baseDPI
}
