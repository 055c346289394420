/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func mustStat(t *testing.T, path string) os.FileInfo {
	t.Helper()
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected output %s: %v", path, err)
	}
	if st.Size() == 0 {
		t.Fatalf("output %s is empty", path)
	}
	return st
}

func TestBatchExportWebPreset(t *testing.T) {
	dh := sampleHandle(t)
	written, err := BatchExport(dh, BatchOptions{Preset: PresetWeb})
	if err != nil {
		t.Fatalf("batch export web: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected 2 outputs, got %v", written)
	}
	base := filepath.Join(dh.Root, "exports", "web")
	mustStat(t, filepath.Join(base, "test-canvas.png"))
	mustStat(t, filepath.Join(base, "test-canvas.svg"))
}

func TestBatchExportPrintPresetUsesHighDPI(t *testing.T) {
	dh := sampleHandle(t)
	written, err := BatchExport(dh, BatchOptions{Preset: PresetPrint})
	if err != nil {
		t.Fatalf("batch export print: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected 2 outputs, got %v", written)
	}
	base := filepath.Join(dh.Root, "exports", "print")
	mustStat(t, filepath.Join(base, "test-canvas.pdf"))

	// 300 dpi blows the 200x160 canvas up by 300/96.
	f, err := os.Open(filepath.Join(base, "test-canvas.png"))
	if err != nil {
		t.Fatalf("open print png: %v", err)
	}
	defer func() { _ = f.Close() }()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode print png: %v", err)
	}
	if cfg.Width != 625 || cfg.Height != 500 {
		t.Fatalf("print png size %dx%d, want 625x500", cfg.Width, cfg.Height)
	}
}

func TestBatchExportArchivePreset(t *testing.T) {
	dh := sampleHandle(t)
	written, err := BatchExport(dh, BatchOptions{Preset: PresetArchive})
	if err != nil {
		t.Fatalf("batch export archive: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected 1 output, got %v", written)
	}
	mustStat(t, filepath.Join(dh.Root, "exports", "archive", "test-canvas.zip"))
}

func TestBatchExportExplicitFormatsAndOutDir(t *testing.T) {
	dh := sampleHandle(t)
	written, err := BatchExport(dh, BatchOptions{Formats: []string{"PNG"}, OutDir: "drop"})
	if err != nil {
		t.Fatalf("batch export: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected 1 output, got %v", written)
	}
	mustStat(t, filepath.Join(dh.Root, "exports", "drop", "test-canvas.png"))
}

func TestBatchExportRejectsUnknownFormat(t *testing.T) {
	dh := sampleHandle(t)
	if _, err := BatchExport(dh, BatchOptions{Formats: []string{"webp"}}); err == nil {
		t.Fatal("expected unknown format error")
	}
}
