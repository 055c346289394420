/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package stylepack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	applog "canvasforge/internal/log"
)

const (
	presetsDirName = "presets"
	manifestName   = "stylepack.manifest.txt"
)

// ExportPresets zips the workspace presets directory into a single
// shareable pack. The archive preserves the directory structure and
// carries a small manifest at the root for quick human inspection. An
// empty or missing presets directory still produces an archive with
// just the manifest.
func ExportPresets(workspaceRoot, destZipPath string) error {
	l := applog.WithOperation(applog.WithComponent("stylepack"), "export").With(slog.String("workspace", workspaceRoot))
	if strings.TrimSpace(workspaceRoot) == "" {
		return errors.New("workspace root is required")
	}
	if strings.TrimSpace(destZipPath) == "" {
		return errors.New("destination zip path is required")
	}
	presetsDir := filepath.Join(workspaceRoot, presetsDirName)
	if _, err := os.Stat(presetsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(presetsDir, 0o755); err != nil {
			return fmt.Errorf("ensure presets dir: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o755); err != nil {
		return fmt.Errorf("ensure zip dir: %w", err)
	}
	// On Windows, remove destination if present before create.
	_ = os.Remove(destZipPath)

	zf, err := os.Create(destZipPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)
	defer func() { _ = zw.Close() }()

	manifest := fmt.Sprintf("CanvasForge Style Pack\nCreated: %s\nWorkspace: %s\n\nContents mirror the workspace /presets directory.\n",
		time.Now().Format(time.RFC3339), workspaceRoot)
	w, err := zw.Create(manifestName)
	if err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if _, err := w.Write([]byte(manifest)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	added := 0
	err = filepath.Walk(presetsDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(workspaceRoot, p)
		if err != nil {
			return err
		}
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(fw, f); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		return fmt.Errorf("build zip: %w", err)
	}
	l.Info("style pack exported", slog.Int("files", added), slog.String("zip", destZipPath))
	return nil
}

// InstallPack extracts a pack zip into the workspace presets directory.
// Existing files are never overwritten, and entries whose names would
// escape the presets directory are ignored. Returns the count of files
// installed.
func InstallPack(workspaceRoot, packZipPath string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("stylepack"), "install").With(slog.String("workspace", workspaceRoot))
	if strings.TrimSpace(workspaceRoot) == "" {
		return 0, errors.New("workspace root is required")
	}
	if strings.TrimSpace(packZipPath) == "" {
		return 0, errors.New("pack zip path is required")
	}
	presetsDir := filepath.Join(workspaceRoot, presetsDirName)
	if err := os.MkdirAll(presetsDir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure presets dir: %w", err)
	}

	r, err := zip.OpenReader(packZipPath)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	installed := 0
	for _, f := range r.File {
		name := f.Name
		if name == manifestName {
			continue
		}
		// Pack entries live under presets/; anything else is placed
		// there. Names must stay inside the directory once cleaned.
		rel := path.Clean(strings.TrimPrefix(name, presetsDirName+"/"))
		if rel == "." || rel == "" || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
			l.Warn("skip unsafe pack entry", slog.String("name", name))
			continue
		}
		targetPath := filepath.Join(presetsDir, filepath.FromSlash(rel))
		if _, err := os.Stat(targetPath); err == nil {
			l.Warn("skip existing file", slog.String("path", targetPath))
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return installed, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return installed, err
		}
		rc, err := f.Open()
		if err != nil {
			return installed, err
		}
		out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			_ = rc.Close()
			return installed, err
		}
		if _, err := io.Copy(out, rc); err != nil {
			_ = out.Close()
			_ = rc.Close()
			return installed, err
		}
		_ = out.Close()
		_ = rc.Close()
		installed++
	}
	l.Info("style pack installed", slog.Int("files", installed))
	return installed, nil
}
