/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"testing"
)

func TestEnvOverridesBackendURL(t *testing.T) {
	old := os.Getenv(EnvBackendURL)
	_ = os.Setenv(EnvBackendURL, "https://example.test:8443")
	t.Cleanup(func() { _ = os.Setenv(EnvBackendURL, old) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	old := os.Getenv(EnvTelemetryOptIn)
	_ = os.Setenv(EnvTelemetryOptIn, "true")
	t.Cleanup(func() { _ = os.Setenv(EnvTelemetryOptIn, old) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestMergeIncludesEnableServer(t *testing.T) {
	// Given a file config that sets enable_server, mergeInto should carry it through
	dst := Defaults()
	src := Defaults()
	src.General.EnableServer = true
	mergeInto(&dst, &src)
	if !dst.General.EnableServer {
		t.Fatalf("EnableServer was not merged from file config")
	}
}

func TestMergeIncludesHistoryAndWorkspace(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.History.MaxEntries = 250
	src.Workspace.Root = "/tmp/canvases"
	src.Workspace.AutosaveKeep = 3
	mergeInto(&dst, &src)
	if dst.History.MaxEntries != 250 {
		t.Fatalf("History.MaxEntries not merged: %d", dst.History.MaxEntries)
	}
	if dst.Workspace.Root != "/tmp/canvases" || dst.Workspace.AutosaveKeep != 3 {
		t.Fatalf("workspace fields not merged: %#v", dst.Workspace)
	}
}

func TestEnvOverridesHistoryMax(t *testing.T) {
	old := os.Getenv(EnvHistoryMax)
	_ = os.Setenv(EnvHistoryMax, "42")
	t.Cleanup(func() { _ = os.Setenv(EnvHistoryMax, old) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.History.MaxEntries != 42 {
		t.Fatalf("History.MaxEntries = %d, want 42", cfg.History.MaxEntries)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/cvf.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/cvf.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverrideForReportsSource(t *testing.T) {
	old := os.Getenv(EnvBackendTimeoutMs)
	_ = os.Setenv(EnvBackendTimeoutMs, "2500")
	t.Cleanup(func() { _ = os.Setenv(EnvBackendTimeoutMs, old) })
	env, ok := EnvOverrideFor("backend.timeout_ms")
	if !ok || env != EnvBackendTimeoutMs {
		t.Fatalf("EnvOverrideFor(backend.timeout_ms) = %q, %v", env, ok)
	}
	// theme has no env var at all
	if _, ok := EnvOverrideFor("general.theme"); ok {
		t.Fatalf("EnvOverrideFor(general.theme) reported an override")
	}
}

func TestEffectiveTimeoutFallback(t *testing.T) {
	b := BackendConfig{TimeoutMs: 0}
	if got, want := b.EffectiveTimeout(), "15000ms"; got != want {
		t.Fatalf("EffectiveTimeout() = %q, want %q", got, want)
	}
	b.TimeoutMs = 2500
	if got, want := b.EffectiveTimeout(), "2500ms"; got != want {
		t.Fatalf("EffectiveTimeout() = %q, want %q", got, want)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	oldLevel := os.Getenv(EnvLogLevel)
	oldFmt := os.Getenv(EnvLogFormat)
	oldSrc := os.Getenv(EnvLogSource)
	oldFile := os.Getenv(EnvLogFile)
	_ = os.Setenv(EnvLogLevel, "error")
	_ = os.Setenv(EnvLogFormat, "json")
	_ = os.Setenv(EnvLogSource, "1")
	_ = os.Setenv(EnvLogFile, "X:/cvf.log")
	t.Cleanup(func() {
		_ = os.Setenv(EnvLogLevel, oldLevel)
		_ = os.Setenv(EnvLogFormat, oldFmt)
		_ = os.Setenv(EnvLogSource, oldSrc)
		_ = os.Setenv(EnvLogFile, oldFile)
	})
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/cvf.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}
