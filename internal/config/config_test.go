package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SummarizerMode != SummarizerHeuristic {
		t.Errorf("SummarizerMode = %s, want %s", cfg.SummarizerMode, SummarizerHeuristic)
	}
	if cfg.SummarizerTimeoutSecs != 30 {
		t.Errorf("SummarizerTimeoutSecs = %d, want 30", cfg.SummarizerTimeoutSecs)
	}
	if cfg.SummarizerConcurrency != 4 {
		t.Errorf("SummarizerConcurrency = %d, want 4", cfg.SummarizerConcurrency)
	}
	if cfg.CreatedBy != "" || cfg.SummarizerURL != "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.SummarizerMode != SummarizerHeuristic || cfg.SummarizerTimeoutSecs != 30 {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
		"created_by": "ci-bot",
		"summarizer_mode": "chat",
		"summarizer_url": "http://localhost:8080/v1",
		"summarizer_timeout_secs": 60,
		"disabled_tools": ["bundle_verify"]
	}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.CreatedBy != "ci-bot" {
		t.Errorf("CreatedBy = %s", cfg.CreatedBy)
	}
	if cfg.SummarizerMode != SummarizerChat || cfg.SummarizerURL != "http://localhost:8080/v1" {
		t.Errorf("summarizer = %s %s", cfg.SummarizerMode, cfg.SummarizerURL)
	}
	if cfg.SummarizerTimeoutSecs != 60 {
		t.Errorf("SummarizerTimeoutSecs = %d, want 60", cfg.SummarizerTimeoutSecs)
	}
	// Unset fields keep their defaults
	if cfg.SummarizerConcurrency != 4 {
		t.Errorf("SummarizerConcurrency = %d, want the default 4", cfg.SummarizerConcurrency)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "bundle_verify" {
		t.Errorf("DisabledTools = %v", cfg.DisabledTools)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{not json`)

	if _, err := Load(dir); err == nil {
		t.Error("Load should fail on malformed config")
	}
}

func TestMerge(t *testing.T) {
	base := &Config{
		CreatedBy:             "base",
		SummarizerMode:        SummarizerHeuristic,
		SummarizerTimeoutSecs: 30,
		DisabledTools:         []string{"bundle_list"},
	}
	overlay := &Config{
		CreatedBy:     "overlay",
		DisabledTools: []string{"bundle_verify"},
	}

	merged := Merge(base, overlay)
	if merged.CreatedBy != "overlay" {
		t.Errorf("CreatedBy = %s, overlay scalar should win", merged.CreatedBy)
	}
	if merged.SummarizerMode != SummarizerHeuristic {
		t.Errorf("SummarizerMode = %s, base should survive an empty overlay", merged.SummarizerMode)
	}
	if merged.SummarizerTimeoutSecs != 30 {
		t.Errorf("SummarizerTimeoutSecs = %d, base should survive a zero overlay", merged.SummarizerTimeoutSecs)
	}
	want := []string{"bundle_list", "bundle_verify"}
	if len(merged.DisabledTools) != 2 || merged.DisabledTools[0] != want[0] || merged.DisabledTools[1] != want[1] {
		t.Errorf("DisabledTools = %v, want concatenation %v", merged.DisabledTools, want)
	}
}

func TestMerge_EmptyArraysStayNil(t *testing.T) {
	merged := Merge(&Config{}, &Config{})
	if merged.DisabledTools != nil {
		t.Errorf("DisabledTools = %v, want nil", merged.DisabledTools)
	}
}
