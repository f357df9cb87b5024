package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantDesc     string
		wantSeverity Severity
	}{
		{"no header", "package x\n", "", SeverityWarning},
		{"description only", "# Checks things.\n# More detail.\npackage x\n", "Checks things. More detail.", SeverityWarning},
		{"severity", "#severity: CRITICAL\npackage x\n", "", SeverityCritical},
		{"stops at code", "package x\n# severity: error\n", "", SeverityWarning},
		{"blank lines before", "\n\n# Leading.\n# severity: info\n\npackage x\n", "Leading.", SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, sev := parseHeader(tt.content)
			if desc != tt.wantDesc {
				t.Errorf("description = %q, want %q", desc, tt.wantDesc)
			}
			if sev != tt.wantSeverity {
				t.Errorf("severity = %q, want %q", sev, tt.wantSeverity)
			}
		})
	}
}

func TestLoader_SkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"ok.rego":       "package ok\n\ndeny contains \"x\" if { false }\n",
		"noname.json":   `{"rego": "package y"}`,
		"garbage.json":  `{not json`,
		"sub/deep.rego": "package deep\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}

	names := map[string]bool{}
	for _, p := range policies {
		names[p.Name] = true
	}
	if len(names) != 2 || !names["ok"] || !names["deep"] {
		t.Errorf("unexpected policies: %v", names)
	}

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "garbage.json")}); err == nil {
		t.Error("expected error loading a single bad file")
	}
}

func TestLoader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewLoader(zerolog.Nop()).LoadFromPaths(ctx, []string{t.TempDir()}); err == nil {
		t.Error("expected context error")
	}
}
