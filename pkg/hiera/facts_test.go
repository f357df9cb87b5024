package hiera

import (
	"path/filepath"
	"testing"
)

func TestLoadFacts(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "facts.yaml")
	jsonPath := filepath.Join(dir, "facts.json")
	writeFile(t, yamlPath, "hostname: web01\nos:\n  family: Debian\n")
	writeFile(t, jsonPath, `{"hostname": "db01", /* comment */ "os": {"family": "RedHat"},}`)

	for path, want := range map[string]string{yamlPath: "web01", jsonPath: "db01"} {
		facts, err := LoadFacts(path)
		if err != nil {
			t.Fatalf("LoadFacts(%s) failed: %v", path, err)
		}
		if facts["hostname"] != want {
			t.Errorf("%s: hostname = %v, want %s", path, facts["hostname"], want)
		}
	}

	if _, err := LoadFacts(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing facts file")
	}
}

func TestMergeFacts(t *testing.T) {
	base := map[string]interface{}{
		"hostname": "local",
		"os":       map[string]interface{}{"family": "linux", "architecture": "amd64"},
	}
	override := map[string]interface{}{
		"hostname": "web01",
		"os":       map[string]interface{}{"family": "Debian"},
		"role":     "web",
	}

	merged := MergeFacts(base, override)
	os := merged["os"].(map[string]interface{})
	if merged["hostname"] != "web01" || merged["role"] != "web" {
		t.Errorf("unexpected top-level facts: %v", merged)
	}
	if os["family"] != "Debian" || os["architecture"] != "amd64" {
		t.Errorf("expected deep merge, got %v", os)
	}
	if base["hostname"] != "local" {
		t.Error("base facts were modified")
	}
}

func TestLocalFacts(t *testing.T) {
	facts := LocalFacts()
	if facts["kernel"] == "" {
		t.Error("expected kernel fact")
	}
	if _, ok := facts["os"].(map[string]interface{}); !ok {
		t.Error("expected os fact map")
	}
}
