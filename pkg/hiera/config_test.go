package hiera

import (
	"path/filepath"
	"testing"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "valid",
			content: "version: 5\nhierarchy:\n  - name: common\n    path: common.yaml\n",
		},
		{
			name:    "paths only",
			content: "hierarchy:\n  - name: os\n    paths: [a.yaml, b.yaml]\n",
		},
		{
			name:    "empty hierarchy",
			content: "version: 5\nhierarchy: []\n",
			wantErr: true,
		},
		{
			name:    "missing name",
			content: "hierarchy:\n  - path: common.yaml\n",
			wantErr: true,
		},
		{
			name:    "missing path",
			content: "hierarchy:\n  - name: common\n",
			wantErr: true,
		},
		{
			name:    "unsupported version",
			content: "version: 3\nhierarchy:\n  - name: common\n    path: common.yaml\n",
			wantErr: true,
		},
		{
			name:    "unsupported format",
			content: "defaults:\n  data_format: hocon\nhierarchy:\n  - name: common\n    path: common.yaml\n",
			wantErr: true,
		},
		{
			name:    "not yaml",
			content: "hierarchy: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.content), "/etc/froyo")
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DataDirs(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
defaults:
  datadir: shared
hierarchy:
  - name: a
    path: a.yaml
  - name: b
    path: b.yaml
    datadir: /srv/data
  - name: c
    path: c.yaml
`), "/etc/froyo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dirs := cfg.DataDirs()
	want := []string{filepath.Join("/etc/froyo", "shared"), "/srv/data"}
	if len(dirs) != len(want) {
		t.Fatalf("got %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dirs[%d] = %s, want %s", i, dirs[i], want[i])
		}
	}
}

func TestInterpolate(t *testing.T) {
	facts := map[string]interface{}{
		"hostname": "web01",
		"os":       map[string]interface{}{"family": "Debian", "release": map[interface{}]interface{}{"major": 12}},
		"empty":    "",
	}

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"nodes/%{facts.hostname}.yaml", "nodes/web01.yaml", true},
		{"nodes/%{::hostname}.yaml", "nodes/web01.yaml", true},
		{"os/%{ facts.os.family }/%{facts.os.release.major}.yaml", "os/Debian/12.yaml", true},
		{"common.yaml", "common.yaml", true},
		{"nodes/%{facts.fqdn}.yaml", "", false},
		{"nodes/%{facts.empty}.yaml", "", false},
		{"os/%{facts.os}.yaml", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Interpolate(tt.in, facts)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
