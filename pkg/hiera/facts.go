package hiera

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LoadFacts reads a YAML or JSON facts file.
func LoadFacts(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts: %w", err)
	}

	facts := make(map[string]interface{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &facts)
	default:
		err = yaml.Unmarshal(data, &facts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse facts %s: %w", path, err)
	}
	if facts == nil {
		facts = make(map[string]interface{})
	}
	return facts, nil
}

// LocalFacts gathers facts about the machine running the compiler.
func LocalFacts() map[string]interface{} {
	facts := map[string]interface{}{
		"kernel": runtime.GOOS,
		"os": map[string]interface{}{
			"family":       runtime.GOOS,
			"architecture": runtime.GOARCH,
		},
	}
	if hostname, err := os.Hostname(); err == nil {
		facts["fqdn"] = hostname
		facts["hostname"] = strings.SplitN(hostname, ".", 2)[0]
	}
	return facts
}

// MergeFacts deep-merges override into base and returns a new map.
func MergeFacts(base, override map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		bm, bok := out[k].(map[string]interface{})
		om, ook := v.(map[string]interface{})
		if bok && ook {
			out[k] = MergeFacts(bm, om)
			continue
		}
		out[k] = v
	}
	return out
}
