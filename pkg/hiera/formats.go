package hiera

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format is a data file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// formatFor picks the format from the declared name or the file extension.
func formatFor(path, declared string) Format {
	if declared != "" {
		return Format(strings.ToLower(declared))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON
	case ".cue":
		return FormatCUE
	default:
		return FormatYAML
	}
}

// decode parses a data file into a top-level key map.
func decode(format Format, path string, data []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{})

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
		}
	case FormatJSON:
		if len(strings.TrimSpace(string(data))) == 0 {
			return out, nil
		}
		if err := json.Unmarshal(jsonc.ToJSON(data), &out); err != nil {
			return nil, fmt.Errorf("failed to parse JSON %s: %w", path, err)
		}
	case FormatCUE:
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("failed to compile CUE %s: %w", path, err)
		}
		if err := v.Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode CUE %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported data format %q for %s", format, path)
	}

	if out == nil {
		out = make(map[string]interface{})
	}
	return out, nil
}
