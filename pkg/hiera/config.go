package hiera

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultDataDir is used when hiera.yaml does not set defaults.datadir.
const DefaultDataDir = "data"

// Config is a parsed hiera.yaml.
type Config struct {
	// Version of the config layout. Only 5 is supported.
	Version int `yaml:"version" validate:"omitempty,eq=5"`

	// Defaults apply to levels that do not override them.
	Defaults Defaults `yaml:"defaults"`

	// Hierarchy lists levels from most to least specific.
	Hierarchy []Level `yaml:"hierarchy" validate:"required,min=1,dive"`

	// BaseDir is the directory relative data dirs are resolved against.
	BaseDir string `yaml:"-"`
}

// Defaults holds hierarchy-wide settings.
type Defaults struct {
	DataDir    string `yaml:"datadir"`
	DataFormat string `yaml:"data_format" validate:"omitempty,oneof=yaml json cue"`
}

// Level is one hierarchy level.
type Level struct {
	Name       string   `yaml:"name" validate:"required"`
	Path       string   `yaml:"path" validate:"required_without=Paths"`
	Paths      []string `yaml:"paths" validate:"required_without=Path"`
	DataDir    string   `yaml:"datadir"`
	DataFormat string   `yaml:"data_format" validate:"omitempty,oneof=yaml json cue"`
}

// PathList returns the level's paths in declaration order.
func (l Level) PathList() []string {
	paths := make([]string, 0, len(l.Paths)+1)
	if l.Path != "" {
		paths = append(paths, l.Path)
	}
	return append(paths, l.Paths...)
}

var validate = validator.New()

// LoadConfig reads and validates a hiera.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy config: %w", err)
	}
	return ParseConfig(data, filepath.Dir(path))
}

// ParseConfig parses hiera.yaml content. Relative data dirs resolve against
// baseDir.
func ParseConfig(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hierarchy config: %w", err)
	}
	cfg.BaseDir = baseDir
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config structure.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid hierarchy config: %w", err)
	}
	return nil
}

// dataDir returns the absolute-or-base-relative data dir for a level.
func (c *Config) dataDir(l Level) string {
	dir := l.DataDir
	if dir == "" {
		dir = c.Defaults.DataDir
	}
	if dir == "" {
		dir = DefaultDataDir
	}
	if !filepath.IsAbs(dir) && c.BaseDir != "" {
		dir = filepath.Join(c.BaseDir, dir)
	}
	return dir
}

// DataDirs returns the distinct data directories used by the hierarchy.
func (c *Config) DataDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, l := range c.Hierarchy {
		d := c.dataDir(l)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}
