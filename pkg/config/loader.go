package config

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/openfroyo/singletons/pkg/telemetry"
)

// DefaultFile is the settings file looked up in the working directory.
const DefaultFile = "singletons.cue"

var validate = validator.New()

// Loader reads settings files against the settings schema.
type Loader struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewLoader compiles the settings schema.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(settingsSchema, cue.Filename("settings.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile settings schema: %w", err)
	}
	return &Loader{ctx: ctx, schema: val.LookupPath(cue.ParsePath("#Settings"))}, nil
}

// Load reads settings from path, or from DefaultFile when path is empty
// and that file exists, then applies environment overrides.
func Load(path string) (*Settings, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	var data []byte
	data, err = os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !explicit:
		path, data = "", nil
	default:
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	s, err := l.Parse(path, data)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(s); err != nil {
		return nil, err
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse unifies settings source with the schema and decodes the result.
// Empty data yields the defaults.
func (l *Loader) Parse(filename string, data []byte) (*Settings, error) {
	val := l.schema
	if len(data) > 0 {
		file := l.ctx.CompileBytes(data, cue.Filename(filename))
		if err := file.Err(); err != nil {
			return nil, convertCUEErrors(err)
		}
		val = val.Unify(file)
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEErrors(err)
	}

	s := &Settings{}
	if err := val.Decode(s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if filename != "" {
		s.Sources = []string{filename}
	}
	return s, nil
}

// ApplyEnv overrides settings from FROYO_* environment variables. Unset
// variables leave the current value.
func ApplyEnv(s *Settings) error {
	if err := env.Parse(s); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks settings after all layers are applied.
func Validate(s *Settings) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			out := make(ValidationErrors, len(verrs))
			for i, fe := range verrs {
				out[i] = ValidationError{Message: fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())}
			}
			return out
		}
		return err
	}
	if _, err := s.TimeoutDuration(); err != nil {
		return ValidationErrors{{Message: err.Error()}}
	}
	return nil
}

// convertCUEErrors converts CUE errors to ValidationErrors.
func convertCUEErrors(err error) error {
	var out ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		var ve ValidationError
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		ve.Message = cueerrors.Details(e, nil)
		out = append(out, ve)
	}
	if len(out) == 0 {
		return err
	}
	return out
}

// BootstrapLogging reads FROYO_LOG_* alone for the logger used before the
// settings file is loaded. On error the defaults are returned with it.
func BootstrapLogging() (telemetry.LoggingConfig, error) {
	cfg := telemetry.DefaultConfig().Logging
	ls := LoggingSettings{Level: cfg.Level, Format: cfg.Format}
	if err := env.ParseWithOptions(&ls, env.Options{Prefix: "FROYO_LOG_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(ls); err != nil {
		return cfg, fmt.Errorf("invalid logging environment: %w", err)
	}
	cfg.Level = ls.Level
	cfg.Format = ls.Format
	return cfg, nil
}

// TelemetryConfig maps settings onto a telemetry configuration.
func (s *Settings) TelemetryConfig(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Environment = s.Environment
	cfg.Logging.Level = s.Logging.Level
	cfg.Logging.Format = s.Logging.Format
	cfg.Metrics.Enabled = s.Metrics.Enabled
	cfg.Metrics.ListenAddress = s.Metrics.Address
	cfg.Tracing.Enabled = s.Tracing.Exporter != "none"
	if cfg.Tracing.Enabled {
		cfg.Tracing.Exporter = s.Tracing.Exporter
	}
	cfg.Tracing.Endpoint = s.Tracing.Endpoint
	cfg.Tracing.SamplingRate = s.Tracing.SamplingRate
	return cfg
}
