package config

import (
	"fmt"
	"strings"
	"time"
)

// Settings configures the CLI.
type Settings struct {
	HieraConfig   string   `json:"hiera_config" env:"FROYO_HIERA_CONFIG" validate:"required"`
	DataDir       string   `json:"data_dir" env:"FROYO_DATA_DIR"`
	Facts         string   `json:"facts" env:"FROYO_FACTS"`
	StateDB       string   `json:"state_db" env:"FROYO_STATE_DB"`
	Environment   string   `json:"environment" env:"FROYO_ENVIRONMENT"`
	MaxDepth      int      `json:"max_depth" env:"FROYO_MAX_DEPTH" validate:"gte=0"`
	StrictClasses bool     `json:"strict_classes" env:"FROYO_STRICT_CLASSES"`
	Timeout       string   `json:"timeout" env:"FROYO_TIMEOUT" validate:"required"`
	PolicyPaths   []string `json:"policy_paths" env:"FROYO_POLICY_PATHS" envSeparator:","`

	Logging LoggingSettings `json:"logging" envPrefix:"FROYO_LOG_"`
	Metrics MetricsSettings `json:"metrics" envPrefix:"FROYO_METRICS_"`
	Tracing TracingSettings `json:"tracing" envPrefix:"FROYO_TRACING_"`

	// Sources lists the files the settings were read from.
	Sources []string `json:"-"`
}

// LoggingSettings configures logging.
type LoggingSettings struct {
	Level  string `json:"level" env:"LEVEL" validate:"oneof=trace debug info warn error"`
	Format string `json:"format" env:"FORMAT" validate:"oneof=console json"`
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `json:"enabled" env:"ENABLED"`
	Address string `json:"address" env:"ADDRESS" validate:"required_if=Enabled true"`
}

// TracingSettings configures span export.
type TracingSettings struct {
	Exporter     string  `json:"exporter" env:"EXPORTER" validate:"oneof=otlp stdout none"`
	Endpoint     string  `json:"endpoint" env:"ENDPOINT"`
	SamplingRate float64 `json:"sampling_rate" env:"SAMPLING_RATE" validate:"gte=0,lte=1"`
}

// TimeoutDuration parses Timeout.
func (s *Settings) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}

// ValidationError is a settings error with its source position.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// ValidationErrors is returned when settings fail validation.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.String()
	}
	return "invalid settings: " + strings.Join(msgs, "; ")
}
