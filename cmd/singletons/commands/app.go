package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/openfroyo/singletons/pkg/compiler"
	"github.com/openfroyo/singletons/pkg/config"
	"github.com/openfroyo/singletons/pkg/hiera"
	"github.com/openfroyo/singletons/pkg/policy"
	"github.com/openfroyo/singletons/pkg/stores"
	"github.com/openfroyo/singletons/pkg/telemetry"
	"github.com/rs/zerolog"
)

// app holds what a command needs, built from settings and flags.
type app struct {
	settings  *config.Settings
	telemetry *telemetry.Telemetry
	logger    zerolog.Logger
	hierarchy *hiera.Hierarchy
	facts     map[string]interface{}
	timeout   time.Duration
}

// newApp loads settings, applies flag overrides and opens the hierarchy.
func newApp(flags *globalFlags, version string) (*app, error) {
	settings, err := config.Load(flags.settingsPath)
	if err != nil {
		return nil, err
	}
	if flags.hieraConfig != "" {
		settings.HieraConfig = flags.hieraConfig
	}
	if flags.factsPath != "" {
		settings.Facts = flags.factsPath
	}
	if flags.environment != "" {
		settings.Environment = flags.environment
	}
	if flags.verbose {
		settings.Logging.Level = "debug"
	}

	timeout, err := settings.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(settings.TelemetryConfig(version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()

	facts := hiera.LocalFacts()
	if settings.Facts != "" {
		loaded, err := hiera.LoadFacts(settings.Facts)
		if err != nil {
			return nil, err
		}
		facts = hiera.MergeFacts(facts, loaded)
	}
	if _, ok := facts["environment"]; !ok && settings.Environment != "" {
		facts["environment"] = settings.Environment
	}

	cfg, err := hiera.LoadConfig(settings.HieraConfig)
	if err != nil {
		return nil, err
	}
	if settings.DataDir != "" {
		cfg.Defaults.DataDir = settings.DataDir
	}
	hierarchy, err := hiera.New(cfg, hiera.WithFacts(facts), hiera.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Strs("settings", settings.Sources).
		Str("hiera_config", settings.HieraConfig).
		Int("levels", len(cfg.Hierarchy)).
		Msg("Configuration loaded")

	return &app{
		settings:  settings,
		telemetry: tel,
		logger:    logger,
		hierarchy: hierarchy,
		facts:     facts,
		timeout:   timeout,
	}, nil
}

// policies builds a policy engine with the configured extra policies.
func (a *app) policies(ctx context.Context, extra []string) (*policy.Engine, error) {
	eng, err := policy.NewEngine(a.logger)
	if err != nil {
		return nil, err
	}
	paths := append(append([]string(nil), a.settings.PolicyPaths...), extra...)
	if len(paths) > 0 {
		if err := eng.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// compiler builds a compiler; a nil policy engine skips policy checks.
func (a *app) compiler(policies *policy.Engine) (*compiler.Compiler, error) {
	opts := []compiler.Option{
		compiler.WithFacts(a.facts),
		compiler.WithTelemetry(a.telemetry),
		compiler.WithLogger(a.logger),
		compiler.WithStrictClasses(a.settings.StrictClasses),
		compiler.WithMaxDepth(a.settings.MaxDepth),
		compiler.WithTimeout(a.timeout),
		compiler.WithEnvironment(a.settings.Environment),
	}
	if policies != nil {
		opts = append(opts, compiler.WithPolicies(policies))
	}
	return compiler.New(a.hierarchy, opts...)
}

// openStore opens and migrates the history database.
func (a *app) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if a.settings.StateDB == "" {
		return nil, fmt.Errorf("no state database configured (set state_db or FROYO_STATE_DB)")
	}
	store, err := stores.NewSQLiteStore(stores.Config{Path: a.settings.StateDB})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// close flushes telemetry.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// save stores a compilation result.
func (a *app) save(ctx context.Context, store stores.Store, result *compiler.Result) error {
	snap, err := snapshotOf(result, a.settings.Environment)
	if err != nil {
		return err
	}
	if err := store.SaveCompilation(ctx, snap); err != nil {
		return err
	}
	a.logger.Info().Str("compilation_id", result.ID).Msg("Compilation saved")
	return nil
}
