package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newWatchCommand(flags *globalFlags, version string) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch MANIFEST",
		Short: "Recompile a manifest whenever hierarchy data changes",
		Long: `Compile a manifest, then watch the hierarchy's data directories and
recompile after every change. Each pass starts from an empty catalog.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			if err := a.telemetry.StartMetricsServer(); err != nil {
				return err
			}
			c, err := a.compiler(nil)
			if err != nil {
				return err
			}

			compile := func(ctx context.Context) {
				result, err := c.CompileFile(ctx, args[0])
				if err != nil {
					a.logger.Error().Err(err).Msg("Compilation failed")
					return
				}
				if flags.jsonOutput {
					_ = writeJSON(cmd.OutOrStdout(), result)
					return
				}
				printResult(cmd.OutOrStdout(), result)
			}
			compile(ctx)

			return watchLoop(ctx, a.hierarchy.Watch, debounce, func(path string) {
				a.logger.Info().Str("file", path).Msg("Hierarchy data changed")
			}, compile)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "wait this long after a change before recompiling")

	return cmd
}

type watchFunc func(ctx context.Context, onChange func(path string)) error

// watchLoop runs watch in the background and calls compile once changes have
// settled for debounce. It returns when ctx ends or the watcher stops.
func watchLoop(ctx context.Context, watch watchFunc, debounce time.Duration, changed func(string), compile func(context.Context)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, func(path string) {
			select {
			case changes <- path:
			default:
			}
		})
	}()

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			if err != nil {
				return fmt.Errorf("watching hierarchy data: %w", err)
			}
			return nil
		case path := <-changes:
			changed(path)
			timer = time.After(debounce)
		case <-timer:
			timer = nil
			compile(ctx)
		}
	}
}
