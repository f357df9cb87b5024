package commands

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWatchLoop_WatcherError(t *testing.T) {
	failing := func(context.Context, func(string)) error {
		return errors.New("too many open files")
	}

	errc := make(chan error, 1)
	go func() {
		errc <- watchLoop(context.Background(), failing, time.Millisecond, func(string) {}, func(context.Context) {
			t.Error("compile must not run")
		})
	}()

	select {
	case err := <-errc:
		if err == nil || err.Error() != "watching hierarchy data: too many open files" {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not return after the watcher failed")
	}
}

func TestWatchLoop_RecompilesAfterChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watch := func(ctx context.Context, onChange func(string)) error {
		onChange("data/common.yaml")
		<-ctx.Done()
		return nil
	}

	var changed []string
	compiled := make(chan struct{}, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- watchLoop(ctx, watch, time.Millisecond, func(path string) {
			changed = append(changed, path)
		}, func(context.Context) {
			compiled <- struct{}{}
		})
	}()

	select {
	case <-compiled:
	case <-time.After(5 * time.Second):
		t.Fatal("no recompilation after a change")
	}
	cancel()

	if err := <-errc; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != 1 || changed[0] != "data/common.yaml" {
		t.Errorf("unexpected changes: %v", changed)
	}
}
