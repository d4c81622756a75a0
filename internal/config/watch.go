package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	"github.com/DelicateHug/DMaker-sub000/internal/debounce"
)

// reloadDelay waits for write bursts to settle before reloading
const reloadDelay = 250 * time.Millisecond

// Watch reloads the config file at path whenever it changes and passes
// every valid result to onChange. Invalid edits are logged and skipped.
// The directory is watched rather than the file so editors that replace
// the file on save are handled. Returns once the watcher is running;
// watching stops when ctx is cancelled.
func Watch(ctx context.Context, path string, log logr.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %q: %w", filepath.Dir(abs), err)
	}

	log = log.WithName("config-watcher").WithValues("path", abs)
	reload := debounce.New()

	go func() {
		defer w.Close()
		defer reload.Close()

		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				log.V(1).Info("config changed", "op", ev.Op.String())

				reload.Schedule("reload", reloadDelay, func() {
					cfg, err := LoadConfigFile(abs)
					if err != nil {
						log.Error(err, "ignoring invalid config change")
						return
					}
					log.Info("config reloaded")
					onChange(cfg)
				})

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error(err, "config watcher failed")

			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
