package simulated

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the desktop whenever the definition file changes, until ctx
// is done or Close is called. The containing directory is watched so that
// editors which replace the file on save are handled.
func (d *Desktop) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				def, err := Load(abs)
				if err != nil {
					// Half-written files are common while an editor saves.
					d.logger.WithError(err).Debug("Skipping desktop reload")
					continue
				}
				d.Replace(def)
				d.logger.WithField("path", abs).Info("Reloaded desktop definition")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.WithError(err).Warn("Desktop watcher error")
			}
		}
	}()

	d.mu.Lock()
	d.closers = append(d.closers, func() {
		cancel()
		wg.Wait()
	})
	d.mu.Unlock()
	return nil
}
