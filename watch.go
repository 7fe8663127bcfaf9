package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the bursts of file events some platforms fire
// for one logical change.
const DefaultDebounce = 100 * time.Millisecond

// Watch re-reads the backing document into target whenever it changes on
// disk, invoking onChange after each successful reload. It blocks until ctx
// is done and only supports file-backed providers; the ambient settings
// store is refreshed on every Read instead.
func (p *Provider) Watch(ctx context.Context, target any, onChange func()) error {
	if _, ok := p.store.(*fileStore); !ok {
		return ErrNotWatchable
	}
	path := p.store.location()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher for '%s': %w", path, err)
	}
	defer watcher.Close()

	// fsnotify has to watch the parent directory to pick up atomic renames
	// of the watched file.
	dir, _ := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir '%s': %w", dir, err)
	}

	clean := filepath.Clean(path)
	debounce := time.NewTimer(DefaultDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != clean {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if pending && !debounce.Stop() {
					<-debounce.C
				}
				debounce.Reset(DefaultDebounce)
				pending = true
			}

		case <-debounce.C:
			pending = false
			if err := p.Read(target); err != nil {
				// The document may be mid-replacement; the next event
				// retries.
				continue
			}
			if onChange != nil {
				onChange()
			}

		case <-watcher.Errors:
			// Watcher errors are transient; keep watching.

		case <-ctx.Done():
			return nil
		}
	}
}
