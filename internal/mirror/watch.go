package mirror

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the landing directory and sends the base name of every
// file the vendor agent drops there. The channel closes when the context
// is canceled. Watch failures degrade gracefully: the sync waiter still
// polls the cloud listing, the watcher is only a fast path.
func (m *Mirror) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(m.LandingPath()); err != nil {
		watcher.Close()
		return nil, err
	}

	names := make(chan string, 16)

	go func() {
		defer watcher.Close()
		defer close(names)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
					select {
					case names <- filepath.Base(event.Name):
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				m.logger.Warn("mirror watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return names, nil
}
