package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/obsidianstack/statusroll/pkg/tree"
)

// watchDebounce coalesces the burst of events an editor produces for a
// single save.
const watchDebounce = 200 * time.Millisecond

// WatchTree monitors the tree definition at path and rebuilds it after each
// settled change. apply receives either the freshly loaded tree or the load
// error; on error the caller should keep serving the previous tree. WatchTree
// runs until ctx is cancelled.
func WatchTree(ctx context.Context, path string, opts []tree.Option, apply func(*tree.Tree, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	slog.Info("config: watching tree definition", "path", path)

	settle := time.NewTimer(watchDebounce)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			settle.Reset(watchDebounce)

		case <-settle.C:
			// Atomic saves replace the inode; re-adding keeps the watch alive.
			_ = watcher.Add(path)

			t := tree.New(opts...)
			if err := t.LoadFile(path); err != nil {
				slog.Error("config: tree reload failed, keeping previous tree",
					"path", path, "err", err)
				apply(nil, err)
				continue
			}
			slog.Info("config: tree reloaded", "path", path, "nodes", t.Len())
			apply(t, nil)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
