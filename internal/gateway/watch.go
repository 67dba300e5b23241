package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"

	"github.com/tommyzliu/stickies/internal/persist"
	"github.com/tommyzliu/stickies/internal/settings"
)

// PendingWrites reports keys whose latest value has not reached disk yet.
// persist.Writer implements it.
type PendingWrites interface {
	Pending(key string) bool
}

// WatchSettings reloads file whenever another process edits it and
// dispatches the changed keys, so subscribers see hand edits. Values
// written by this process are recognised by fingerprint and ignored, and
// keys with a write still pending are skipped so a queued dispatch is
// never rolled back. pending may be nil. It blocks until ctx is cancelled.
//
// The directory is watched rather than the file itself because atomic
// saves replace the file's inode.
func (g *Gateway) WatchSettings(ctx context.Context, file *persist.File, pending PendingWrites) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(file.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	g.logger.Info("watching settings file", "path", file.Path())

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(file.Path()) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := g.reload(ctx, file, pending); err != nil {
				g.logger.Warn("failed to reload settings file", "path", file.Path(), "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			g.logger.Warn("settings watcher error", "error", err)
		}
	}
}

func (g *Gateway) reload(ctx context.Context, file *persist.File, pending PendingWrites) error {
	// Runs as a job so no dispatch can queue a write between the pending
	// check and the read.
	return g.run(ctx, "reload", func() error {
		changed, err := file.Changes()
		if err != nil {
			return err
		}
		for key := range changed {
			if pending != nil && pending.Pending(key) {
				g.logger.Info("ignoring external edit of key with a pending write", "key", key)
				delete(changed, key)
			}
		}

		actions, err := diffActions(g.settings.State(), changed)
		if len(actions) > 0 {
			g.logger.Info("applying external settings edit", "actions", len(actions))
		}
		for _, a := range actions {
			g.settings.Dispatch(a)
		}
		return err
	})
}

// diffActions returns the actions that bring current in line with the
// values found on disk. Keys that are absent or fail to decode are left
// alone; decode failures are reported after the rest are applied.
func diffActions(current settings.State, disk map[string]json.RawMessage) ([]settings.Action, error) {
	var actions []settings.Action
	var firstErr error
	decode := func(key settings.Key, out any) bool {
		raw, ok := disk[string(key)]
		if !ok {
			return false
		}
		if err := json.Unmarshal(raw, out); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to decode %s: %w", key, err)
			}
			return false
		}
		return true
	}

	var cardDir string
	if decode(settings.KeyCardDir, &cardDir) && cardDir != current.CardDir {
		actions = append(actions, settings.SetCardDir{Dir: cardDir})
	}

	var lang string
	if decode(settings.KeyI18n, &lang) && lang != current.I18n.Language {
		actions = append(actions, settings.SetLanguage{Language: lang})
	}

	var urls []string
	if decode(settings.KeyNavigationAllowedURLs, &urls) && !slices.Equal(urls, current.NavigationAllowedURLs) {
		if len(current.NavigationAllowedURLs) > 0 {
			actions = append(actions, settings.UpdateNavigationAllowedURLs{
				Operation: settings.OpRemove,
				URLs:      current.NavigationAllowedURLs,
			})
		}
		if len(urls) > 0 {
			actions = append(actions, settings.UpdateNavigationAllowedURLs{
				Operation: settings.OpAdd,
				URLs:      urls,
			})
		}
	}

	return actions, firstErr
}
