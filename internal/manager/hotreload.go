package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/Dave360-crypto/LogWatcher/internal/watcher"
)

// WatchPersistence watches cfg.PersistDir for LogWatch<id>.json files
// changing outside of a `save` command (an operator hand-editing a
// snapshot, for instance) and pushes a best-effort ("load",) command to the
// matching worker. Gated behind --watch-persistence; a save triggers the
// same fsnotify event as an external edit, so a reload immediately after a
// save is a harmless no-op rather than something this code tries to
// suppress.
func (m *Manager) WatchPersistence(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("manager: start persistence watcher: %w", err)
	}
	if err := fw.Add(m.cfg.PersistDir); err != nil {
		fw.Close()
		return fmt.Errorf("manager: watch %s: %w", m.cfg.PersistDir, err)
	}

	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				id, ok := parseSnapshotID(ev.Name)
				if !ok {
					continue
				}
				entry, err := m.lookup(id)
				if err != nil {
					continue
				}
				m.logger.Info("persistence file changed on disk, reloading", "lw_id", id, "path", ev.Name)
				entry.mu.Lock()
				entry.cmdQueue.Send(watcher.Command{Kind: watcher.Load})
				entry.mu.Unlock()
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				m.logger.Warn("persistence watcher error", "error", err)
			}
		}
	}()
	return nil
}

// parseSnapshotID extracts the LwId from a "LogWatch<id>.json" or
// "LogWatch<id>.json.gz" file name.
func parseSnapshotID(path string) (int, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".json")
	digits := strings.TrimPrefix(base, "LogWatch")
	if digits == base {
		return 0, false
	}
	id, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return id, true
}
