package watcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/Dave360-crypto/LogWatcher/internal/ruletree"
)

// gzipThreshold is the serialized tree size above which save() compresses
// the snapshot, writing LogWatch<id>.json.gz instead of the plain file.
const gzipThreshold = 64 * 1024

// save writes the tree as JSON to <dir>/LogWatch<id>.json, atomically:
// encode to a temp file in the same directory, fsync, rename over the
// final path, then read it back to confirm the write round-trips, so a
// crash mid-write never leaves a corrupt snapshot in place of a good one.
func save(dir string, id int, tree *ruletree.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("watcher: encode snapshot: %w", err)
	}

	path := jsonPath(dir, id)
	if len(data) > gzipThreshold {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return fmt.Errorf("watcher: gzip snapshot: %w", err)
		}
		if err := gw.Close(); err != nil {
			return fmt.Errorf("watcher: gzip snapshot: %w", err)
		}
		return atomicWrite(path+".gz", buf.Bytes())
	}

	// A plain save must not leave a stale compressed snapshot behind.
	_ = os.Remove(path + ".gz")
	return atomicWrite(path, data)
}

// load replaces the tree from <dir>/LogWatch<id>.json (or its .gz
// counterpart, tried first since a gzip-threshold crossing doesn't delete
// the uncompressed file from an older save).
func load(dir string, id int) (*ruletree.Tree, error) {
	path := jsonPath(dir, id)

	if data, err := os.ReadFile(path + ".gz"); err == nil {
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("watcher: open gzip snapshot: %w", err)
		}
		defer gr.Close()
		raw, err := io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("watcher: read gzip snapshot: %w", err)
		}
		return decodeTree(raw)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("watcher: read snapshot: %w", err)
	}
	return decodeTree(data)
}

func decodeTree(data []byte) (*ruletree.Tree, error) {
	tree := ruletree.New()
	if err := json.Unmarshal(data, tree); err != nil {
		return nil, fmt.Errorf("watcher: decode snapshot: %w", err)
	}
	return tree, nil
}

func jsonPath(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("LogWatch%d.json", id))
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("watcher: create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("watcher: write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("watcher: sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("watcher: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("watcher: rename temp snapshot: %w", err)
	}

	// Round-trip validation: a snapshot that doesn't parse back is worse
	// than no snapshot, since load() would otherwise fail much later.
	roundTrip, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("watcher: verify snapshot: %w", err)
	}
	if _, err := decodeTree(roundTrip); err != nil {
		return fmt.Errorf("watcher: snapshot failed round-trip validation: %w", err)
	}
	return nil
}
