package manager

import (
	"sync"

	"github.com/Dave360-crypto/LogWatcher/internal/queue"
	"github.com/Dave360-crypto/LogWatcher/internal/record"
	"github.com/Dave360-crypto/LogWatcher/internal/session"
	"github.com/Dave360-crypto/LogWatcher/internal/watcher"
)

// watcherEntry is one row of the watchers registry: worker handle + command
// channel + registered clients + recent-hits buffer.
type watcherEntry struct {
	id    int
	label string

	// mu is the per-watcher lock. Lock ordering is registry (Manager.mu)
	// then per-watcher (entry.mu), never the reverse.
	mu sync.Mutex

	cmdQueue *queue.Unbounded[watcher.Command]
	logCh    chan record.Record
	hitsOut  chan watcher.Hit

	registeredClients map[string]*session.Session
	hitCount          int
	recentHits        []string
}

// clientEntry is one row of the clients registry. Its registered set is
// mutated only from the owning client's own session goroutine (Register,
// Unregister, and the Disconnect defer all run sequentially there), so it
// needs no lock of its own.
type clientEntry struct {
	id         string
	session    *session.Session
	registered map[int]struct{}
}

// hitEvent tags a worker's outgoing hit with the watcher it came from, so
// the Manager's single fan-in channel can route it without a dynamic select
// case per LogWatch.
type hitEvent struct {
	watcherID int
	line      string
}
