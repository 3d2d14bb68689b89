// Package manager implements the Manager (C6): it owns the watchers,
// sources, and clients registries, runs the central event loop that
// multiplexes the collector channel, the client-accept channel, and the
// fanned-in worker-hit channel, and dispatches client-initiated commands to
// workers under the documented lock ordering (registry lock, then
// per-watcher lock, never reversed).
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"

	"github.com/Dave360-crypto/LogWatcher/internal/collector"
	"github.com/Dave360-crypto/LogWatcher/internal/config"
	"github.com/Dave360-crypto/LogWatcher/internal/logging"
	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
	"github.com/Dave360-crypto/LogWatcher/internal/queue"
	"github.com/Dave360-crypto/LogWatcher/internal/record"
	"github.com/Dave360-crypto/LogWatcher/internal/session"
	"github.com/Dave360-crypto/LogWatcher/internal/watcher"
)

// Manager is the process-wide orchestrator. It implements session.Dispatcher
// directly: a Session only ever sees the Dispatcher interface, so there is
// no import cycle back from session to manager.
type Manager struct {
	cfg config.Config
	env *predicate.Environment

	mu       sync.RWMutex
	watchers []*watcherEntry
	clients  map[string]*clientEntry

	// sources is reserved for future source-address routing: wired but
	// never populated yet. routeLog currently broadcasts to every watcher
	// regardless of source address.
	sources map[string][]int

	collectorCh chan collector.Message
	acceptCh    chan net.Conn
	hitsCh      chan hitEvent
	fatalCh     chan error

	ctx    context.Context
	logger *slog.Logger
}

// New constructs a Manager. Run or Serve must be called to start its event
// loop before any Dispatcher method is used.
func New(cfg config.Config, env *predicate.Environment, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		env:         env,
		clients:     make(map[string]*clientEntry),
		sources:     make(map[string][]int),
		collectorCh: make(chan collector.Message, cfg.LogChannelCap),
		acceptCh:    make(chan net.Conn),
		hitsCh:      make(chan hitEvent, cfg.HitFanInCap),
		fatalCh:     make(chan error, 1),
		logger:      logging.Default(logger).With("component", "manager"),
	}
}

// CollectorIn exposes the channel a Collector should forward decoded
// records onto.
func (m *Manager) CollectorIn() chan<- collector.Message {
	return m.collectorCh
}

// Serve runs the TCP accept loop and the Manager event loop together,
// returning when ctx is canceled or either encounters a fatal error (an
// accept-socket failure, per the error handling design).
func (m *Manager) Serve(ctx context.Context, listener net.Listener) error {
	go m.acceptLoop(ctx, listener)
	return m.Run(ctx)
}

func (m *Manager) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case m.fatalCh <- fmt.Errorf("manager: accept failed: %w", err):
			default:
			}
			return
		}
		select {
		case m.acceptCh <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// Run is the single multiplexer at the heart of the Manager: it selects over
// the collector channel, the accept-result channel, and the fanned-in
// worker-hit channel. Client-initiated commands (create/list/register/
// setMatch/...) do not flow through this loop — they call straight into the
// Dispatcher methods below from the issuing client's own session goroutine,
// synchronized by the registry and per-watcher locks instead.
func (m *Manager) Run(ctx context.Context) error {
	m.ctx = ctx
	m.logger.Info("manager started", "udp_addr", m.cfg.UDPAddr, "tcp_addr", m.cfg.TCPAddr)
	defer m.logger.Info("manager stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-m.fatalCh:
			return err
		case msg := <-m.collectorCh:
			m.routeLog(msg)
		case conn := <-m.acceptCh:
			m.acceptClient(conn)
		case hit := <-m.hitsCh:
			m.fanOutHit(hit)
		}
	}
}

// routeLog implements event class 1: sources[addr] is reserved and
// currently unpopulated, so every ingested record is forwarded to every
// watcher (the documented v1 broadcast behavior).
func (m *Manager) routeLog(msg collector.Message) {
	m.mu.RLock()
	targets := make([]*watcherEntry, len(m.watchers))
	copy(targets, m.watchers)
	m.mu.RUnlock()

	for _, entry := range targets {
		sendDropOldest(entry.logCh, msg.Record)
	}
}

// sendDropOldest implements the bounded, drop-oldest policy for `log`
// messages: if the channel is full, the oldest queued record is discarded
// to make room for the new one, rather than blocking the Manager or
// dropping the newest arrival.
func sendDropOldest(ch chan record.Record, rec record.Record) {
	for {
		select {
		case ch <- rec:
			return
		default:
		}
		select {
		case <-ch:
		default:
			// Someone drained it between our full send attempt and here;
			// loop back and try the send again.
		}
	}
}

// acceptClient implements event class 2: register the new connection's
// session in the clients registry and start its read loop.
func (m *Manager) acceptClient(conn net.Conn) {
	id := uuid.NewString()
	ce := &clientEntry{id: id, registered: make(map[int]struct{})}
	sess := session.New(id, conn, m, m.logger)
	ce.session = sess

	m.mu.Lock()
	m.clients[id] = ce
	m.mu.Unlock()

	m.logger.Info("client connected", "client_id", id, "remote", conn.RemoteAddr())
	go func() {
		sess.Run()
		conn.Close()
	}()
}

// fanOutHit implements event class 3: record the hit, then fan it out to
// every client currently registered to that watcher, each serialized by its
// own write mutex.
func (m *Manager) fanOutHit(hit hitEvent) {
	m.mu.RLock()
	if hit.watcherID < 0 || hit.watcherID >= len(m.watchers) {
		m.mu.RUnlock()
		return
	}
	entry := m.watchers[hit.watcherID]
	m.mu.RUnlock()

	entry.mu.Lock()
	entry.hitCount++
	entry.recentHits = append(entry.recentHits, hit.line)
	targets := make([]*session.Session, 0, len(entry.registeredClients))
	for _, sess := range entry.registeredClients {
		targets = append(targets, sess)
	}
	entry.mu.Unlock()

	for _, sess := range targets {
		if err := sess.WriteLine(hit.line); err != nil {
			m.logger.Debug("hit delivery failed", "client_id", sess.ID, "error", err)
		}
	}
}

// Create adds a new LogWatch and starts its supervised worker. clientID is
// unused here — creation has no per-client effect — but keeps the
// Dispatcher signature uniform.
func (m *Manager) Create(clientID string) (int, string) {
	m.mu.Lock()
	id := len(m.watchers)
	label := petname.Generate(2, "-")
	entry := &watcherEntry{
		id:                id,
		label:             label,
		cmdQueue:          queue.NewUnbounded[watcher.Command](),
		logCh:             make(chan record.Record, m.cfg.LogChannelCap),
		hitsOut:           make(chan watcher.Hit, 64),
		registeredClients: make(map[string]*session.Session),
	}
	m.watchers = append(m.watchers, entry)
	m.mu.Unlock()

	go m.forwardHits(entry)
	go m.runWorkerSupervised(entry)

	m.logger.Info("logwatch created", "lw_id", id, "label", label)
	return id, label
}

// forwardHits tags each hit the worker emits with its watcher id and
// forwards it into the Manager's single fan-in channel, keeping the Run
// loop's select from needing a dynamic case per LogWatch.
func (m *Manager) forwardHits(entry *watcherEntry) {
	for {
		select {
		case hit, ok := <-entry.hitsOut:
			if !ok {
				return
			}
			select {
			case m.hitsCh <- hitEvent{watcherID: entry.id, line: hit.Line}:
			case <-m.ctx.Done():
				return
			}
		case <-m.ctx.Done():
			return
		}
	}
}

// runWorkerSupervised restarts a crashed worker with a fresh, empty rule
// tree and logs the event, per the error handling design's worker-crash
// recovery policy. A normal (non-panic) return only happens on context
// cancellation, via worker.Run itself recovering from per-command and
// per-log panics internally — this outer recover is the last line of
// defense for anything that slips past that.
func (m *Manager) runWorkerSupervised(entry *watcherEntry) {
	for {
		if m.ctx.Err() != nil {
			return
		}
		w := watcher.New(entry.id, m.cfg.PersistDir, entry.cmdQueue.Out(), entry.logCh, entry.hitsOut, m.env, m.logger)
		m.runWorkerOnce(w, entry.id)
		if m.ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) runWorkerOnce(w *watcher.Worker, id int) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("worker crashed, restarting with empty rule tree", "lw_id", id, "recovered", r)
		}
	}()
	w.Run(m.ctx)
}

// lookup resolves an LwId under the registry lock and releases that lock
// before returning — callers take entry.mu themselves afterward if needed.
func (m *Manager) lookup(id int) (*watcherEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 0 || id >= len(m.watchers) || m.watchers[id] == nil {
		return nil, fmt.Errorf("LogWatch %d does not exist.", id)
	}
	return m.watchers[id], nil
}
