package manager

import (
	"fmt"

	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
	"github.com/Dave360-crypto/LogWatcher/internal/ruletree"
	"github.com/Dave360-crypto/LogWatcher/internal/session"
	"github.com/Dave360-crypto/LogWatcher/internal/watcher"
)

// List returns one status line's worth of data per LogWatch, from
// clientID's point of view (the Subscribed flag).
func (m *Manager) List(clientID string) []session.WatcherStatus {
	m.mu.RLock()
	entries := make([]*watcherEntry, len(m.watchers))
	copy(entries, m.watchers)
	m.mu.RUnlock()

	out := make([]session.WatcherStatus, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		_, subscribed := e.registeredClients[clientID]
		status := session.WatcherStatus{
			ID:         e.id,
			Label:      e.label,
			Subscribed: subscribed,
			HitCount:   e.hitCount,
		}
		e.mu.Unlock()
		out = append(out, status)
	}
	return out
}

// Register subscribes clientID to LogWatch id's hit stream.
func (m *Manager) Register(clientID string, id int) (string, error) {
	entry, err := m.lookup(id)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	ce := m.clients[clientID]
	m.mu.RUnlock()
	if ce == nil {
		return "", fmt.Errorf("session: unknown client %s", clientID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if _, ok := entry.registeredClients[clientID]; ok {
		return fmt.Sprintf("Already registered to LogWatch %d", id), nil
	}
	entry.registeredClients[clientID] = ce.session
	ce.registered[id] = struct{}{}
	return fmt.Sprintf("Registered to LogWatch %d", id), nil
}

// Unregister removes clientID from LogWatch id's hit stream.
func (m *Manager) Unregister(clientID string, id int) (string, error) {
	entry, err := m.lookup(id)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	ce := m.clients[clientID]
	m.mu.RUnlock()
	if ce == nil {
		return "", fmt.Errorf("session: unknown client %s", clientID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if _, ok := entry.registeredClients[clientID]; !ok {
		return fmt.Sprintf("Already not registered to LogWatch %d", id), nil
	}
	delete(entry.registeredClients, clientID)
	delete(ce.registered, id)
	return fmt.Sprintf("Unregistered from LogWatch %d", id), nil
}

// SetMatch, CombineMatch, DelMatch, Save, and Load all follow the same
// shape: look up the LwId under the registry lock, release it, then push a
// tagged command onto the worker's unbounded queue and wait for the
// worker's reply. Waiting on the reply, rather than firing and forgetting,
// is what lets InvalidAddress/InvalidMatchfield/InvalidOperator/IOError
// reach the issuing client instead of only being logged worker-side.
func (m *Manager) SetMatch(id int, addr ruletree.Address, p predicate.Predicate) error {
	entry, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.dispatchCommand(entry, watcher.Command{Kind: watcher.SetMatch, Addr: addr, Predicate: p})
}

func (m *Manager) CombineMatch(id int, addr ruletree.Address, p predicate.Predicate, c ruletree.Connector) error {
	entry, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.dispatchCommand(entry, watcher.Command{Kind: watcher.CombineMatch, Addr: addr, Predicate: p, Connector: c})
}

func (m *Manager) DelMatch(id int, addr ruletree.Address) error {
	entry, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.dispatchCommand(entry, watcher.Command{Kind: watcher.DelMatch, Addr: addr})
}

func (m *Manager) Save(id int) error {
	entry, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.dispatchCommand(entry, watcher.Command{Kind: watcher.Save})
}

func (m *Manager) Load(id int) error {
	entry, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.dispatchCommand(entry, watcher.Command{Kind: watcher.Load})
}

// dispatchCommand pushes cmd onto entry's command queue under the
// per-watcher lock — taken only after the caller's m.lookup has already
// released the registry lock — and waits for the worker's reply.
func (m *Manager) dispatchCommand(entry *watcherEntry, cmd watcher.Command) error {
	reply := make(chan error, 1)
	cmd.Reply = reply

	entry.mu.Lock()
	entry.cmdQueue.Send(cmd)
	entry.mu.Unlock()

	return <-reply
}

// Disconnect tears down clientID's registrations: the Manager removes a
// disconnecting client from every watcher's registered-clients set before
// releasing its handle.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	ce := m.clients[clientID]
	delete(m.clients, clientID)
	m.mu.Unlock()
	if ce == nil {
		return
	}

	for id := range ce.registered {
		entry, err := m.lookup(id)
		if err != nil {
			continue
		}
		entry.mu.Lock()
		delete(entry.registeredClients, clientID)
		entry.mu.Unlock()
	}
	m.logger.Info("client disconnected", "client_id", clientID)
}
