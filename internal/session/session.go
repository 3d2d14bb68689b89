// Package session implements the Client Session (C5): a line-oriented TCP
// handler that reads framed commands, dispatches them to a Manager, and
// writes framed responses and streamed hits. It depends only on the
// Dispatcher interface below, never on the manager package directly, so the
// manager can hold a registry of *Session values without an import cycle.
package session

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/Dave360-crypto/LogWatcher/internal/logging"
	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
	"github.com/Dave360-crypto/LogWatcher/internal/ruletree"
)

// WatcherStatus is one line of a `list` response.
type WatcherStatus struct {
	ID         int
	Label      string
	Subscribed bool
	HitCount   int
}

// Dispatcher is everything a Session needs from the Manager. The Manager
// type implements this directly.
type Dispatcher interface {
	Create(clientID string) (id int, label string)
	List(clientID string) []WatcherStatus
	Register(clientID string, id int) (string, error)
	Unregister(clientID string, id int) (string, error)
	SetMatch(id int, addr ruletree.Address, p predicate.Predicate) error
	CombineMatch(id int, addr ruletree.Address, p predicate.Predicate, c ruletree.Connector) error
	DelMatch(id int, addr ruletree.Address) error
	Save(id int) error
	Load(id int) error
	Disconnect(clientID string)
}

// Session is one client's TCP connection.
type Session struct {
	ID         string
	conn       net.Conn
	dispatcher Dispatcher
	logger     *slog.Logger

	writeMu sync.Mutex

	mu              sync.Mutex
	selectedWatcher *int
}

// New constructs a session over an accepted connection. The caller is
// responsible for calling Run (typically in its own goroutine) and for
// closing conn once Run returns.
func New(id string, conn net.Conn, dispatcher Dispatcher, logger *slog.Logger) *Session {
	return &Session{
		ID:         id,
		conn:       conn,
		dispatcher: dispatcher,
		logger:     logging.Default(logger).With("component", "session", "client_id", id),
	}
}

// WriteLine writes a raw line (no framing) to the client, serialized
// against concurrent responses by the session's write mutex. This is what
// the Manager calls to stream a hit to a registered client.
func (s *Session) WriteLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := fmt.Fprintln(s.conn, line)
	return err
}

func (s *Session) respond(text string) {
	if err := s.WriteLine("respond\n" + text); err != nil {
		s.logger.Debug("write failed", "error", err)
	}
}

// Run reads commands until the connection closes or ctx-equivalent EOF,
// tearing down the session's registrations via Dispatcher.Disconnect on
// exit. It never returns an error the caller must act on beyond logging --
// a disconnect is an ordinary lifecycle event, not a failure.
func (s *Session) Run() {
	defer s.dispatcher.Disconnect(s.ID)
	s.logger.Info("session started")
	defer s.logger.Info("session stopped")

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.handle(line)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("read error", "error", err)
	}
}

func (s *Session) handle(line string) {
	tokens := splitTopLevel(line)
	if len(tokens) == 0 {
		s.respond("Invalid Command")
		return
	}

	switch tokens[0] {
	case "create":
		id, label := s.dispatcher.Create(s.ID)
		s.respond(fmt.Sprintf("Created Log Watch %d (%s)", id, label))

	case "list":
		statuses := s.dispatcher.List(s.ID)
		if len(statuses) == 0 {
			s.respond("-")
			return
		}
		var sb []byte
		for i, st := range statuses {
			if i > 0 {
				sb = append(sb, '\n')
			}
			flag := " "
			if st.Subscribed {
				flag = "+"
			}
			sb = append(sb, []byte(fmt.Sprintf("%s%d", flag, st.HitCount))...)
		}
		s.respond(string(sb))

	case "register":
		s.handleID(tokens, func(id int) {
			text, err := s.dispatcher.Register(s.ID, id)
			if err != nil {
				s.respond(err.Error())
				return
			}
			s.respond(text)
		})

	case "unregister":
		s.handleID(tokens, func(id int) {
			text, err := s.dispatcher.Unregister(s.ID, id)
			if err != nil {
				s.respond(err.Error())
				return
			}
			s.respond(text)
		})

	case "select":
		if len(tokens) != 2 {
			s.respond("Invalid Command")
			return
		}
		id, err := parseLwID(tokens[1])
		if err != nil {
			s.respond("Invalid Command")
			return
		}
		s.mu.Lock()
		s.selectedWatcher = &id
		s.mu.Unlock()
		if err := s.WriteLine("Success"); err != nil {
			s.logger.Debug("write failed", "error", err)
		}

	case "setMatch":
		s.handleSetMatch(tokens)

	case "combineMatch":
		s.handleCombineMatch(tokens)

	case "delMatch":
		s.handleDelMatch(tokens)

	case "save":
		s.handleID(tokens, func(id int) {
			if err := s.dispatcher.Save(id); err != nil {
				s.respond(err.Error())
				return
			}
			s.respond("Request is sent")
		})

	case "load":
		s.handleID(tokens, func(id int) {
			if err := s.dispatcher.Load(id); err != nil {
				s.respond(err.Error())
				return
			}
			s.respond("Request is sent")
		})

	default:
		s.respond("Invalid Command")
	}
}

func (s *Session) handleID(tokens []string, fn func(id int)) {
	if len(tokens) != 2 {
		s.respond("Invalid Command")
		return
	}
	id, err := parseLwID(tokens[1])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	fn(id)
}

// handleSetMatch parses "setMatch <id> (predicate) (addr)".
func (s *Session) handleSetMatch(tokens []string) {
	if len(tokens) != 4 {
		s.respond("Invalid Command")
		return
	}
	id, err := parseLwID(tokens[1])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	pred, err := parsePredicateTuple(tokens[2])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	addr, err := parseAddrTuple(tokens[3])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	if err := s.dispatcher.SetMatch(id, addr, pred); err != nil {
		s.respond(err.Error())
		return
	}
	s.respond("Request is sent")
}

// handleCombineMatch parses "combineMatch <id> (predicate) AND|OR (addr)".
func (s *Session) handleCombineMatch(tokens []string) {
	if len(tokens) != 5 {
		s.respond("Invalid Command")
		return
	}
	id, err := parseLwID(tokens[1])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	pred, err := parsePredicateTuple(tokens[2])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	conn, err := ruletree.ParseConnector(tokens[3])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	addr, err := parseAddrTuple(tokens[4])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	if err := s.dispatcher.CombineMatch(id, addr, pred, conn); err != nil {
		s.respond(err.Error())
		return
	}
	s.respond("Request is sent")
}

// handleDelMatch parses "delMatch <id> (addr)".
func (s *Session) handleDelMatch(tokens []string) {
	if len(tokens) != 3 {
		s.respond("Invalid Command")
		return
	}
	id, err := parseLwID(tokens[1])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	addr, err := parseAddrTuple(tokens[2])
	if err != nil {
		s.respond("Invalid Command")
		return
	}
	if err := s.dispatcher.DelMatch(id, addr); err != nil {
		s.respond(err.Error())
		return
	}
	s.respond("Request is sent")
}
