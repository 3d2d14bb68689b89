// Package watcher implements the LogWatch Worker (C3): an isolated actor
// owning one rule tree, consuming commands and logs on two channels and
// emitting hits on a third. Isolation rationale: each worker gets its own
// goroutine and recovers from its own panics so a bad regex or predicate
// can't corrupt a peer watcher or the Manager.
package watcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dave360-crypto/LogWatcher/internal/logging"
	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
	"github.com/Dave360-crypto/LogWatcher/internal/record"
	"github.com/Dave360-crypto/LogWatcher/internal/ruletree"
)

// Worker runs one LogWatch: single state RUNNING, terminating only when its
// context is canceled or its inbound channels close.
type Worker struct {
	ID         int
	Label      string
	PersistDir string

	tree   *ruletree.Tree
	env    *predicate.Environment
	logger *slog.Logger

	cmds <-chan Command
	logs <-chan record.Record
	hits chan<- Hit
}

// New constructs a worker with an empty rule tree. cmds should be the
// outbound side of an unbounded queue (internal/queue); logs should be a
// bounded, drop-oldest channel — callers own both channels' delivery
// policy, the worker only consumes them.
func New(id int, persistDir string, cmds <-chan Command, logs <-chan record.Record, hits chan<- Hit, env *predicate.Environment, logger *slog.Logger) *Worker {
	logger = logging.Default(logger).With("component", "watcher", "lw_id", id)
	return &Worker{
		ID:         id,
		PersistDir: persistDir,
		tree:       ruletree.New(),
		env:        env,
		logger:     logger,
		cmds:       cmds,
		logs:       logs,
		hits:       hits,
	}
}

// Run processes commands and logs until ctx is canceled or both channels
// close. It recovers from panics in predicate evaluation (a pathological
// regex, for instance) by logging and continuing rather than taking the
// whole process down — the isolation guarantee the rule tree's owner
// depends on.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	defer w.logger.Info("worker stopped")

	cmds, logs := w.cmds, w.logs
	for cmds != nil || logs != nil {
		select {
		case <-ctx.Done():
			return

		case cmd, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			w.handleCommand(cmd)

		case rec, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			w.handleLog(rec)
		}
	}
}

func (w *Worker) handleCommand(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("command panicked", "kind", cmd.Kind, "recovered", r)
			reply(cmd.Reply, fmt.Errorf("watcher: internal error handling command"))
		}
	}()

	switch cmd.Kind {
	case SetMatch:
		err := w.tree.SetMatch(cmd.Addr, cmd.Predicate)
		if err != nil {
			w.logger.Error("setMatch failed", "addr", cmd.Addr, "error", err)
		}
		reply(cmd.Reply, err)

	case CombineMatch:
		err := w.tree.CombineMatch(cmd.Addr, cmd.Predicate, cmd.Connector)
		if err != nil {
			w.logger.Error("combineMatch failed", "addr", cmd.Addr, "error", err)
		}
		reply(cmd.Reply, err)

	case DelMatch:
		err := w.tree.DelMatch(cmd.Addr)
		if err != nil {
			w.logger.Error("delMatch failed", "addr", cmd.Addr, "error", err)
		}
		reply(cmd.Reply, err)

	case Save:
		err := save(w.PersistDir, w.ID, w.tree)
		if err != nil {
			w.logger.Error("save failed", "error", err)
		}
		reply(cmd.Reply, err)

	case Load:
		tree, err := load(w.PersistDir, w.ID)
		if err != nil {
			w.logger.Error("load failed", "error", err)
			reply(cmd.Reply, err)
			return
		}
		w.tree = tree
		reply(cmd.Reply, nil)

	default:
		reply(cmd.Reply, fmt.Errorf("watcher: unknown command kind %d", cmd.Kind))
	}
}

func (w *Worker) handleLog(rec record.Record) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("evaluate panicked", "recovered", r)
		}
	}()

	matched, err := evaluate(w.tree.Root, rec, w.env)
	if err != nil {
		w.logger.Error("evaluate failed", "error", err)
		return
	}
	if !matched {
		return
	}

	select {
	case w.hits <- Hit{Line: rec.Raw}:
	default:
		// The hit fan-in is itself bounded by the Manager; a full channel
		// here means the Manager is falling behind, not that this worker
		// should block and stall every other worker's hits.
		w.logger.Warn("hit dropped: manager fan-in full")
	}
}

// evaluate walks the rule tree, short-circuiting AND/OR left-to-right.
func evaluate(n *ruletree.Node, rec record.Record, env *predicate.Environment) (bool, error) {
	if n.IsLeaf() {
		if n.Predicate == nil {
			return true, nil
		}
		return predicate.Evaluate(*n.Predicate, rec, env)
	}

	left, err := evaluate(n.Left, rec, env)
	if err != nil {
		return false, err
	}
	if n.Connector == ruletree.AND && !left {
		return false, nil
	}
	if n.Connector == ruletree.OR && left {
		return true, nil
	}
	return evaluate(n.Right, rec, env)
}
