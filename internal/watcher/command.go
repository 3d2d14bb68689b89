package watcher

import (
	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
	"github.com/Dave360-crypto/LogWatcher/internal/ruletree"
)

// Kind tags a Command's variant as an explicit sum type rather than a
// string tag.
type Kind int

const (
	SetMatch Kind = iota
	CombineMatch
	DelMatch
	Save
	Load
)

// Command is a tagged message sent from the Manager to a LogWatch Worker on
// its unbounded config channel. Reply, when non-nil, receives exactly one
// value (nil on success) once the worker has applied or rejected the
// command — this is what lets the Manager surface InvalidAddress/
// InvalidMatchfield/InvalidOperator/IOError back to the issuing client
// instead of only logging them worker-side.
type Command struct {
	Kind      Kind
	Addr      ruletree.Address
	Predicate predicate.Predicate
	Connector ruletree.Connector
	Reply     chan<- error
}

// Hit is emitted by a worker whenever evaluate(rules, record) is true.
type Hit struct {
	Line string
}

func reply(ch chan<- error, err error) {
	if ch == nil {
		return
	}
	ch <- err
}
