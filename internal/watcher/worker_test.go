package watcher

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
	"github.com/Dave360-crypto/LogWatcher/internal/queue"
	"github.com/Dave360-crypto/LogWatcher/internal/record"
	"github.com/Dave360-crypto/LogWatcher/internal/ruletree"
)

// TestEvaluateEmptyTreeMatchesEverything is testable property #4.
func TestEvaluateEmptyTreeMatchesEverything(t *testing.T) {
	tree := ruletree.New()
	ok, err := evaluate(tree.Root, record.Record{Msg: "anything"}, nil)
	if err != nil || !ok {
		t.Fatalf("empty tree should match everything: ok=%v err=%v", ok, err)
	}
}

func TestEvaluateANDShortCircuits(t *testing.T) {
	tree := ruletree.New()
	field, _ := predicate.ParseMatchField("WHOLE")
	p := predicate.Predicate{Field: field, Operator: predicate.EQ, Value: "x"}
	if err := tree.SetMatch(ruletree.Address{}, p); err != nil {
		t.Fatal(err)
	}
	if err := tree.CombineMatch(ruletree.Address{}, p, ruletree.AND); err != nil {
		t.Fatal(err)
	}

	ok, err := evaluate(tree.Root, record.Record{Msg: "y"}, nil)
	if err != nil || ok {
		t.Fatalf("AND of two false-on-y predicates should be false: ok=%v err=%v", ok, err)
	}
	ok, err = evaluate(tree.Root, record.Record{Msg: "x"}, nil)
	if err != nil || !ok {
		t.Fatalf("AND of two true-on-x predicates should be true: ok=%v err=%v", ok, err)
	}

	// A false left child must stop evaluation before a right child that
	// would fail ("bogus" is not a severity).
	sev, _ := predicate.ParseMatchField("SEVERITY")
	bad := predicate.Predicate{Field: sev, Operator: predicate.EQ, Value: "bogus"}
	short := ruletree.New()
	if err := short.SetMatch(ruletree.Address{}, p); err != nil {
		t.Fatal(err)
	}
	if err := short.CombineMatch(ruletree.Address{}, bad, ruletree.AND); err != nil {
		t.Fatal(err)
	}
	ok, err = evaluate(short.Root, record.Record{Msg: "y"}, nil)
	if err != nil || ok {
		t.Fatalf("AND with a false left child should skip the right child: ok=%v err=%v", ok, err)
	}
}

func TestWorkerSetMatchThenLogEmitsHit(t *testing.T) {
	cmdQueue := queue.NewUnbounded[Command]()
	logs := make(chan record.Record, 1)
	hits := make(chan Hit, 1)

	w := New(0, t.TempDir(), cmdQueue.Out(), logs, hits, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	field, _ := predicate.ParseMatchField("WHOLE")
	reply := make(chan error, 1)
	cmdQueue.Send(Command{
		Kind:      SetMatch,
		Addr:      ruletree.Address{},
		Predicate: predicate.Predicate{Field: field, Operator: predicate.REOp, Value: "ssh.*"},
		Reply:     reply,
	})
	if err := <-reply; err != nil {
		t.Fatalf("setMatch failed: %v", err)
	}

	logs <- record.Record{Msg: "sshd: accepted", Raw: "sshd: accepted"}
	select {
	case hit := <-hits:
		if hit.Line != "sshd: accepted" {
			t.Fatalf("unexpected hit line %q", hit.Line)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hit")
	}

	logs <- record.Record{Msg: "cron run", Raw: "cron run"}
	select {
	case hit := <-hits:
		t.Fatalf("unexpected hit for non-matching record: %+v", hit)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWorkerInvalidAddressSurfacedOnReply(t *testing.T) {
	cmdQueue := queue.NewUnbounded[Command]()
	logs := make(chan record.Record, 1)
	hits := make(chan Hit, 1)

	w := New(0, t.TempDir(), cmdQueue.Out(), logs, hits, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	reply := make(chan error, 1)
	cmdQueue.Send(Command{Kind: DelMatch, Addr: ruletree.Address{0}, Reply: reply})
	if err := <-reply; err == nil {
		t.Fatalf("expected InvalidAddress deleting through an empty leaf")
	}
}

func TestSaveLoadThroughWorker(t *testing.T) {
	dir := t.TempDir()
	cmdQueue := queue.NewUnbounded[Command]()
	logs := make(chan record.Record, 1)
	hits := make(chan Hit, 1)

	w := New(7, dir, cmdQueue.Out(), logs, hits, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	field, _ := predicate.ParseMatchField("WHOLE")
	setReply := make(chan error, 1)
	cmdQueue.Send(Command{
		Kind:      SetMatch,
		Predicate: predicate.Predicate{Field: field, Operator: predicate.EQ, Value: "hello"},
		Reply:     setReply,
	})
	if err := <-setReply; err != nil {
		t.Fatal(err)
	}

	saveReply := make(chan error, 1)
	cmdQueue.Send(Command{Kind: Save, Reply: saveReply})
	if err := <-saveReply; err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if _, err := os.Stat(jsonPath(dir, 7)); err != nil {
		t.Fatalf("expected snapshot file: %v", err)
	}

	loadReply := make(chan error, 1)
	cmdQueue.Send(Command{Kind: Load, Reply: loadReply})
	if err := <-loadReply; err != nil {
		t.Fatalf("load failed: %v", err)
	}
}
