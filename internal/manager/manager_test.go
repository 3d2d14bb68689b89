package manager

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/Dave360-crypto/LogWatcher/internal/collector"
	"github.com/Dave360-crypto/LogWatcher/internal/config"
	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
	"github.com/Dave360-crypto/LogWatcher/internal/record"
)

func startTestManager(t *testing.T) (*Manager, net.Addr) {
	t.Helper()
	cfg := config.Default()
	cfg.PersistDir = t.TempDir()
	cfg.LogChannelCap = 16
	cfg.HitFanInCap = 16

	mgr := New(cfg, &predicate.Environment{}, nil)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go mgr.Serve(ctx, listener)
	t.Cleanup(func() { listener.Close() })

	return mgr, listener.Addr()
}

func dialAndRead(t *testing.T, addr net.Addr) (net.Conn, *bufio.Scanner) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewScanner(conn)
}

func readLine(t *testing.T, scanner *bufio.Scanner) string {
	t.Helper()
	if !scanner.Scan() {
		t.Fatalf("expected a line, scanner stopped: %v", scanner.Err())
	}
	return scanner.Text()
}

// TestCreateSetMatchRegisterHit covers S1: create, setMatch, register, and
// confirm a matching record streams to the client while a non-matching one
// doesn't.
func TestCreateSetMatchRegisterHit(t *testing.T) {
	mgr, addr := startTestManager(t)
	conn, scanner := dialAndRead(t, addr)

	mustWrite(t, conn, "create")
	if line := readLine(t, scanner); line != "respond" {
		t.Fatalf("expected framing line 'respond', got %q", line)
	}
	created := readLine(t, scanner)
	if created == "" {
		t.Fatalf("expected a created-watch confirmation line")
	}

	mustWrite(t, conn, "setMatch 0 (WHOLE, RE, ssh.*, false, false) ()")
	if line := readLine(t, scanner); line != "respond" {
		t.Fatalf("expected framing line 'respond', got %q", line)
	}
	if line := readLine(t, scanner); line != "Request is sent" {
		t.Fatalf("expected 'Request is sent', got %q", line)
	}

	mustWrite(t, conn, "register 0")
	if line := readLine(t, scanner); line != "respond" {
		t.Fatalf("expected framing line 'respond', got %q", line)
	}
	if line := readLine(t, scanner); line != "Registered to LogWatch 0" {
		t.Fatalf("unexpected register response %q", line)
	}

	mgr.CollectorIn() <- collector.Message{Addr: "127.0.0.1:9999", Record: record.Record{Msg: "sshd: accepted", Raw: "sshd: accepted"}}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if line := readLine(t, scanner); line != "sshd: accepted" {
		t.Fatalf("expected streamed hit, got %q", line)
	}

	mgr.CollectorIn() <- collector.Message{Addr: "127.0.0.1:9999", Record: record.Record{Msg: "cron run", Raw: "cron run"}}

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if scanner.Scan() {
		t.Fatalf("unexpected extra line for non-matching record: %q", scanner.Text())
	}
}

func mustWrite(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
}
