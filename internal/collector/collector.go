// Package collector implements the syslog Collector (C4): binds UDP on the
// configured address, decodes each datagram, and forwards (source-address,
// record) pairs to the Manager. It never blocks the Manager — the outbound
// channel send is non-blocking, and a token-bucket limiter sheds excess
// datagrams under an ingest storm rather than letting decode work pile up
// behind a slow consumer.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/time/rate"

	"github.com/Dave360-crypto/LogWatcher/internal/logging"
	"github.com/Dave360-crypto/LogWatcher/internal/record"
)

// Message pairs a decoded record with the UDP address it arrived from.
type Message struct {
	Addr   string
	Record record.Record
}

// Collector owns one UDP socket.
type Collector struct {
	addr    string
	out     chan<- Message
	limiter *rate.Limiter
	logger  *slog.Logger

	conn  *net.UDPConn
	ready chan struct{}
}

// New constructs a Collector. out is the Manager's collector channel; sends
// to it are non-blocking and drop on full (the channel is expected to be
// reasonably large — UDP already permits loss, this just keeps a burst from
// stalling the decode loop). limiter may be nil to disable rate limiting.
func New(addr string, out chan<- Message, limiter *rate.Limiter, logger *slog.Logger) *Collector {
	return &Collector{
		addr:    addr,
		out:     out,
		limiter: limiter,
		logger:  logging.Default(logger).With("component", "collector"),
		ready:   make(chan struct{}),
	}
}

// LocalAddr blocks until the socket is bound (or ctx is done) and returns the
// bound address. Mainly useful in tests and for logging the resolved port
// when the configured address uses ":0".
func (c *Collector) LocalAddr(ctx context.Context) net.Addr {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return nil
	}
	return c.conn.LocalAddr()
}

// ListenAndServe binds the UDP socket and reads datagrams until ctx is
// canceled. A bind failure is fatal per the error handling design: the
// caller should terminate the process on a non-nil, non-context error.
func (c *Collector) ListenAndServe(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", c.addr)
	if err != nil {
		return fmt.Errorf("collector: resolve %s: %w", c.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("collector: bind %s: %w", c.addr, err)
	}
	c.conn = conn
	close(c.ready)
	c.logger.Info("listening", "addr", c.addr)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, srcAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			c.logger.Warn("read error", "error", err)
			continue
		}

		if c.limiter != nil && !c.limiter.Allow() {
			continue
		}

		rec, err := record.Parse(string(buf[:n]))
		if err != nil {
			c.logger.Debug("dropping malformed datagram", "src", srcAddr, "error", err)
			continue
		}

		msg := Message{Addr: srcAddr.String(), Record: rec}
		select {
		case c.out <- msg:
		default:
			c.logger.Warn("dropping record: manager channel full", "src", srcAddr)
		}
	}
}
