// Command logwatcherd runs the syslog watcher service: a UDP Collector, a
// line-oriented TCP control protocol, and the Manager that ties them
// together.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Dave360-crypto/LogWatcher/internal/collector"
	"github.com/Dave360-crypto/LogWatcher/internal/config"
	"github.com/Dave360-crypto/LogWatcher/internal/enrich"
	"github.com/Dave360-crypto/LogWatcher/internal/logging"
	"github.com/Dave360-crypto/LogWatcher/internal/manager"
	"github.com/Dave360-crypto/LogWatcher/internal/predicate"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // Allow all levels; filtering done by ComponentFilterHandler.
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	cfg := config.Default()

	rootCmd := &cobra.Command{
		Use:     "logwatcherd",
		Short:   "Multi-tenant syslog watcher",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, logger)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.UDPAddr, "udp-addr", cfg.UDPAddr, "syslog UDP listen address")
	flags.StringVar(&cfg.TCPAddr, "tcp-addr", cfg.TCPAddr, "control protocol TCP listen address")
	flags.StringVar(&cfg.PersistDir, "persist-dir", cfg.PersistDir, "directory for LogWatch<id>.json snapshots")
	flags.IntVar(&cfg.LogChannelCap, "log-channel-cap", cfg.LogChannelCap, "per-LogWatch bounded log channel depth")
	flags.IntVar(&cfg.RecentHitsCap, "recent-hits-cap", cfg.RecentHitsCap, "steady-state size of each LogWatch's recent-hits buffer")
	flags.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "how often the recent-hits sweep runs")
	flags.Float64Var(&cfg.IngestRatePerSec, "ingest-rate", cfg.IngestRatePerSec, "max syslog datagrams decoded per second (0 disables)")
	flags.IntVar(&cfg.IngestBurst, "ingest-burst", cfg.IngestBurst, "ingest rate limiter burst size")
	flags.StringVar(&cfg.GeoIPDatabasePath, "geoip-db", cfg.GeoIPDatabasePath, "path to a MaxMind GeoIP2/GeoLite2 Country database, backs the GEOIP matchfield")
	flags.BoolVar(&cfg.WatchPersistence, "watch-persistence", cfg.WatchPersistence, "reload a LogWatch when its snapshot file changes on disk")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	env := &predicate.Environment{UA: enrich.UserAgent{}}
	if cfg.GeoIPDatabasePath != "" {
		geo, err := enrich.OpenGeoIP(cfg.GeoIPDatabasePath)
		if err != nil {
			return fmt.Errorf("logwatcherd: %w", err)
		}
		defer geo.Close()
		env.Geo = geo
	}

	mgr := manager.New(cfg, env, logger)

	listener, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("logwatcherd: bind control socket: %w", err)
	}
	defer listener.Close()

	var limiter *rate.Limiter
	if cfg.IngestRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.IngestRatePerSec), cfg.IngestBurst)
	}
	coll := collector.New(cfg.UDPAddr, mgr.CollectorIn(), limiter, logger)

	sched, err := mgr.StartSweep(ctx)
	if err != nil {
		return fmt.Errorf("logwatcherd: start sweep: %w", err)
	}
	defer sched.Shutdown() //nolint:errcheck

	if cfg.WatchPersistence {
		if err := mgr.WatchPersistence(ctx); err != nil {
			return fmt.Errorf("logwatcherd: %w", err)
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return mgr.Serve(gctx, listener)
	})
	group.Go(func() error {
		return coll.ListenAndServe(gctx)
	})

	if err := group.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}
