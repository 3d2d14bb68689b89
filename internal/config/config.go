// Package config holds the process-wide settings logwatcherd is started
// with: the struct shape cobra flags in cmd/logwatcherd populate. There is
// no RPC config surface.
package config

import "time"

// Config is every flag-controlled setting logwatcherd needs at startup.
type Config struct {
	// UDPAddr is where the Collector binds for syslog ingest (default
	// "localhost:514").
	UDPAddr string
	// TCPAddr is where the control protocol listens (default
	// "localhost:2470").
	TCPAddr string

	// PersistDir is the directory LogWatch<id>.json snapshots are read
	// from and written to.
	PersistDir string

	// LogChannelCap bounds each LogWatch's inbound log channel; at this
	// depth, the oldest queued record is dropped to make room for a new one
	// rather than blocking the Manager.
	LogChannelCap int
	// HitFanInCap bounds the Manager's fanned-in worker-hit channel.
	HitFanInCap int
	// RecentHitsCap is the steady-state size the periodic sweep trims each
	// LogWatch's recent-hits ring buffer down to.
	RecentHitsCap int
	// SweepInterval is how often the gocron sweep job runs.
	SweepInterval time.Duration

	// IngestRatePerSec throttles the Collector's datagram decode rate; 0
	// disables the limiter.
	IngestRatePerSec float64
	// IngestBurst is the token bucket's burst size.
	IngestBurst int

	// GeoIPDatabasePath, if set, backs the supplemental GEOIP matchfield.
	GeoIPDatabasePath string

	// WatchPersistence enables the optional fsnotify-driven hot-reload of
	// on-disk LogWatch snapshots.
	WatchPersistence bool
}

// Default returns the baseline operating point: conventional UDP/TCP
// listen addresses, everything else a reasonable default.
func Default() Config {
	return Config{
		UDPAddr:          "localhost:514",
		TCPAddr:          "localhost:2470",
		PersistDir:       ".",
		LogChannelCap:    1024,
		HitFanInCap:      1024,
		RecentHitsCap:    50,
		SweepInterval:    30 * time.Second,
		IngestRatePerSec: 0,
		IngestBurst:      256,
	}
}
