// Package timeouts provides centralized timeout values for handler operations.
//
// These are used with context.WithTimeout around database reads/writes and
// outbound HTTP calls so every I/O boundary in the app is bounded by a
// consistent, adjustable value.
//
// Guidelines:
//   - Ping: health checks and connectivity verification
//   - Short: single-document reads or lookups
//   - Medium: list queries, moderate writes, multi-step reads
//   - External: outbound calls to the hosting platform or signing provider
//   - AntiSpam: the bot-check verification call (kept short so a hung
//     dependency cannot stall form submission)
package timeouts

import (
	"sync"
	"time"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing     = 2 * time.Second
	DefaultShort    = 5 * time.Second
	DefaultMedium   = 10 * time.Second
	DefaultExternal = 30 * time.Second
	DefaultAntiSpam = 5 * time.Second
)

// mu protects all timeout values from concurrent access.
var mu sync.RWMutex

var (
	ping     = DefaultPing
	short    = DefaultShort
	medium   = DefaultMedium
	external = DefaultExternal
	antiSpam = DefaultAntiSpam
)

// Ping returns the timeout for health checks and connectivity verification.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short returns the timeout for simple operations like single-document reads.
// Examples: get by ID, lookup by email.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Medium returns the timeout for moderate operations like list queries and
// multi-collection reads.
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

// External returns the timeout for outbound calls to the hosting platform
// and the signing provider.
func External() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return external
}

// AntiSpam returns the hard cap on the bot-check verification call.
func AntiSpam() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return antiSpam
}

// Config holds timeout configuration values.
// Zero values are ignored (defaults are kept).
type Config struct {
	Ping     time.Duration
	Short    time.Duration
	Medium   time.Duration
	External time.Duration
	AntiSpam time.Duration
}

// Configure sets custom timeout values. Zero values in the config are
// ignored, keeping the current (or default) values. Call during application
// startup before handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Medium > 0 {
		medium = cfg.Medium
	}
	if cfg.External > 0 {
		external = cfg.External
	}
	if cfg.AntiSpam > 0 {
		antiSpam = cfg.AntiSpam
	}
}

// Reset restores all timeouts to their default values. Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	medium = DefaultMedium
	external = DefaultExternal
	antiSpam = DefaultAntiSpam
}
