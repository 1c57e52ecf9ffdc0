package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/transport"
)

// Environment variables read by NewEngineFactory.
const (
	EnvAckTimeout   = "PEERLINK_ACK_TIMEOUT_MS"
	EnvReplyTimeout = "PEERLINK_REPLY_TIMEOUT_MS"
	EnvResendCount  = "PEERLINK_RESEND_COUNT"
	EnvWorkers      = "PEERLINK_WORKERS"
)

// Validation bounds for environment overrides.
const (
	// MinTimeoutMs is the smallest accepted ACK or REPLY timeout.
	MinTimeoutMs = 10
	// MaxTimeoutMs is the largest accepted ACK or REPLY timeout (10 minutes).
	MaxTimeoutMs = 600000
	// MinResendCount is the smallest accepted resend count.
	MinResendCount = 0
	// MaxResendCount is the largest accepted resend count.
	MaxResendCount = 100
	// MinWorkers is the smallest accepted worker bound.
	MinWorkers = 1
	// MaxWorkers is the largest accepted worker bound.
	MaxWorkers = 4096
)

// Config is the engine configuration produced by the factory.
type Config struct {
	Reliable transport.ReliableConfig
	Workers  int
}

// EngineFactory hands out engine options built from its current Config.
// It is safe for concurrent use.
type EngineFactory struct {
	mu     sync.RWMutex
	config Config
}

// TestConfigOption customizes the configuration returned by
// TestEngineOptions.
type TestConfigOption func(*Config)

// NewEngineFactory creates a factory from the built-in defaults with
// environment overrides applied.
func NewEngineFactory() *EngineFactory {
	config := defaultConfig()
	applyEnvironmentOverrides(&config)

	logrus.WithFields(logrus.Fields{
		"function":      "NewEngineFactory",
		"ack_timeout":   config.Reliable.AckTimeout.String(),
		"reply_timeout": config.Reliable.ReplyTimeout.String(),
		"resend_count":  config.Reliable.ResendCount,
		"workers":       config.Workers,
	}).Debug("Created engine factory")

	return &EngineFactory{config: config}
}

func defaultConfig() Config {
	return Config{
		Reliable: transport.DefaultReliableConfig(),
		Workers:  transport.DefaultWorkers,
	}
}

func applyEnvironmentOverrides(config *Config) {
	if ms, ok := intFromEnv(EnvAckTimeout, MinTimeoutMs, MaxTimeoutMs); ok {
		config.Reliable.AckTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := intFromEnv(EnvReplyTimeout, MinTimeoutMs, MaxTimeoutMs); ok {
		config.Reliable.ReplyTimeout = time.Duration(ms) * time.Millisecond
	}
	if n, ok := intFromEnv(EnvResendCount, MinResendCount, MaxResendCount); ok {
		config.Reliable.ResendCount = n
	}
	if n, ok := intFromEnv(EnvWorkers, MinWorkers, MaxWorkers); ok {
		config.Workers = n
	}
}

// intFromEnv parses name as an integer in [lo, hi]. It reports false, after
// logging, when the variable is unset, unparsable or out of bounds.
func intFromEnv(name string, lo, hi int) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "intFromEnv",
			"env_var":  name,
			"value":    raw,
			"error":    err.Error(),
		}).Warn("Failed to parse environment variable, using default")
		return 0, false
	}
	if v < lo || v > hi {
		logrus.WithFields(logrus.Fields{
			"function": "intFromEnv",
			"env_var":  name,
			"value":    v,
			"min":      lo,
			"max":      hi,
		}).Warn("Environment variable out of bounds, using default")
		return 0, false
	}
	return v, true
}

// EngineOptions returns engine options for userID listening on listenAddr.
func (f *EngineFactory) EngineOptions(userID, listenAddr string) *transport.Options {
	config := f.CurrentConfig()
	opts := transport.NewOptions(userID)
	opts.ListenAddr = listenAddr
	opts.Defaults = config.Reliable
	opts.Workers = config.Workers
	return opts
}

// TestEngineOptions returns loopback engine options with short timeouts.
// The defaults are a 50ms ACK timeout, a 500ms reply timeout, two resends and
// four workers.
func (f *EngineFactory) TestEngineOptions(userID string, opts ...TestConfigOption) *transport.Options {
	config := Config{
		Reliable: transport.ReliableConfig{
			AckTimeout:   50 * time.Millisecond,
			ReplyTimeout: 500 * time.Millisecond,
			ResendCount:  2,
		},
		Workers: 4,
	}
	for _, opt := range opts {
		opt(&config)
	}

	o := transport.NewOptions(userID)
	o.ListenAddr = "127.0.0.1:0"
	o.Defaults = config.Reliable
	o.Workers = config.Workers
	return o
}

// CurrentConfig returns a copy of the factory configuration.
func (f *EngineFactory) CurrentConfig() Config {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.config
}

// UpdateConfig replaces the factory configuration after validating it.
func (f *EngineFactory) UpdateConfig(config Config) error {
	if err := validate(config); err != nil {
		return err
	}

	f.mu.Lock()
	old := f.config
	f.config = config
	f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "UpdateConfig",
		"old_ack":     old.Reliable.AckTimeout.String(),
		"new_ack":     config.Reliable.AckTimeout.String(),
		"old_workers": old.Workers,
		"new_workers": config.Workers,
	}).Info("Updated engine factory configuration")
	return nil
}

func validate(config Config) error {
	ms := func(d time.Duration) int64 { return d.Milliseconds() }
	switch {
	case ms(config.Reliable.AckTimeout) < MinTimeoutMs || ms(config.Reliable.AckTimeout) > MaxTimeoutMs:
		return fmt.Errorf("ack timeout %s out of bounds", config.Reliable.AckTimeout)
	case ms(config.Reliable.ReplyTimeout) < MinTimeoutMs || ms(config.Reliable.ReplyTimeout) > MaxTimeoutMs:
		return fmt.Errorf("reply timeout %s out of bounds", config.Reliable.ReplyTimeout)
	case config.Reliable.ResendCount < MinResendCount || config.Reliable.ResendCount > MaxResendCount:
		return fmt.Errorf("resend count %d out of bounds", config.Reliable.ResendCount)
	case config.Workers < MinWorkers || config.Workers > MaxWorkers:
		return fmt.Errorf("workers %d out of bounds", config.Workers)
	}
	return nil
}
