package factory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/peerlink/transport"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvAckTimeout, EnvReplyTimeout, EnvResendCount, EnvWorkers} {
		t.Setenv(name, "")
	}
}

func TestNewEngineFactoryDefaults(t *testing.T) {
	clearEnv(t)
	config := NewEngineFactory().CurrentConfig()
	assert.Equal(t, transport.DefaultReliableConfig(), config.Reliable)
	assert.Equal(t, transport.DefaultWorkers, config.Workers)
}

func TestEnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, c Config)
	}{
		{
			name: "valid values",
			env: map[string]string{
				EnvAckTimeout:   "250",
				EnvReplyTimeout: "3000",
				EnvResendCount:  "5",
				EnvWorkers:      "8",
			},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, 250*time.Millisecond, c.Reliable.AckTimeout)
				assert.Equal(t, 3*time.Second, c.Reliable.ReplyTimeout)
				assert.Equal(t, 5, c.Reliable.ResendCount)
				assert.Equal(t, 8, c.Workers)
			},
		},
		{
			name: "zero resends accepted",
			env:  map[string]string{EnvResendCount: "0"},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, 0, c.Reliable.ResendCount)
			},
		},
		{
			name: "unparsable values ignored",
			env:  map[string]string{EnvAckTimeout: "fast", EnvWorkers: "many"},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, transport.DefaultAckTimeout, c.Reliable.AckTimeout)
				assert.Equal(t, transport.DefaultWorkers, c.Workers)
			},
		},
		{
			name: "out of bounds values ignored",
			env: map[string]string{
				EnvAckTimeout:   "1",
				EnvReplyTimeout: "999999999",
				EnvResendCount:  "-1",
				EnvWorkers:      "0",
			},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, transport.DefaultReliableConfig(), c.Reliable)
				assert.Equal(t, transport.DefaultWorkers, c.Workers)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tt.check(t, NewEngineFactory().CurrentConfig())
		})
	}
}

func TestEngineOptions(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWorkers, "3")

	opts := NewEngineFactory().EngineOptions("alice", ":4000")
	assert.Equal(t, "alice", opts.UserID)
	assert.Equal(t, ":4000", opts.ListenAddr)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, transport.DefaultReliableConfig(), opts.Defaults)
	assert.Equal(t, transport.DefaultEntryTTL, opts.EntryTTL)
}

func TestTestEngineOptions(t *testing.T) {
	f := NewEngineFactory()

	opts := f.TestEngineOptions("bob")
	assert.Equal(t, "127.0.0.1:0", opts.ListenAddr)
	assert.Equal(t, 50*time.Millisecond, opts.Defaults.AckTimeout)
	assert.Equal(t, 2, opts.Defaults.ResendCount)

	opts = f.TestEngineOptions("bob", func(c *Config) { c.Reliable.ResendCount = 0 })
	assert.Equal(t, 0, opts.Defaults.ResendCount)
}

func TestUpdateConfig(t *testing.T) {
	f := NewEngineFactory()

	valid := Config{
		Reliable: transport.ReliableConfig{AckTimeout: time.Second, ReplyTimeout: 10 * time.Second, ResendCount: 1},
		Workers:  2,
	}
	require.NoError(t, f.UpdateConfig(valid))
	assert.Equal(t, valid, f.CurrentConfig())

	invalid := []Config{
		{Reliable: transport.ReliableConfig{AckTimeout: time.Millisecond, ReplyTimeout: time.Second}, Workers: 1},
		{Reliable: transport.ReliableConfig{AckTimeout: time.Second, ReplyTimeout: time.Hour}, Workers: 1},
		{Reliable: transport.ReliableConfig{AckTimeout: time.Second, ReplyTimeout: time.Second, ResendCount: 101}, Workers: 1},
		{Reliable: transport.ReliableConfig{AckTimeout: time.Second, ReplyTimeout: time.Second}, Workers: 0},
	}
	for _, c := range invalid {
		assert.Error(t, f.UpdateConfig(c))
	}
	assert.Equal(t, valid, f.CurrentConfig())
}

func TestConcurrentAccess(t *testing.T) {
	f := NewEngineFactory()
	config := f.CurrentConfig()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.UpdateConfig(config)
		}()
		go func() {
			defer wg.Done()
			_ = f.EngineOptions("alice", "")
		}()
	}
	wg.Wait()
	assert.Equal(t, config, f.CurrentConfig())
}
