package transport

import "time"

const (
	// DefaultAckTimeout is how long each transmission waits for its ACK.
	DefaultAckTimeout = 5000 * time.Millisecond
	// DefaultReplyTimeout is how long a reliable send waits for a REPLY.
	DefaultReplyTimeout = 45000 * time.Millisecond
	// DefaultResendCount is the number of retransmissions after the first send.
	DefaultResendCount = 2

	// DefaultWorkers bounds concurrent reliable sends and handler dispatch.
	DefaultWorkers = 16
	// DefaultEntryTTL is the age after which unclaimed ACK and REPLY entries
	// are evicted.
	DefaultEntryTTL = 2 * time.Minute

	// TestConnectAckTimeout is the per-attempt ACK wait of a reachability probe.
	TestConnectAckTimeout = 100 * time.Millisecond
	// TestConnectResendCount is the number of probe retransmissions.
	TestConnectResendCount = 2
)

// ReliableConfig overrides the engine defaults for one reliable send.
// A zero ReplyTimeout skips waiting for a reply.
type ReliableConfig struct {
	AckTimeout   time.Duration
	ReplyTimeout time.Duration
	ResendCount  int
}

// DefaultReliableConfig returns the built-in reliability settings.
func DefaultReliableConfig() ReliableConfig {
	return ReliableConfig{
		AckTimeout:   DefaultAckTimeout,
		ReplyTimeout: DefaultReplyTimeout,
		ResendCount:  DefaultResendCount,
	}
}

// TestConnectConfig returns the settings used by TestConnect.
func TestConnectConfig() ReliableConfig {
	return ReliableConfig{
		AckTimeout:  TestConnectAckTimeout,
		ResendCount: TestConnectResendCount,
	}
}

// Options configures an Engine.
type Options struct {
	// UserID is stamped on every outbound message.
	UserID string
	// ListenAddr is the local UDP address; "" binds an ephemeral port on all
	// interfaces.
	ListenAddr string
	// Workers bounds concurrent reliable sends and concurrent handlers.
	Workers int
	// Defaults applies to reliable sends that pass a nil config.
	Defaults ReliableConfig
	// EntryTTL is the sweep age for unclaimed correlation entries.
	EntryTTL time.Duration
	// SweepInterval is how often correlation tables are swept; defaults to
	// EntryTTL.
	SweepInterval time.Duration
	// TimeProvider is used for sweep timestamps; nil uses the system clock.
	TimeProvider TimeProvider
}

// NewOptions returns Options populated with defaults.
func NewOptions(userID string) *Options {
	return &Options{
		UserID:   userID,
		Workers:  DefaultWorkers,
		Defaults: DefaultReliableConfig(),
		EntryTTL: DefaultEntryTTL,
	}
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Defaults.AckTimeout <= 0 {
		o.Defaults.AckTimeout = DefaultAckTimeout
	}
	if o.Defaults.ReplyTimeout <= 0 {
		o.Defaults.ReplyTimeout = DefaultReplyTimeout
	}
	if o.Defaults.ResendCount < 0 {
		o.Defaults.ResendCount = 0
	}
	if o.EntryTTL <= 0 {
		o.EntryTTL = DefaultEntryTTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = o.EntryTTL
	}
}
