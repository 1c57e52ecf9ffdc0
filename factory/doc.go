// Package factory builds transport engine options from built-in defaults and
// environment overrides.
//
// # Configuration
//
// The factory reads the following environment variables when it is created:
//   - PEERLINK_ACK_TIMEOUT_MS: integer milliseconds each transmission waits for an ACK
//   - PEERLINK_REPLY_TIMEOUT_MS: integer milliseconds a reliable send waits for a REPLY
//   - PEERLINK_RESEND_COUNT: integer number of retransmissions
//   - PEERLINK_WORKERS: integer bound on concurrent sends and handlers
//
// Unparsable or out-of-bounds values are logged and ignored.
//
// # Usage
//
//	f := factory.NewEngineFactory()
//	opts := f.EngineOptions("alice", ":0")
//	engine, err := transport.NewEngine(opts)
//
// Tests use TestEngineOptions for short timeouts:
//
//	opts := factory.NewEngineFactory().TestEngineOptions("alice")
package factory
