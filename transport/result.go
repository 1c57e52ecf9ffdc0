package transport

import (
	"fmt"

	"github.com/opd-ai/peerlink/protocol"
)

// ResultKind enumerates the outcomes of a reliable send.
type ResultKind int

const (
	// ResultReceived means the peer acknowledged the message.
	ResultReceived ResultKind = iota
	// ResultReplied means the peer answered and the reply handler ran.
	ResultReplied
	// ResultTimeout means no acknowledgement or reply arrived in time.
	ResultTimeout
	// ResultExtraError means the send failed locally.
	ResultExtraError
	// ResultExtended carries a feature-specific outcome.
	ResultExtended
)

// String returns a human-readable representation of the ResultKind.
func (k ResultKind) String() string {
	switch k {
	case ResultReceived:
		return "RECEIVED"
	case ResultReplied:
		return "REPLIED"
	case ResultTimeout:
		return "TIMEOUT"
	case ResultExtraError:
		return "EXTRA_ERROR"
	case ResultExtended:
		return "EXTENDED"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the outcome of a reliable send. Data holds the reply handler
// value for ResultReplied and the feature value for ResultExtended; Err is
// set for ResultExtraError; Tag names the ResultExtended case.
type Result struct {
	Kind ResultKind
	Data any
	Err  error
	Tag  string
}

// Received returns a ResultReceived.
func Received() Result { return Result{Kind: ResultReceived} }

// Replied returns a ResultReplied carrying the handler value.
func Replied(data any) Result { return Result{Kind: ResultReplied, Data: data} }

// Timeout returns a ResultTimeout.
func Timeout() Result { return Result{Kind: ResultTimeout} }

// ExtraError returns a ResultExtraError wrapping err.
func ExtraError(err error) Result { return Result{Kind: ResultExtraError, Err: err} }

// Extended returns a feature-specific result.
func Extended(tag string, data any) Result {
	return Result{Kind: ResultExtended, Tag: tag, Data: data}
}

// IsReceived reports whether the message was acknowledged without a reply.
func (r Result) IsReceived() bool { return r.Kind == ResultReceived }

// IsReplied reports whether a reply was received and handled.
func (r Result) IsReplied() bool { return r.Kind == ResultReplied }

// ReplyInt returns the reply value as an int when the result is REPLIED.
func (r Result) ReplyInt() (int, bool) {
	if r.Kind != ResultReplied {
		return 0, false
	}
	v, ok := r.Data.(int)
	return v, ok
}

// ReplyBool returns the reply value as a bool when the result is REPLIED.
func (r Result) ReplyBool() (bool, bool) {
	if r.Kind != ResultReplied {
		return false, false
	}
	v, ok := r.Data.(bool)
	return v, ok
}

func (r Result) String() string {
	switch r.Kind {
	case ResultReplied:
		return fmt.Sprintf("%s(%v)", r.Kind, r.Data)
	case ResultExtraError:
		return fmt.Sprintf("%s(%v)", r.Kind, r.Err)
	case ResultExtended:
		return fmt.Sprintf("%s(%s: %v)", r.Kind, r.Tag, r.Data)
	default:
		return r.Kind.String()
	}
}

// ReplyHandler turns a correlated REPLY into the value of a REPLIED result.
// A returned error turns the outcome into ResultExtraError.
type ReplyHandler func(reply *protocol.Message) (any, error)
