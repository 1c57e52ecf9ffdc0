package controller

import (
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/feature"
	"github.com/opd-ai/peerlink/protocol"
	"github.com/opd-ai/peerlink/transport"
)

func endpoint(s string) address.Endpoint {
	return address.FromAddrPort(netip.MustParseAddrPort(s))
}

var (
	bobPrivate = endpoint("10.0.0.2:9000")
	bobPublic  = endpoint("203.0.113.7:4000")
)

type fixture struct {
	tr      *fakeTransport
	rv      *fakeRendezvous
	relay   *fakeRelay
	central *Central
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tr:    newFakeTransport(),
		rv:    newFakeRendezvous(),
		relay: &fakeRelay{},
	}
	f.rv.set(address.NewNetworkInfo("bob", bobPrivate, bobPublic))

	c, err := NewCentral(Options{
		UserID:       "alice",
		Transport:    f.tr,
		Rendezvous:   f.rv,
		Relay:        f.relay,
		PollInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	c.RegisterControllerHandler()
	t.Cleanup(c.Close)
	f.central = c
	return f
}

// answer replies to a handshake with the received number plus delta.
func answer(delta int) func(*protocol.Message, address.Endpoint) *protocol.Message {
	return func(msg *protocol.Message, _ address.Endpoint) *protocol.Message {
		p, err := msg.DecodePayload()
		if err != nil {
			return nil
		}
		n, err := p.Int()
		if err != nil {
			return nil
		}
		return fixedAnswer(p.Flag, n+delta)(msg, address.Endpoint{})
	}
}

func fixedAnswer(flag protocol.Flag, value int) func(*protocol.Message, address.Endpoint) *protocol.Message {
	return func(msg *protocol.Message, _ address.Endpoint) *protocol.Message {
		data, err := protocol.EncodePayload(flag, value)
		if err != nil {
			return nil
		}
		return protocol.NewReply("bob", protocol.EventConnect, msg.ID, data)
	}
}

func inbound(t *testing.T, flag protocol.Flag, v int) *protocol.Message {
	t.Helper()
	data, err := protocol.EncodePayload(flag, v)
	require.NoError(t, err)
	msg := protocol.NewMessage("bob", protocol.EventConnect, data)
	msg.Reliable = true
	return msg
}

func decodeAnswer(t *testing.T, msg *protocol.Message) (protocol.Flag, int) {
	t.Helper()
	p, err := msg.DecodePayload()
	require.NoError(t, err)
	n, err := p.Int()
	require.NoError(t, err)
	return p.Flag, n
}

func TestNewCentralRequiresDependencies(t *testing.T) {
	_, err := NewCentral(Options{UserID: "alice"})
	assert.Error(t, err)
}

func TestReachabilityPriority(t *testing.T) {
	relayEndpoint := (&fakeRelay{}).Endpoint()

	tests := []struct {
		name     string
		private  bool
		public   bool
		relay    bool
		want     bool
		selected address.Endpoint
		probes   int
	}{
		{"private wins over everything", true, true, true, true, bobPrivate, 1},
		{"private only", true, false, false, true, bobPrivate, 1},
		{"public when private fails", false, true, true, true, bobPublic, 2},
		{"relay when direct paths fail", false, false, true, true, relayEndpoint, 2},
		{"nothing reachable", false, false, false, false, address.Endpoint{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.tr.reachable[bobPrivate] = tt.private
			f.tr.reachable[bobPublic] = tt.public
			f.relay.accept = tt.relay
			feat := &fakeFeature{}
			require.NoError(t, f.central.RegisterFeature(feat))

			assert.Equal(t, tt.want, f.central.TestConnect("bob"))
			assert.Len(t, f.tr.probes, tt.probes)

			remote, ok := f.central.RemoteEndpoint()
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.selected, remote)
			assert.Equal(t, tt.selected, feat.remoteEndpoint())

			if !tt.private && !tt.public {
				assert.Equal(t, []address.Endpoint{bobPublic}, f.relay.requested)
			} else {
				assert.Empty(t, f.relay.requested)
			}
		})
	}
}

func TestTestConnectUnknownUser(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.central.TestConnect("carol"))
	assert.Empty(t, f.tr.probes)

	f.rv.down = true
	assert.False(t, f.central.TestConnect("bob"))
}

func TestRelayedTrafficTargetsRelay(t *testing.T) {
	f := newFixture(t)
	f.relay.accept = true

	video := feature.NewVideo()
	require.NoError(t, f.central.RegisterFeature(video))
	require.True(t, f.central.TestConnect("bob"))

	require.NoError(t, video.SendFrame([]byte("frame")))
	msgs := f.tr.sentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, f.relay.Endpoint(), msgs[0].to)
	assert.Equal(t, protocol.EventVideo, msgs[0].msg.Event)
}

func TestConnectHandshake(t *testing.T) {
	tests := []struct {
		name    string
		respond func(*protocol.Message, address.Endpoint) *protocol.Message
		want    bool
	}{
		{"peer answers V+1", answer(1), true},
		{"peer rejects with -1", fixedAnswer(protocol.ConnectEstablish, -1), false},
		{"peer echoes V", answer(0), false},
		{"peer answers V+2", answer(2), false},
		{"wrong flag", func(m *protocol.Message, e address.Endpoint) *protocol.Message {
			p, _ := m.DecodePayload()
			n, _ := p.Int()
			return fixedAnswer(protocol.ConnectTerminate, n+1)(m, e)
		}, false},
		{"no reply", func(*protocol.Message, address.Endpoint) *protocol.Message { return nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.tr.reachable[bobPrivate] = true
			f.tr.respond = tt.respond

			assert.Equal(t, tt.want, f.central.Connect("bob"))
			want := StateDisconnected
			if tt.want {
				want = StateConnected
			}
			assert.Equal(t, want, f.central.State())
			assert.Equal(t, "bob", f.central.RemoteUserID())

			msgs := f.tr.sentMessages()
			require.Len(t, msgs, 1)
			assert.Equal(t, bobPrivate, msgs[0].to)
			flag, v := decodeAnswer(t, msgs[0].msg)
			assert.Equal(t, protocol.ConnectEstablish, flag)
			assert.GreaterOrEqual(t, v, 0)
		})
	}
}

func TestConnectRefusedWhileConnected(t *testing.T) {
	f := newFixture(t)
	f.tr.reachable[bobPrivate] = true
	f.tr.respond = answer(1)

	require.True(t, f.central.Connect("bob"))
	assert.False(t, f.central.Connect("bob"))
	assert.Len(t, f.tr.sentMessages(), 1)
}

func TestConnectUnreachable(t *testing.T) {
	f := newFixture(t)
	f.tr.respond = answer(1)
	assert.False(t, f.central.Connect("bob"))
	assert.Empty(t, f.tr.sentMessages())
	assert.Equal(t, StateDisconnected, f.central.State())
}

func TestInboundEstablishAccepted(t *testing.T) {
	f := newFixture(t)
	f.tr.reachable[bobPublic] = true

	var asked string
	f.central.SetEstablishHook(func(id string) bool { asked = id; return true })
	var connected atomic.Int32
	f.central.SetConnectHook(func() { connected.Add(1) })

	msg := inbound(t, protocol.ConnectEstablish, 41)
	f.tr.handler(protocol.EventConnect)(msg, endpoint("198.51.100.1:5000"))

	assert.Equal(t, "bob", asked)
	assert.Equal(t, StateConnected, f.central.State())
	assert.Equal(t, int32(1), connected.Load())

	msgs := f.tr.sentMessages()
	require.Len(t, msgs, 1)
	reply := msgs[0].msg
	assert.Equal(t, protocol.CodeReply, reply.Code)
	assert.Equal(t, msg.ID, reply.RepliedID)
	assert.Equal(t, bobPublic, msgs[0].to, "reply goes to the resolved endpoint")
	flag, v := decodeAnswer(t, reply)
	assert.Equal(t, protocol.ConnectEstablish, flag)
	assert.Equal(t, 42, v)
}

func TestInboundEstablishRejected(t *testing.T) {
	tests := []struct {
		name string
		hook EstablishHook
	}{
		{"hook declines", func(string) bool { return false }},
		{"no hook", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.tr.reachable[bobPrivate] = true
			f.central.SetEstablishHook(tt.hook)
			var connected atomic.Int32
			f.central.SetConnectHook(func() { connected.Add(1) })

			f.tr.handler(protocol.EventConnect)(inbound(t, protocol.ConnectEstablish, 7), bobPrivate)

			assert.Equal(t, StateDisconnected, f.central.State())
			assert.Zero(t, connected.Load())
			msgs := f.tr.sentMessages()
			require.Len(t, msgs, 1)
			_, v := decodeAnswer(t, msgs[0].msg)
			assert.Equal(t, -1, v)
		})
	}
}

func TestInboundEstablishReplyNotDelivered(t *testing.T) {
	f := newFixture(t)
	f.tr.reachable[bobPrivate] = true
	timeout := transport.Timeout()
	f.tr.result = &timeout
	f.central.SetEstablishHook(func(string) bool { return true })

	f.tr.handler(protocol.EventConnect)(inbound(t, protocol.ConnectEstablish, 7), bobPrivate)
	assert.Equal(t, StateDisconnected, f.central.State())
}

func TestInboundEstablishUnreachableSender(t *testing.T) {
	f := newFixture(t)
	f.central.SetEstablishHook(func(string) bool { return true })

	f.tr.handler(protocol.EventConnect)(inbound(t, protocol.ConnectEstablish, 7), bobPrivate)
	assert.Equal(t, StateDisconnected, f.central.State())
	assert.Empty(t, f.tr.sentMessages())
}

func TestInboundEstablishIgnoredWhileConnected(t *testing.T) {
	f := newFixture(t)
	f.tr.reachable[bobPrivate] = true
	f.tr.respond = answer(1)
	require.True(t, f.central.Connect("bob"))

	var asked atomic.Int32
	f.central.SetEstablishHook(func(string) bool { asked.Add(1); return true })
	f.tr.handler(protocol.EventConnect)(inbound(t, protocol.ConnectEstablish, 7), bobPrivate)

	assert.Zero(t, asked.Load())
	assert.Len(t, f.tr.sentMessages(), 1)
}

func TestInboundTerminate(t *testing.T) {
	f := newFixture(t)
	f.tr.reachable[bobPrivate] = true
	f.tr.respond = answer(1)
	require.True(t, f.central.Connect("bob"))

	var terminated atomic.Int32
	f.central.SetTerminateHook(func() { terminated.Add(1) })

	msg := inbound(t, protocol.ConnectTerminate, 99)
	f.tr.handler(protocol.EventConnect)(msg, bobPrivate)

	assert.Equal(t, StateDisconnected, f.central.State())
	assert.Equal(t, int32(1), terminated.Load())

	msgs := f.tr.sentMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, msg.ID, msgs[1].msg.RepliedID)
	flag, v := decodeAnswer(t, msgs[1].msg)
	assert.Equal(t, protocol.ConnectTerminate, flag)
	assert.Equal(t, 100, v)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	f.tr.reachable[bobPrivate] = true
	f.tr.respond = answer(1)
	require.True(t, f.central.Connect("bob"))

	assert.True(t, f.central.Disconnect())
	assert.Equal(t, StateDisconnected, f.central.State())

	// Disconnect has no state guard: a second call still runs the round trip.
	assert.True(t, f.central.Disconnect())
	assert.Equal(t, StateDisconnected, f.central.State())
	assert.Len(t, f.tr.sentMessages(), 3)

	f.tr.respond = fixedAnswer(protocol.ConnectTerminate, -1)
	assert.False(t, f.central.Disconnect())
}

func TestDisconnectWithoutEndpoint(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.central.Disconnect())
	assert.Empty(t, f.tr.sentMessages())
}

func TestUnknownFlagIgnored(t *testing.T) {
	f := newFixture(t)
	f.tr.handler(protocol.EventConnect)(inbound(t, protocol.Flag(42), 1), bobPrivate)
	f.tr.handler(protocol.EventConnect)(&protocol.Message{SenderID: "bob", Payload: []byte("junk")}, bobPrivate)

	assert.Equal(t, StateDisconnected, f.central.State())
	assert.Empty(t, f.tr.sentMessages())
}

func TestRegisterFeature(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.central.RegisterFeature(nil))

	f.tr.reachable[bobPrivate] = true
	require.True(t, f.central.TestConnect("bob"))

	late := &fakeFeature{}
	require.NoError(t, f.central.RegisterFeature(late))
	assert.True(t, late.configured)
	assert.True(t, late.registered)
	assert.Equal(t, bobPrivate, late.remoteEndpoint(), "late features receive the current endpoint")
}

func TestPollRegisteredUsers(t *testing.T) {
	f := newFixture(t)
	carolPublic := endpoint("198.51.100.9:6000")
	f.central.SetRemoteUserIDs([]string{"bob", "carol"})

	var online, offline []string
	onOnline := func(id string) { online = append(online, id) }
	onOffline := func(id string) { offline = append(offline, id) }

	f.central.pollRegisteredUsers(onOnline, onOffline)
	assert.Equal(t, []string{"bob"}, online)
	assert.Empty(t, offline)
	assert.Equal(t, []string{"bob"}, f.central.TrackedUsers())
	assert.True(t, f.tr.keepAliveSet()[bobPublic])

	// Already tracked users are not reported again.
	f.rv.set(address.NewNetworkInfo("carol", endpoint("10.0.0.3:6000"), carolPublic))
	f.central.pollRegisteredUsers(onOnline, onOffline)
	assert.Equal(t, []string{"bob", "carol"}, online)
	assert.Equal(t, []string{"bob", "carol"}, f.central.TrackedUsers())

	f.rv.remove("bob")
	f.central.pollRegisteredUsers(onOnline, onOffline)
	assert.Equal(t, []string{"bob"}, offline)
	assert.False(t, f.tr.keepAliveSet()[bobPublic])
	assert.True(t, f.tr.keepAliveSet()[carolPublic])

	// A failed lookup changes nothing.
	f.rv.down = true
	f.central.pollRegisteredUsers(onOnline, onOffline)
	assert.Equal(t, []string{"carol"}, f.central.TrackedUsers())
}

func TestPollFollowsMovedUser(t *testing.T) {
	f := newFixture(t)
	f.central.SetRemoteUserIDs([]string{"bob"})
	f.central.pollRegisteredUsers(nil, nil)

	moved := endpoint("203.0.113.8:4001")
	f.rv.set(address.NewNetworkInfo("bob", bobPrivate, moved))
	f.central.pollRegisteredUsers(nil, nil)

	set := f.tr.keepAliveSet()
	assert.False(t, set[bobPublic])
	assert.True(t, set[moved])
}

func TestWatchAndClose(t *testing.T) {
	f := newFixture(t)
	f.central.SetRemoteUserIDs([]string{"bob"})

	seen := make(chan string, 4)
	f.central.WatchRegisteredUsers(func(id string) { seen <- id }, nil)
	f.central.WatchRegisteredUsers(func(id string) { seen <- "second watcher" }, nil)

	select {
	case id := <-seen:
		assert.Equal(t, "bob", id)
	case <-time.After(time.Second):
		t.Fatal("online hook not run")
	}

	f.central.Close()
	f.central.Close()
	assert.Equal(t, 1, f.relay.unrelayed)
	assert.Equal(t, 1, f.rv.unregistered)
	assert.Nil(t, f.tr.handler(protocol.EventConnect))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CONNECTED", StateConnected.String())
	assert.Equal(t, "DISCONNECTED", StateDisconnected.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}
