package protocol

import (
	"crypto/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/limits"
)

func TestMessageIDsAreUnique(t *testing.T) {
	seen := make(map[uint32]struct{})
	for i := 0; i < 1000; i++ {
		msg := NewMessage("alice", EventConnect, nil)
		_, dup := seen[msg.ID]
		require.False(t, dup, "id %d reused", msg.ID)
		seen[msg.ID] = struct{}{}
	}
}

func TestAckEchoesEventAndID(t *testing.T) {
	original := NewMessage("alice", EventRendezvous, []byte("x"))
	original.Reliable = true

	ack := NewAck("server", original)
	assert.Equal(t, CodeAck, ack.Code)
	assert.Equal(t, EventRendezvous, ack.Event)
	assert.Equal(t, original.ID, ack.RepliedID)
	assert.NotEqual(t, original.ID, ack.ID)
	assert.False(t, ack.Reliable)
}

func TestMessageEncodeDecode(t *testing.T) {
	msg := NewReply("bob", EventConnect, 77, []byte("payload"))
	msg.Reliable = true

	data, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestPingHasNoEvent(t *testing.T) {
	ping := NewPing("alice")
	assert.Equal(t, CodePing, ping.Code)
	assert.Equal(t, EventNone, ping.Event)
	assert.Empty(t, ping.Payload)
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	_, err := DecodeMessage(nil)
	assert.ErrorIs(t, err, limits.ErrPacketEmpty)

	_, err = DecodeMessage([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Error(t, err)

	_, err = DecodeMessage(make([]byte, limits.MaxPacketSize+1))
	assert.ErrorIs(t, err, limits.ErrPacketTooLarge)
}

func TestMessageEncodeRejectsOversize(t *testing.T) {
	// Random bytes do not compress, so the envelope exceeds one datagram.
	big := make([]byte, limits.MaxPacketSize*2)
	_, err := rand.Read(big)
	require.NoError(t, err)
	msg := NewMessage("alice", EventVideo, big)
	_, err = msg.Encode()
	assert.ErrorIs(t, err, limits.ErrPacketTooLarge)
}

func TestPayloadCarriesAddressTypes(t *testing.T) {
	ep := address.NewEndpoint(netip.MustParseAddr("203.0.113.7"), 4000)
	infos := []address.NetworkInfo{
		address.NewNetworkInfo("bob", address.NewEndpoint(netip.MustParseAddr("10.0.0.2"), 9000), ep),
		address.OfflineInfo("carol"),
	}

	tests := []struct {
		name string
		flag Flag
		data any
	}{
		{"int", ConnectEstablish, 1234},
		{"bool", RelayRequest, true},
		{"endpoint", RendezvousRegister, ep},
		{"infos", RendezvousGetInfo, infos},
		{"nil", ConnectTerminate, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePayload(tt.flag, tt.data)
			require.NoError(t, err)

			p, err := DecodePayload(data)
			require.NoError(t, err)
			assert.Equal(t, tt.flag, p.Flag)
			assert.Equal(t, tt.data, p.Data)
		})
	}
}

func TestPayloadAccessors(t *testing.T) {
	p := Payload{Flag: ConnectEstablish, Data: 5}
	n, err := p.Int()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = p.Bool()
	assert.Error(t, err)

	b, err := Payload{Flag: RelayRequest, Data: true}.Bool()
	require.NoError(t, err)
	assert.True(t, b)
}

func TestCodeAndEventStrings(t *testing.T) {
	assert.Equal(t, "ACK", CodeAck.String())
	assert.Equal(t, "Code(9)", Code(9).String())
	assert.Equal(t, "TOUCH", EventTouch.String())
	assert.Equal(t, "Event(42)", Event(42).String())
}
