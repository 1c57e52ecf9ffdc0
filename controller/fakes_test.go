package controller

import (
	"sync"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/interfaces"
	"github.com/opd-ai/peerlink/protocol"
	"github.com/opd-ai/peerlink/transport"
)

type sent struct {
	msg *protocol.Message
	to  address.Endpoint
}

// fakeTransport answers probes from a table and reliable sends from a
// programmable responder.
type fakeTransport struct {
	mu        sync.Mutex
	reachable map[address.Endpoint]bool
	probes    []address.Endpoint
	sent      []sent
	handlers  map[protocol.Event]transport.Handler
	keepAlive map[address.Endpoint]bool
	respond   func(msg *protocol.Message, to address.Endpoint) *protocol.Message
	result    *transport.Result
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		reachable: make(map[address.Endpoint]bool),
		handlers:  make(map[protocol.Event]transport.Handler),
		keepAlive: make(map[address.Endpoint]bool),
	}
}

var _ interfaces.IReliableTransport = (*fakeTransport)(nil)

func (f *fakeTransport) UserID() string { return "local" }

func (f *fakeTransport) LocalEndpoint() address.Endpoint { return endpoint("127.0.0.1:1000") }

func (f *fakeTransport) SendMessage(msg *protocol.Message, to address.Endpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{msg, to})
}

func (f *fakeTransport) SendReliableMessage(msg *protocol.Message, to address.Endpoint, cfg *transport.ReliableConfig, handler transport.ReplyHandler) transport.Result {
	f.mu.Lock()
	f.sent = append(f.sent, sent{msg, to})
	respond, fixed := f.respond, f.result
	f.mu.Unlock()

	if fixed != nil {
		return *fixed
	}
	if handler == nil {
		return transport.Received()
	}
	if respond == nil {
		return transport.Timeout()
	}
	reply := respond(msg, to)
	if reply == nil {
		return transport.Timeout()
	}
	v, err := handler(reply)
	if err != nil {
		return transport.ExtraError(err)
	}
	return transport.Replied(v)
}

func (f *fakeTransport) RegisterHandler(event protocol.Event, handler transport.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = handler
}

func (f *fakeTransport) UnregisterHandler(event protocol.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *fakeTransport) handler(event protocol.Event) transport.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[event]
}

func (f *fakeTransport) TestConnect(to address.Endpoint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, to)
	return f.reachable[to]
}

func (f *fakeTransport) AddKeepAliveEndpoint(ep address.Endpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepAlive[ep] = true
}

func (f *fakeTransport) RemoveKeepAliveEndpoint(ep address.Endpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keepAlive, ep)
}

func (f *fakeTransport) sentMessages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakeTransport) keepAliveSet() map[address.Endpoint]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[address.Endpoint]bool, len(f.keepAlive))
	for k, v := range f.keepAlive {
		out[k] = v
	}
	return out
}

type fakeRendezvous struct {
	mu           sync.Mutex
	infos        map[string]address.NetworkInfo
	down         bool
	unregistered int
}

func newFakeRendezvous() *fakeRendezvous {
	return &fakeRendezvous{infos: make(map[string]address.NetworkInfo)}
}

func (f *fakeRendezvous) set(info address.NetworkInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos[info.UserID] = info
}

func (f *fakeRendezvous) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.infos, id)
}

func (f *fakeRendezvous) Register(address.Endpoint) bool { return true }

func (f *fakeRendezvous) Unregister() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregistered++
	return true
}

func (f *fakeRendezvous) GetInfo(id string) (address.NetworkInfo, bool) {
	infos, ok := f.GetInfos([]string{id})
	if !ok {
		return address.NetworkInfo{}, false
	}
	return infos[0], true
}

func (f *fakeRendezvous) GetInfos(ids []string) ([]address.NetworkInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, false
	}
	out := make([]address.NetworkInfo, 0, len(ids))
	for _, id := range ids {
		info, ok := f.infos[id]
		if !ok {
			info = address.OfflineInfo(id)
		}
		out = append(out, info)
	}
	return out, true
}

func (f *fakeRendezvous) Endpoint() address.Endpoint { return endpoint("192.0.2.1:3478") }

type fakeRelay struct {
	mu        sync.Mutex
	accept    bool
	requested []address.Endpoint
	unrelayed int
}

func (f *fakeRelay) Relay(remote address.Endpoint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, remote)
	return f.accept
}

func (f *fakeRelay) Unrelay() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unrelayed++
	return true
}

func (f *fakeRelay) Endpoint() address.Endpoint { return endpoint("192.0.2.1:3479") }

type fakeFeature struct {
	mu         sync.Mutex
	configured bool
	registered bool
	remote     address.Endpoint
}

func (f *fakeFeature) Event() protocol.Event { return protocol.EventTouch }

func (f *fakeFeature) Configure(string, interfaces.IReliableTransport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = true
}

func (f *fakeFeature) SetRemoteEndpoint(ep address.Endpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote = ep
}

func (f *fakeFeature) RegisterControllerHandler() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = true
}

func (f *fakeFeature) remoteEndpoint() address.Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote
}
