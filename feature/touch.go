package feature

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/protocol"
	"github.com/opd-ai/peerlink/transport"
)

// Touch flags (protocol.EventTouch).
const (
	TouchConfig protocol.Flag = iota + 1
	TouchAdd
	TouchRemove
)

func init() {
	protocol.RegisterType([]Point{})
}

// Point is one sample of a touch path.
type Point struct {
	X, Y float64
}

// String formats the point as "x,y".
func (p Point) String() string {
	return strconv.FormatFloat(p.X, 'g', -1, 64) + "," + strconv.FormatFloat(p.Y, 'g', -1, 64)
}

// ParsePoint parses the "x,y" form produced by Point.String.
func ParsePoint(s string) (Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("invalid point %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return Point{X: x, Y: y}, nil
}

// Touch exchanges drawing paths with the remote peer.
type Touch struct {
	Base

	hookMu      sync.Mutex
	current     []Point
	configHooks []func(config map[string]string)
	addHooks    []func(path []Point)
	removeHooks []func()
}

// NewTouch creates an unconfigured touch controller.
func NewTouch() *Touch {
	return &Touch{Base: Base{event: protocol.EventTouch}}
}

// OnConfig adds a hook run when the peer sends a path configuration.
func (t *Touch) OnConfig(hook func(config map[string]string)) {
	t.hookMu.Lock()
	defer t.hookMu.Unlock()
	t.configHooks = append(t.configHooks, hook)
}

// OnAdd adds a hook run when the peer completes a path.
func (t *Touch) OnAdd(hook func(path []Point)) {
	t.hookMu.Lock()
	defer t.hookMu.Unlock()
	t.addHooks = append(t.addHooks, hook)
}

// OnRemove adds a hook run when the peer clears its paths.
func (t *Touch) OnRemove(hook func()) {
	t.hookMu.Lock()
	defer t.hookMu.Unlock()
	t.removeHooks = append(t.removeHooks, hook)
}

// SendConfig sends the configuration applied to the next paths.
func (t *Touch) SendConfig(config map[string]string) transport.Result {
	return t.send(TouchConfig, config)
}

// StartPath begins a new path at (x, y), discarding any unfinished one.
func (t *Touch) StartPath(x, y float64) {
	t.hookMu.Lock()
	defer t.hookMu.Unlock()
	t.current = []Point{{X: x, Y: y}}
}

// ExtendPath appends (x, y) to the current path, starting one if needed.
func (t *Touch) ExtendPath(x, y float64) {
	t.hookMu.Lock()
	defer t.hookMu.Unlock()
	t.current = append(t.current, Point{X: x, Y: y})
}

// CurrentPath returns a copy of the unfinished path.
func (t *Touch) CurrentPath() []Point {
	t.hookMu.Lock()
	defer t.hookMu.Unlock()
	return append([]Point(nil), t.current...)
}

// EndPath sends the current path and resets it.
func (t *Touch) EndPath() transport.Result {
	t.hookMu.Lock()
	path := t.current
	t.current = nil
	t.hookMu.Unlock()

	if len(path) == 0 {
		return transport.ExtraError(fmt.Errorf("no path started"))
	}
	return t.send(TouchAdd, path)
}

// Clear asks the peer to remove its paths.
func (t *Touch) Clear() transport.Result {
	return t.send(TouchRemove, nil)
}

func (t *Touch) send(flag protocol.Flag, data any) transport.Result {
	payload, err := protocol.EncodePayload(flag, data)
	if err != nil {
		return transport.ExtraError(err)
	}
	return t.SendReliableMessage(payload, nil)
}

// RegisterControllerHandler installs the inbound touch handler.
func (t *Touch) RegisterControllerHandler() {
	if err := t.RegisterHandler(t.handle); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "RegisterControllerHandler",
			"event":    t.Event().String(),
			"error":    err.Error(),
		}).Warn("Touch controller not configured")
	}
}

func (t *Touch) handle(msg *protocol.Message, from address.Endpoint) {
	p, err := msg.DecodePayload()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"from":     from.String(),
			"error":    err.Error(),
		}).Warn("Dropping malformed touch message")
		return
	}

	t.hookMu.Lock()
	configHooks := append([]func(map[string]string){}, t.configHooks...)
	addHooks := append([]func([]Point){}, t.addHooks...)
	removeHooks := append([]func(){}, t.removeHooks...)
	t.hookMu.Unlock()

	switch p.Flag {
	case TouchConfig:
		config, _ := p.Data.(map[string]string)
		for _, hook := range configHooks {
			hook(config)
		}
	case TouchAdd:
		path, _ := p.Data.([]Point)
		for _, hook := range addHooks {
			hook(path)
		}
	case TouchRemove:
		for _, hook := range removeHooks {
			hook()
		}
	default:
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"from":     from.String(),
			"flag":     p.Flag,
		}).Warn("Unknown touch flag")
	}
}
