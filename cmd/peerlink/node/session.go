package node

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink"
	"github.com/opd-ai/peerlink/controller"
	"github.com/opd-ai/peerlink/feature"
	"github.com/opd-ai/peerlink/interfaces"
)

var errNotConnected = errors.New("not connected")

// session is the shell's view of one running node and its features.
type session struct {
	node   *peerlink.Node
	touch  *feature.Touch
	video  *feature.Video
	audio  *feature.Audio
	accept atomic.Bool
	out    io.Writer
}

func newSession(n *peerlink.Node, accept bool, out io.Writer) (*session, error) {
	s := &session{
		node:  n,
		touch: feature.NewTouch(),
		video: feature.NewVideo(),
		audio: feature.NewAudio(),
		out:   out,
	}
	s.accept.Store(accept)

	for _, f := range []interfaces.IFeatureController{s.touch, s.video, s.audio} {
		if err := n.RegisterFeature(f); err != nil {
			return nil, err
		}
	}

	central := n.Central()
	central.SetEstablishHook(func(remoteUserID string) bool {
		ok := s.accept.Load()
		s.printf("inbound connection from %s: accepted=%v\n", remoteUserID, ok)
		return ok
	})
	central.SetConnectHook(func() { s.printf("connected to %s\n", central.RemoteUserID()) })
	central.SetTerminateHook(func() { s.printf("%s ended the session\n", central.RemoteUserID()) })

	s.touch.OnAdd(func(path []feature.Point) { s.printf("touch path: %s\n", formatPath(path)) })
	s.touch.OnRemove(func() { s.printf("touch cleared\n") })
	s.video.OnReceive(func(frame []byte) { s.printf("video frame: %d bytes\n", len(frame)) })
	s.audio.OnReceive(func(frame feature.AudioFrame) {
		s.printf("audio frame: %d samples at %d Hz\n", len(frame.PCM), frame.SampleRate)
	})
	return s, nil
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) connect(remoteUserID string) error {
	if !s.node.Connect(remoteUserID) {
		return fmt.Errorf("connection to %s failed", remoteUserID)
	}
	return nil
}

func (s *session) disconnect() error {
	if !s.node.Disconnect() {
		return errors.New("disconnect not confirmed")
	}
	return nil
}

func (s *session) status() string {
	central := s.node.Central()
	var b strings.Builder
	fmt.Fprintf(&b, "user:    %s\n", s.node.UserID())
	fmt.Fprintf(&b, "private: %s\n", s.node.PrivateEndpoint())
	fmt.Fprintf(&b, "state:   %s\n", central.State())
	fmt.Fprintf(&b, "accept:  %v\n", s.accept.Load())
	if remote, ok := central.RemoteEndpoint(); ok {
		fmt.Fprintf(&b, "remote:  %s at %s\n", central.RemoteUserID(), remote)
	}
	if users := central.TrackedUsers(); len(users) > 0 {
		fmt.Fprintf(&b, "online:  %s\n", strings.Join(users, ", "))
	}
	return b.String()
}

func (s *session) setAccept(arg string) error {
	switch strings.ToLower(arg) {
	case "on", "true", "yes":
		s.accept.Store(true)
	case "off", "false", "no":
		s.accept.Store(false)
	default:
		return fmt.Errorf("expected on or off, got %q", arg)
	}
	return nil
}

func (s *session) watch(ids []string) {
	central := s.node.Central()
	central.SetRemoteUserIDs(ids)
	central.WatchRegisteredUsers(
		func(id string) { s.printf("%s is online\n", id) },
		func(id string) { s.printf("%s went offline\n", id) },
	)
}

func (s *session) sendPath(args []string) error {
	path, err := parsePath(args)
	if err != nil {
		return err
	}
	s.touch.StartPath(path[0].X, path[0].Y)
	for _, p := range path[1:] {
		s.touch.ExtendPath(p.X, p.Y)
	}
	if result := s.touch.EndPath(); !result.IsReceived() {
		return fmt.Errorf("touch path not delivered: %s", result)
	}
	return nil
}

func (s *session) clearPaths() error {
	if result := s.touch.Clear(); !result.IsReceived() {
		return fmt.Errorf("clear not delivered: %s", result)
	}
	return nil
}

func (s *session) sendVideo(size int) error {
	if s.node.State() != controller.StateConnected {
		return errNotConnected
	}
	return s.video.SendFrame(make([]byte, size))
}

func setLogLevel(arg string) error {
	level, err := logrus.ParseLevel(arg)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}

func parsePath(args []string) ([]feature.Point, error) {
	if len(args) == 0 {
		return nil, errors.New("expected at least one x,y point")
	}
	path := make([]feature.Point, 0, len(args))
	for _, arg := range args {
		p, err := feature.ParsePoint(arg)
		if err != nil {
			return nil, err
		}
		path = append(path, p)
	}
	return path, nil
}

func formatPath(path []feature.Point) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}
