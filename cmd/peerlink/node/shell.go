package node

import (
	"strconv"

	"github.com/abiosoft/ishell/v2"
)

func newShell(s *session) *ishell.Shell {
	shell := ishell.New()
	shell.SetHomeHistoryPath(".peerlink_history")
	shell.Println("peerlink interactive shell, user", s.node.UserID())

	shell.AddCmd(&ishell.Cmd{
		Name: "connect",
		Help: "connect <user-id>: start a session with a registered user",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: connect <user-id>")
				return
			}
			if err := s.connect(c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			c.Println("connected")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "disconnect",
		Help: "end the current session",
		Func: func(c *ishell.Context) {
			if err := s.disconnect(); err != nil {
				c.Err(err)
				return
			}
			c.Println("disconnected")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show node and session state",
		Func: func(c *ishell.Context) {
			c.Print(s.status())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "accept",
		Help: "accept on|off: answer inbound connections",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("accept:", s.accept.Load())
				return
			}
			if err := s.setAccept(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "watch",
		Help: "watch <user-id>...: report when users come online or go offline",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Println("usage: watch <user-id>...")
				return
			}
			s.watch(c.Args)
		},
	})

	touchCmd := &ishell.Cmd{
		Name: "touch",
		Help: "touch <x,y>...: send a drawing path",
		Func: func(c *ishell.Context) {
			if err := s.sendPath(c.Args); err != nil {
				c.Err(err)
			}
		},
	}
	touchCmd.AddCmd(&ishell.Cmd{
		Name: "clear",
		Help: "ask the peer to clear its paths",
		Func: func(c *ishell.Context) {
			if err := s.clearPaths(); err != nil {
				c.Err(err)
			}
		},
	})
	shell.AddCmd(touchCmd)

	videoCmd := &ishell.Cmd{
		Name: "video",
		Help: "video <bytes>: send a synthetic frame",
		Func: func(c *ishell.Context) {
			size := 1024
			if len(c.Args) == 1 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				size = n
			}
			if err := s.sendVideo(size); err != nil {
				c.Err(err)
			}
		},
	}
	videoCmd.AddCmd(&ishell.Cmd{
		Name: "pause",
		Help: "toggle sending of video frames",
		Func: func(c *ishell.Context) {
			c.Println("video paused:", s.video.TogglePause())
		},
	})
	shell.AddCmd(videoCmd)

	shell.AddCmd(&ishell.Cmd{
		Name: "log",
		Help: "log <level>: set the log level",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: log <trace|debug|info|warn|error>")
				return
			}
			if err := setLogLevel(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	})

	return shell
}
