package node

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/opd-ai/peerlink"
)

// Cmd returns the node subcommand.
func Cmd() *cli.Command {
	userID := ""
	listenAddr := ""
	rendezvous := "127.0.0.1:3478"
	relay := "127.0.0.1:3479"
	accept := false
	var watch cli.StringSlice
	return &cli.Command{
		Name:  "node",
		Usage: "Starts a peer and an interactive shell to drive it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user-id",
				Aliases:     []string{"u"},
				Usage:       "User id announced to the rendezvous server (default: random UUID)",
				EnvVars:     []string{"PEERLINK_USER_ID"},
				Destination: &userID,
			},
			&cli.StringFlag{
				Name:        "listen-addr",
				Aliases:     []string{"l"},
				Usage:       "Local UDP address",
				EnvVars:     []string{"PEERLINK_LISTEN_ADDR"},
				Destination: &listenAddr,
			},
			&cli.StringFlag{
				Name:        "rendezvous",
				Usage:       "Rendezvous server address",
				EnvVars:     []string{"PEERLINK_RENDEZVOUS"},
				Destination: &rendezvous,
				Value:       rendezvous,
			},
			&cli.StringFlag{
				Name:        "relay",
				Usage:       "Relay server address",
				EnvVars:     []string{"PEERLINK_RELAY"},
				Destination: &relay,
				Value:       relay,
			},
			&cli.BoolFlag{
				Name:        "accept",
				Usage:       "Accept inbound connections without asking",
				EnvVars:     []string{"PEERLINK_ACCEPT"},
				Destination: &accept,
			},
			&cli.StringSliceFlag{
				Name:        "watch",
				Usage:       "User ids to watch for presence",
				EnvVars:     []string{"PEERLINK_WATCH"},
				Destination: &watch,
			},
		},
		Action: func(ctx *cli.Context) error {
			opts := peerlink.NewOptions()
			if userID != "" {
				opts.UserID = userID
			}
			opts.ListenAddr = listenAddr
			opts.RendezvousServer = rendezvous
			opts.RelayServer = relay

			n, err := peerlink.New(opts)
			if err != nil {
				return fmt.Errorf("start node: %w", err)
			}
			defer n.Close()

			s, err := newSession(n, accept, os.Stdout)
			if err != nil {
				return err
			}
			if ids := watch.Value(); len(ids) > 0 {
				s.watch(ids)
			}
			newShell(s).Run()
			return nil
		},
	}
}
