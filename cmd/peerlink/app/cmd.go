package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/opd-ai/peerlink/cmd/peerlink/node"
	"github.com/opd-ai/peerlink/cmd/peerlink/serve"
)

// Instance builds the peerlink command line application.
func Instance() *cli.App {
	loglevel := "info"
	return &cli.App{
		Name:  "peerlink",
		Usage: "Peer-to-peer sessions over UDP with rendezvous and relay fallback",
		Commands: []*cli.Command{
			node.Cmd(),
			serve.Cmd(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Verbosity of log, valid values are: trace, debug, info, warn, error",
				EnvVars:     []string{"PEERLINK_LOG_LEVEL"},
				Destination: &loglevel,
				Value:       loglevel,
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := logrus.ParseLevel(loglevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", loglevel, err)
			}
			logrus.SetOutput(ctx.App.ErrWriter)
			logrus.SetLevel(level)
			return nil
		},
	}
}

// Run executes the application with args.
func Run(ctx context.Context, args []string) error {
	return Instance().RunContext(ctx, args)
}
