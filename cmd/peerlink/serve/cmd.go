package serve

import (
	"fmt"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/opd-ai/peerlink/server"
)

// DefaultDatabase is the registry file used when --db is not given.
const DefaultDatabase = "~/.peerlink/registry.db"

// Cmd returns the server subcommand.
func Cmd() *cli.Command {
	rendezvousAddr := ":3478"
	relayAddr := ":3479"
	db := DefaultDatabase
	memory := false
	return &cli.Command{
		Name:  "server",
		Usage: "Runs a rendezvous server and a relay server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "rendezvous-addr",
				Usage:       "UDP address of the rendezvous server",
				EnvVars:     []string{"PEERLINK_RENDEZVOUS_ADDR"},
				Destination: &rendezvousAddr,
				Value:       rendezvousAddr,
			},
			&cli.StringFlag{
				Name:        "relay-addr",
				Usage:       "UDP address of the relay server",
				EnvVars:     []string{"PEERLINK_RELAY_ADDR"},
				Destination: &relayAddr,
				Value:       relayAddr,
			},
			&cli.StringFlag{
				Name:        "db",
				Usage:       "SQLite file holding registered users",
				EnvVars:     []string{"PEERLINK_DB"},
				Destination: &db,
				Value:       db,
			},
			&cli.BoolFlag{
				Name:        "memory",
				Usage:       "Keep registrations in memory only",
				EnvVars:     []string{"PEERLINK_MEMORY"},
				Destination: &memory,
			},
		},
		Action: func(ctx *cli.Context) error {
			registry, err := openRegistry(db, memory)
			if err != nil {
				return err
			}

			rv, err := server.NewRendezvous(rendezvousAddr, registry)
			if err != nil {
				_ = registry.Close()
				return fmt.Errorf("start rendezvous server: %w", err)
			}
			defer rv.Close()

			relay, err := server.NewRelay(relayAddr)
			if err != nil {
				return fmt.Errorf("start relay server: %w", err)
			}
			defer relay.Close()

			logrus.WithFields(logrus.Fields{
				"function":   "server",
				"rendezvous": rv.Endpoint().String(),
				"relay":      relay.Endpoint().String(),
			}).Info("Servers running")

			<-ctx.Context.Done()
			return nil
		},
	}
}

func openRegistry(db string, memory bool) (server.Registry, error) {
	if memory {
		return server.NewMemoryRegistry(), nil
	}
	path, err := homedir.Expand(db)
	if err != nil {
		return nil, fmt.Errorf("expand database path %q: %w", db, err)
	}
	registry, err := server.OpenSQLiteRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("open registry %q: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "openRegistry",
		"path":     path,
	}).Info("Opened SQLite registry")
	return registry, nil
}
