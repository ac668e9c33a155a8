package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"oebrowse/errors"
	"oebrowse/logging"
	"oebrowse/messaging"
	"oebrowse/messaging/natsjetstream"
	"oebrowse/server"
	"oebrowse/stub"
	"oebrowse/transport"
)

func newServeCmd(p *cliParams) *cobra.Command {
	var (
		addr string
		dsn  string
		seed bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo object server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := transport.LookupCodec(p.codec)
			if err != nil {
				return err
			}
			srv := stub.NewServer(stub.Config{
				Addr:      addr,
				Codec:     codec,
				DSN:       dsn,
				Databases: []string{p.database},
				Users:     []stub.User{{ID: 1, Login: p.user, Password: p.password, Lang: "en_US", TZ: "UTC"}},
				Seed:      seed,
			})
			engine := server.NewEngine(srv,
				server.WithLogger(logging.Component("serve")),
				server.WithAfterStart(func(ctx context.Context) error {
					fmt.Fprintf(cmd.OutOrStdout(), "listening on %s (%s)\n", srv.Addr(), codec.Name())
					return nil
				}))
			return engine.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "listen", envString("OEBROWSE_LISTEN", "127.0.0.1:8070"), "listen address")
	cmd.Flags().StringVar(&dsn, "dsn", envString("OEBROWSE_DSN", ""), "sqlite data source (default in-memory)")
	cmd.Flags().BoolVar(&seed, "seed", true, "load the demo models and records")
	return cmd
}

func newWatchCmd(p *cliParams) *cobra.Command {
	var eventType string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print record change events published to NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.natsURL == "" {
				return errors.Precondition("watch requires --nats or OEBROWSE_NATS")
			}
			ctx := cmd.Context()
			events := natsjetstream.NewTransport(natsjetstream.Config{URL: p.natsURL})
			err := events.Subscribe(eventType, messaging.NewHandler("watch", func(_ context.Context, msg messaging.IMessage) error {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id":        msg.GetID(),
					"type":      msg.GetType(),
					"timestamp": msg.GetTimestamp().Format(time.RFC3339),
					"payload":   msg.GetPayload(),
				})
			}))
			if err != nil {
				return err
			}
			if err := events.Start(ctx); err != nil {
				return err
			}
			defer events.Close()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&eventType, "type", messaging.Wildcard, "event type to follow")
	return cmd
}
