package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func publishCmd(flags *globalFlags) *cobra.Command {
	var broadcast bool

	cmd := &cobra.Command{
		Use:   "publish <channel> <payload-json>",
		Short: "Publish a fire-and-forget message to a channel",
		Long: `Publish a JSON payload to a channel. With --broadcast the message goes
to every other subscriber of the channel instead of the channel's owner.

Examples:
  skeinctl -u wss://example.com/stream publish alerts '{"level":"info"}'
  skeinctl -c skein.yaml publish lobby '{"text":"hi"}' --broadcast`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(flags, args[0], args[1], broadcast)
		},
	}

	cmd.Flags().BoolVarP(&broadcast, "broadcast", "b", false, "Send to all other subscribers")

	return cmd
}

func runPublish(flags *globalFlags, channel, payload string, broadcast bool) error {
	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("payload is not valid JSON")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := flags.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	data := json.RawMessage(payload)

	if broadcast {
		return client.Broadcast(channel, data)
	}

	return client.Publish(channel, data)
}
