package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func listenCmd(flags *globalFlags) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "listen <channel> [channel...]",
		Short: "Subscribe to channels and print their messages",
		Long: `Subscribe to one or more channels and print every message until
interrupted. Subscriptions survive reconnects, so a flaky service
keeps streaming after recovery.

Examples:
  skeinctl -u wss://example.com/stream listen alerts
  skeinctl -c skein.yaml listen orders trades --raw`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(flags, args, raw)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print payloads without the channel prefix")

	return cmd
}

func runListen(flags *globalFlags, channels []string, raw bool) error {
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

	// Interleaved printing from handlers on the read goroutine.
	var outMu sync.Mutex

	print := func(channel string, data json.RawMessage) {
		outMu.Lock()
		defer outMu.Unlock()

		if raw {
			fmt.Printf("%s\n", data)

			return
		}

		fmt.Printf("%s [%s] %s\n", time.Now().Format(time.TimeOnly), channel, data)
	}

	for _, channel := range channels {
		if err := client.Subscribe(channel, print); err != nil {
			return fmt.Errorf("subscribe %q: %w", channel, err)
		}

		fmt.Fprintf(os.Stderr, "listening on %q\n", channel)
	}

	<-ctx.Done()

	return nil
}
