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

func sendCmd(flags *globalFlags) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "send <action> [payload-json]",
		Short: "Fire a correlated action and print its response",
		Long: `Send an action envelope and wait for the correlated response. The
payload is a JSON document; omit it for actions without one.

Examples:
  skeinctl -u wss://example.com/stream send ping
  skeinctl -c skein.yaml send orders.create '{"symbol":"ABC","qty":5}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(flags, args, pretty)
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the response JSON")

	return cmd
}

func runSend(flags *globalFlags, args []string, pretty bool) error {
	action := args[0]

	var payload json.RawMessage

	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("payload is not valid JSON")
		}

		payload = json.RawMessage(args[1])
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

	data, err := client.SendAction(ctx, action, payload, flags.timeout)
	if err != nil {
		return err
	}

	if pretty {
		var buf map[string]any
		if err := json.Unmarshal(data, &buf); err == nil {
			if indented, err := json.MarshalIndent(buf, "", "  "); err == nil {
				fmt.Printf("%s\n", indented)

				return nil
			}
		}
	}

	fmt.Printf("%s\n", data)

	return nil
}
