package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func getCmd(flags *globalFlags) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "get <route>",
		Short: "GET a route on the service's HTTP API",
		Long: `Issue a GET against the service's HTTP API. The base URL comes from the
config file's http_base_url, or is derived from the streaming URL by
swapping the scheme.

Examples:
  skeinctl -u wss://example.com/stream get /health
  skeinctl -c skein.yaml get /orders -p status=open -p limit=10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(flags, args[0], params)
		},
	}

	cmd.Flags().StringSliceVarP(&params, "param", "p", nil, "Query parameter, key=value (repeatable)")

	return cmd
}

func runGet(flags *globalFlags, route string, params []string) error {
	client, err := flags.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	api := client.HTTP()
	if api == nil {
		return fmt.Errorf("no HTTP base URL configured or derivable")
	}

	values := url.Values{}

	for _, p := range params {
		key, value, ok := splitPair(p, '=')
		if !ok {
			return fmt.Errorf("malformed param %q, want key=value", p)
		}

		values.Add(key, value)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	resp, err := api.Get(ctx, route, values)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", resp.Data)

	return nil
}
