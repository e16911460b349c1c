// Command skeinctl is a debugging CLI for skein services: it can tail
// channels, fire actions, publish messages, and hit the HTTP API, using the
// same client the SDK ships.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	skein "github.com/skeinhq/skein-go"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	url        string
	headers    []string
	timeout    time.Duration
	verbose    bool
}

func main() {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "skeinctl",
		Short: "Debugging CLI for skein services",
		Long: `skeinctl talks to a skein service with the same client the SDK ships:
correlated actions and publish/subscribe channels over one WebSocket,
plus the service's HTTP API.

Endpoint and credentials come from --url/--header or a YAML config file:

  skeinctl --url wss://example.com/stream listen alerts
  skeinctl --config skein.yaml send ping`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	pf.StringVarP(&flags.url, "url", "u", "", "Streaming endpoint (ws:// or wss://)")
	pf.StringSliceVarP(&flags.headers, "header", "H", nil, "Extra header, name=value (repeatable)")
	pf.DurationVarP(&flags.timeout, "timeout", "t", 30*time.Second, "Per-operation timeout")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(
		listenCmd(flags),
		sendCmd(flags),
		publishCmd(flags),
		getCmd(flags),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// newClient builds a client from the global flags, config file first and
// flags on top.
func (f *globalFlags) newClient() (skein.Client, error) {
	opts := []skein.Option{}

	if f.verbose {
		opts = append(opts, skein.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}

	if f.url != "" {
		opts = append(opts, skein.WithURL(f.url))
	}

	for _, h := range f.headers {
		name, value, ok := splitPair(h, '=')
		if !ok {
			return nil, fmt.Errorf("malformed header %q, want name=value", h)
		}

		opts = append(opts, skein.WithHeader(name, value))
	}

	if f.configPath != "" {
		return skein.NewFromFile(f.configPath, opts...)
	}

	return skein.New(opts...)
}

// splitPair splits s on the first occurrence of sep.
func splitPair(s string, sep byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}

	return s, "", false
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("skeinctl %s (%s)\n", version, commit)
		},
	}
}
