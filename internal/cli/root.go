// Package cli implements the hwatch command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrier-systems/harrierwatch/internal/client"
)

const defaultServer = "http://localhost:8175"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hwatch",
	Short: "HarrierWatch CLI",
	Long: `hwatch is the command-line interface for a running harrierd.

Inspect monitoring sessions, query reconciled event logs and baselines,
follow the live event stream, and drive session control from your
terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	server := defaultServer
	if v := os.Getenv("HARRIER_SERVER"); v != "" {
		server = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.hwatch/config.yaml)")
	rootCmd.PersistentFlags().String("server", server, "harrierd base URL")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "request timeout")
}

// initConfig applies persisted config values beneath flag and
// environment overrides.
func initConfig() {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load config: %v\n", err)
		return
	}
	flags := rootCmd.PersistentFlags()
	if cfg.Server != "" && !flags.Changed("server") && os.Getenv("HARRIER_SERVER") == "" {
		flags.Set("server", cfg.Server)
	}
	if cfg.Output != "" && !flags.Changed("output") {
		flags.Set("output", cfg.Output)
	}
}

// api builds a client from the command's persistent flags.
func api(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	return client.New(server)
}

// requestContext derives a context bounded by the --timeout flag.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

func jsonOutput(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}
