package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrier-systems/harrierwatch/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or update the persisted CLI configuration",
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		format, _ := cmd.Flags().GetString("output")

		if jsonOutput(cmd) {
			return output.JSON(map[string]string{
				"server": server,
				"output": format,
			})
		}
		table := output.NewTable([]string{"KEY", "VALUE"})
		table.AddRow([]string{"server", server})
		table.AddRow([]string{"output", format})
		table.Render()
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set key=value [key=value...]",
	Short: "Persist configuration values",
	Long: `Persist configuration values to the CLI config file.

Supported keys:
  server  harrierd base URL
  output  default output format (table or json)`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("invalid assignment %q, want key=value", arg)
			}
			switch key {
			case "server":
				cfg.Server = value
			case "output":
				if value != "table" && value != "json" {
					return fmt.Errorf("unknown output format %q", value)
				}
				cfg.Output = value
			default:
				return fmt.Errorf("unknown config key %q", key)
			}
		}
		if err := cfg.save(); err != nil {
			return err
		}
		output.Success("Configuration saved")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
