package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrier-systems/harrierwatch/internal/output"
)

var interfacesCmd = &cobra.Command{
	Use:     "interfaces",
	Aliases: []string{"ifaces"},
	Short:   "List the sensor host's network interfaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		ifaces, err := api(cmd).Interfaces(ctx)
		if err != nil {
			return fmt.Errorf("failed to list interfaces: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(ifaces)
		}

		if len(ifaces) == 0 {
			output.Info("No interfaces reported")
			return nil
		}

		table := output.NewTable([]string{"Name", "MTU", "Hardware", "Flags", "Addresses"})
		for _, iface := range ifaces {
			table.AddRow([]string{
				iface.Name,
				fmt.Sprintf("%d", iface.MTU),
				iface.Hardware,
				strings.Join(iface.Flags, ","),
				strings.Join(iface.Addresses, " "),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}
