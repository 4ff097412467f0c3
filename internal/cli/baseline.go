package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/harrier-systems/harrierwatch/internal/output"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline [class]",
	Short: "Show the last applied baseline for a class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		reply, err := api(cmd).Baseline(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get baseline: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(reply)
		}

		if len(reply.Entries) == 0 {
			output.Info("No baseline recorded for %s", args[0])
			return nil
		}

		columns := metaColumns(reply.Entries[0].Meta)
		headers := append([]string{"Subject"}, columns...)
		table := output.NewTable(headers)
		for _, entry := range reply.Entries {
			row := []string{entry.SubjectKey}
			for _, col := range columns {
				row = append(row, formatMeta(entry.Meta[col]))
			}
			table.AddRow(row)
		}
		table.Render()

		if !reply.TakenAt.IsZero() {
			output.Info("\n%d entries, taken at %s", len(reply.Entries), reply.TakenAt.Format("2006-01-02 15:04:05"))
		} else {
			output.Info("\n%d entries", len(reply.Entries))
		}
		return nil
	},
}

// metaColumns picks a stable column order from one entry's metadata keys.
func metaColumns(meta map[string]interface{}) []string {
	cols := make([]string, 0, len(meta))
	for k := range meta {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func formatMeta(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case string:
		if len(val) > 40 {
			return val[:37] + "..."
		}
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func init() {
	rootCmd.AddCommand(baselineCmd)
}
