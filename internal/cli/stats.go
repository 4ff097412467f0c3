package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/harrier-systems/harrierwatch/internal/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-class event counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		stats, err := api(cmd).Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(stats)
		}

		classes := make([]string, 0, len(stats))
		for class := range stats {
			classes = append(classes, class)
		}
		sort.Strings(classes)

		table := output.NewTable([]string{"Class", "Received", "Deduplicated", "Last Event", "Last Snapshot"})
		for _, class := range classes {
			st := stats[class]
			snapshot := formatTime(st.LastSnapshotAt)
			if st.SnapshotStale {
				snapshot += " (stale)"
			}
			table.AddRow([]string{
				class,
				fmt.Sprintf("%d", st.EventsReceived),
				fmt.Sprintf("%d", st.Deduplicated),
				formatTime(st.LastEventAt),
				snapshot,
			})
		}
		table.Render()
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show harrierd health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		reply, err := api(cmd).Health(ctx)
		if err != nil {
			return fmt.Errorf("failed to get health: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(reply)
		}

		if reply.Status == "ok" {
			output.Success("harrierd is healthy (up %s)", formatUptime(reply.UptimeSeconds))
		} else {
			output.Warn("harrierd is %s (up %s)", reply.Status, formatUptime(reply.UptimeSeconds))
		}

		classes := make([]string, 0, len(reply.Classes))
		for class := range reply.Classes {
			classes = append(classes, class)
		}
		sort.Strings(classes)

		table := output.NewTable([]string{"Class", "Session", "Channel", "Snapshot Age", "Stale"})
		for _, class := range classes {
			ch := reply.Classes[class]
			age := "-"
			if ch.SnapshotAge != nil {
				age = fmt.Sprintf("%.0fs", *ch.SnapshotAge)
			}
			stale := ""
			if ch.SnapshotStale {
				stale = "yes"
			}
			table.AddRow([]string{class, string(ch.Session), string(ch.Channel), age, stale})
		}
		table.Render()
		return nil
	},
}

func formatUptime(seconds float64) string {
	s := int64(seconds)
	switch {
	case s >= 3600:
		return fmt.Sprintf("%dh%dm", s/3600, (s%3600)/60)
	case s >= 60:
		return fmt.Sprintf("%dm%ds", s/60, s%60)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
}
