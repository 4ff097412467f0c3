package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrier-systems/harrierwatch/internal/models"
	"github.com/harrier-systems/harrierwatch/internal/output"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Monitoring session control",
	Long:  "Inspect and control the per-class monitoring sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all monitoring sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		statuses, err := api(cmd).Sessions(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(statuses)
		}

		table := output.NewTable([]string{"Class", "State", "Epoch", "Channel", "Descriptor", "Started"})
		for _, st := range statuses {
			table.AddRow([]string{
				st.Session.Class,
				string(st.Session.State),
				fmt.Sprintf("%d", st.Session.Epoch),
				string(st.Channel.State),
				st.Session.ResourceDescriptor,
				formatTime(st.Session.StartedAt),
			})
		}
		table.Render()
		return nil
	},
}

var sessionsGetCmd = &cobra.Command{
	Use:   "get [class]",
	Short: "Show one session in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		st, err := api(cmd).Session(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(st)
		}

		printSession(st)
		return nil
	},
}

var sessionsStartCmd = &cobra.Command{
	Use:   "start [class]",
	Short: "Start monitoring a resource class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		st, err := api(cmd).Start(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		output.Success("Start accepted for %s", args[0])
		output.Info("State: %s (epoch %d)", st.Session.State, st.Session.Epoch)
		return nil
	},
}

var sessionsStopCmd = &cobra.Command{
	Use:   "stop [class]",
	Short: "Stop monitoring a resource class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		st, err := api(cmd).Stop(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to stop session: %w", err)
		}

		output.Success("Stop accepted for %s", args[0])
		output.Info("State: %s (epoch %d)", st.Session.State, st.Session.Epoch)
		return nil
	},
}

var sessionsAckCmd = &cobra.Command{
	Use:   "ack [class]",
	Short: "Acknowledge a session error",
	Long:  "Acknowledge an errored session so it returns to idle and can be restarted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		st, err := api(cmd).AckError(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to acknowledge error: %w", err)
		}

		output.Success("Error acknowledged for %s", args[0])
		output.Info("State: %s", st.Session.State)
		return nil
	},
}

func printSession(st *models.SessionStatus) {
	output.Info("Class: %s", st.Session.Class)
	output.Info("State: %s", st.Session.State)
	output.Info("Epoch: %d", st.Session.Epoch)
	if st.Session.ResourceDescriptor != "" {
		output.Info("Descriptor: %s", st.Session.ResourceDescriptor)
	}
	if !st.Session.StartedAt.IsZero() {
		output.Info("Started: %s", st.Session.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if st.Session.LastError != "" {
		output.Warn("Last error: %s", st.Session.LastError)
	}

	output.Info("\nChannel: %s", st.Channel.State)
	if st.Channel.RetryCount > 0 {
		output.Info("Retries: %d", st.Channel.RetryCount)
	}
	if !st.Channel.NextRetry.IsZero() {
		output.Info("Next retry: %s", st.Channel.NextRetry.Format("15:04:05"))
	}
	if st.Channel.LastError != "" {
		output.Warn("Channel error: %s", st.Channel.LastError)
	}

	output.Info("\nEvents received: %d", st.Stats.EventsReceived)
	output.Info("Deduplicated: %d", st.Stats.Deduplicated)
	if !st.Stats.LastEventAt.IsZero() {
		output.Info("Last event: %s", st.Stats.LastEventAt.Format("2006-01-02 15:04:05"))
	}
	if !st.Stats.LastSnapshotAt.IsZero() {
		staleness := ""
		if st.Stats.SnapshotStale {
			staleness = " (stale)"
		}
		output.Info("Last snapshot: %s%s", st.Stats.LastSnapshotAt.Format("2006-01-02 15:04:05"), staleness)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsGetCmd)
	sessionsCmd.AddCommand(sessionsStartCmd)
	sessionsCmd.AddCommand(sessionsStopCmd)
	sessionsCmd.AddCommand(sessionsAckCmd)
}
