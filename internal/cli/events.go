package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrier-systems/harrierwatch/internal/client"
	"github.com/harrier-systems/harrierwatch/internal/output"
)

var eventsCmd = &cobra.Command{
	Use:   "events [category]",
	Short: "Query reconciled event logs",
	Long: `Query the reconciled event log for one category (file, packet, alert).

Filter flags other than the common ones map to the category's facets,
for example --facet severity=high on alerts or --facet protocol=tcp on
packets.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		q := client.EventQuery{}
		q.Types, _ = cmd.Flags().GetStringSlice("type")
		q.Subject, _ = cmd.Flags().GetString("subject")
		q.SortBy, _ = cmd.Flags().GetString("sort")
		q.Offset, _ = cmd.Flags().GetInt("offset")
		q.Limit, _ = cmd.Flags().GetInt("limit")
		if cmd.Flags().Changed("desc") {
			desc, _ := cmd.Flags().GetBool("desc")
			q.Desc = &desc
		}
		facets, _ := cmd.Flags().GetStringSlice("facet")
		for _, f := range facets {
			name, value, ok := strings.Cut(f, "=")
			if !ok || name == "" {
				return fmt.Errorf("facet %q must be name=value", f)
			}
			if q.Facets == nil {
				q.Facets = make(map[string]string)
			}
			q.Facets[name] = value
		}

		records, err := api(cmd).Events(ctx, args[0], q)
		if err != nil {
			return fmt.Errorf("failed to query events: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(records)
		}

		if len(records) == 0 {
			output.Info("No events found")
			return nil
		}

		table := output.NewTable([]string{"Seq", "Type", "Subject", "Source Time", "Received"})
		for _, rec := range records {
			table.AddRow([]string{
				fmt.Sprintf("%d", rec.SequenceID),
				rec.Type,
				rec.SubjectKey,
				formatTime(rec.SourceTimestamp),
				rec.ReceivedTimestamp.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		output.Info("\n%d events", len(records))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringSliceP("type", "t", nil, "Filter by event type (repeatable)")
	eventsCmd.Flags().StringP("subject", "s", "", "Filter by subject substring")
	eventsCmd.Flags().StringSliceP("facet", "f", nil, "Filter by facet name=value (repeatable)")
	eventsCmd.Flags().String("sort", "", "Sort key: received, source, subject, or a category comparator")
	eventsCmd.Flags().Bool("desc", false, "Sort descending (omit for the sort key's natural order)")
	eventsCmd.Flags().Int("offset", 0, "Skip this many records")
	eventsCmd.Flags().IntP("limit", "l", 0, "Maximum records to return")
}
