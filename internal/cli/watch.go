package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrier-systems/harrierwatch/internal/models"
	"github.com/harrier-systems/harrierwatch/internal/output"
)

var watchReplay int

var watchCmd = &cobra.Command{
	Use:   "watch [category]",
	Short: "Follow the live event stream",
	Long: `Follow the live event stream until interrupted.

With a category argument only that category's events are shown;
without one, events from all categories are interleaved. --replay
prints the most recent retained events before the live tail starts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := ""
		if len(args) == 1 {
			category = args[0]
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		asJSON := jsonOutput(cmd)
		if !asJSON {
			if category == "" {
				output.Info("Watching all categories (Ctrl-C to stop)")
			} else {
				output.Info("Watching %s events (Ctrl-C to stop)", category)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		err := api(cmd).Stream(ctx, category, watchReplay, func(rec models.EventRecord) error {
			if asJSON {
				return enc.Encode(rec)
			}
			fmt.Printf("%s  %-6s  %-9s  %s\n",
				rec.ReceivedTimestamp.Format("15:04:05"),
				rec.Category,
				rec.Type,
				rec.SubjectKey,
			)
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream ended: %w", err)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchReplay, "replay", 0, "resend the newest N retained events before tailing")
	rootCmd.AddCommand(watchCmd)
}
