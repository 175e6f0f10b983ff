package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ai-learning-tracker/tracker/internal/render"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show backend health and indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			health, err := a.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := a.client.GetChatStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", render.Title.Render(health.Service), health.Status)
			fmt.Fprintf(out, "documents: %d (%s)\n", stats.DocumentCount, stats.Status)
			return nil
		},
	}
}
