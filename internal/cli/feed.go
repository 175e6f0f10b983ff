package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ai-learning-tracker/tracker/internal/feed"
	"github.com/ai-learning-tracker/tracker/internal/render"
	"github.com/ai-learning-tracker/tracker/internal/session"
)

func newFeedCmd(a *app) *cobra.Command {
	var more int
	var widget bool

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the latest guru posts",
		Long: `Show the latest posts. Signed in, only gurus you follow are shown.
Use --more to fetch additional pages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			now := time.Now()

			if widget {
				w := feed.NewWidget(a.client, a.provider, a.logger)
				defer w.Close()
				posts, err := w.Load(cmd.Context())
				if err != nil {
					return err
				}
				if s := render.MiniFeed(posts, now); s != "" {
					fmt.Fprintln(out, s)
				}
				return nil
			}

			p := feed.NewPager(a.client, a.provider, a.logger)
			defer p.Close()
			if err := p.Load(cmd.Context()); err != nil {
				fmt.Fprintln(out, render.ErrorBox.Render(p.Err()))
				return err
			}
			for i := 0; i < more && p.HasMore(); i++ {
				if err := p.LoadMore(cmd.Context()); err != nil {
					break
				}
			}

			posts := p.Posts()
			if len(posts) == 0 {
				fmt.Fprintln(out, render.Muted.Render(p.EmptyMessage()))
				return nil
			}
			for _, post := range posts {
				fmt.Fprintln(out, render.Post(post, now))
			}
			footer := fmt.Sprintf("%d / %d", len(posts), p.Total())
			if p.HasMore() {
				footer += fmt.Sprintf(" · tracker feed --more %d", more+1)
			}
			if a.provider.Status() == session.StatusAuthenticated {
				footer += " · following"
			}
			fmt.Fprintln(out, render.Muted.Render(footer))
			return nil
		},
	}
	cmd.Flags().IntVar(&more, "more", 0, "number of extra pages to load")
	cmd.Flags().BoolVar(&widget, "widget", false, "show the compact three-post widget")
	return cmd
}
