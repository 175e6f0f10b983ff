package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ai-learning-tracker/tracker/internal/render"
	"github.com/ai-learning-tracker/tracker/internal/session"
	"github.com/ai-learning-tracker/tracker/internal/settings"
)

func newGurusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gurus",
		Short: "List gurus, marking the ones you follow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.provider.Status() != session.StatusAuthenticated {
				gurus, err := a.client.GetGurus(cmd.Context())
				if err != nil {
					return err
				}
				for _, g := range gurus {
					fmt.Fprintln(out, render.Guru(g, false))
				}
				return nil
			}

			e := settings.NewEditor(a.client, a.provider, a.logger)
			defer e.Close()
			if err := e.Load(cmd.Context()); err != nil && !errors.Is(err, settings.ErrNoUser) {
				return err
			}
			for _, g := range e.Catalog() {
				fmt.Fprintln(out, render.Guru(g, e.IsFollowed(g.ID)))
			}
			return nil
		},
	}
}

// newFollowCmd builds "follow" or "unfollow". Both load the current
// follow-set, apply the change locally and save it in one replace.
func newFollowCmd(a *app, follow bool) *cobra.Command {
	use, short := "follow", "Follow gurus by id"
	if !follow {
		use, short = "unfollow", "Stop following gurus by id"
	}
	return &cobra.Command{
		Use:   use + " <guru-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			e := settings.NewEditor(a.client, a.provider, a.logger)
			defer e.Close()
			if err := e.Load(cmd.Context()); err != nil {
				return err
			}
			for _, id := range args {
				if e.IsFollowed(id) != follow {
					e.Toggle(id)
				}
			}
			err := e.Save(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), render.Banner.Render(e.Message()))
			if err != nil {
				return err
			}
			return printFollowed(cmd, e)
		},
	}
}

func newFollowsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "follows",
		Short: "List the gurus you follow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			e := settings.NewEditor(a.client, a.provider, a.logger)
			defer e.Close()
			if err := e.Load(cmd.Context()); err != nil {
				return err
			}
			return printFollowed(cmd, e)
		},
	}
}

func printFollowed(cmd *cobra.Command, e *settings.Editor) error {
	out := cmd.OutOrStdout()
	followed := e.Followed()
	if len(followed) == 0 {
		fmt.Fprintln(out, render.Muted.Render("Not following anyone yet"))
		return nil
	}
	for _, g := range e.Catalog() {
		if e.IsFollowed(g.ID) {
			fmt.Fprintln(out, render.Guru(g, true))
		}
	}
	return nil
}
