package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ai-learning-tracker/tracker/internal/render"
	"github.com/ai-learning-tracker/tracker/internal/session"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateSignIn(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			google := session.NewGoogleAuth(a.cfg, a.logger)
			profile, err := google.Login(cmd.Context(), func(authURL string) {
				fmt.Fprintln(out, "Open this URL to sign in:")
				fmt.Fprintln(out, authURL)
			})
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}
			if _, err := a.provider.SignIn(cmd.Context(), profile); err != nil {
				return err
			}
			fmt.Fprintln(out, render.Banner.Render("Signed in as "+profile.Email))
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.provider.SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.provider.Status() != session.StatusAuthenticated {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}
			p := a.provider.Profile()
			fmt.Fprintf(out, "%s <%s>\n", p.Name, p.Email)
			userID, err := a.provider.UserID(cmd.Context())
			if err != nil {
				return err
			}
			if userID == "" {
				fmt.Fprintln(out, render.Muted.Render("not yet known to the backend"))
				return nil
			}
			fmt.Fprintln(out, render.Muted.Render("user id: "+userID))
			return nil
		},
	}
}
