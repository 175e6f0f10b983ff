// Package cli implements the tracker command line client.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/apiclient"
	"github.com/ai-learning-tracker/tracker/internal/config"
	"github.com/ai-learning-tracker/tracker/internal/logging"
	"github.com/ai-learning-tracker/tracker/internal/session"
)

// app carries what every subcommand needs. It is built once per invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	client   *apiclient.Client
	signer   *session.Signer
	provider *session.Provider
}

type rootOptions struct {
	verbose     bool
	sessionFile string
}

// NewRootCmd builds the command tree. A fresh tree per call keeps flag state
// from leaking between invocations.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	root := &cobra.Command{
		Use:   "tracker",
		Short: "AI learning tracker client",
		Long: `tracker follows posts from AI gurus, asks the research assistant
questions, and manages which gurus you follow.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			built, err := newApp(opts)
			if err != nil {
				return err
			}
			*a = *built
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests at debug level")
	root.PersistentFlags().StringVar(&opts.sessionFile, "session", "", "session token file (default is the user config dir)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newFeedCmd(a),
		newChatCmd(a),
		newGurusCmd(a),
		newFollowCmd(a, true),
		newFollowCmd(a, false),
		newFollowsCmd(a),
		newStatsCmd(a),
	)
	return root
}

// Execute runs the CLI with ctx as the lifetime of every request.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func newApp(opts *rootOptions) (*app, error) {
	config.LoadConfig()
	cfg := config.AppConfig

	level := cfg.LogLevel
	if opts.verbose {
		level = "DEBUG"
	} else if level == "INFO" {
		// Info lines would interleave with command output.
		level = "WARN"
	}
	logger, err := logging.NewConsole(level)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	var store session.TokenStore
	if signer, err := session.NewSigner(cfg.JWTSecret, session.DefaultTokenTTL); err == nil {
		a.signer = signer
		path := opts.sessionFile
		if path == "" {
			if path, err = session.DefaultTokenPath(); err != nil {
				return nil, err
			}
		}
		store = session.FileTokenStore{Path: path}
	} else {
		logger.Debug("JWT_SECRET not set, running anonymously")
	}

	var provider *session.Provider
	a.client = apiclient.NewFromConfig(cfg, logger,
		apiclient.WithBearer(func() string { return provider.Token() }))
	provider = session.NewProvider(a.client, a.signer, store, logger)
	if err := provider.Restore(); err != nil {
		logger.Warn("failed to read session token", zap.Error(err))
	}
	a.provider = provider
	return a, nil
}

func (a *app) requireSignIn() error {
	if a.provider.Status() != session.StatusAuthenticated {
		return fmt.Errorf("not signed in: run `tracker login` first")
	}
	return nil
}
