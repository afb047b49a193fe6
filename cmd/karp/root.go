package main

import (
	"context"

	"github.com/impl/karp/client"
	"github.com/impl/karp/internal/config"
	"github.com/impl/karp/internal/logging"
	"github.com/impl/karp/internal/metrics"
	"github.com/impl/karp/internal/store"
	"github.com/spf13/cobra"
)

var flags config.Flags

var rootCmd = &cobra.Command{
	Use:   "karp",
	Short: "Retrieve passwords and form fields from a KeePass database",
	Long: `karp talks to a running KeePass database over either the KeePassRPC
(WebSocket) or KeePassXC (Unix socket) dialect and prints matching entries
to the terminal, without ever writing the retrieved secret to disk.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&flags.URL, "url", "", "connection URL (default ws://127.0.0.1:12546)")
	rootCmd.PersistentFlags().BoolVar(&flags.NoCacheSessionKey, "no-cache-session-key", false, "ignore and overwrite any cached session credentials")
	rootCmd.PersistentFlags().StringVar(&flags.PinentryProgram, "pinentry-program", "", "pinentry binary to use for the master password prompt")
}

// session is everything a subcommand needs to run an operation: a
// connected Client, its background worker, and the logger to report
// progress through. Close tears the worker down and waits for it to exit.
type session struct {
	client.Client
	worker client.Worker
	logger logging.Logger
}

func (s *session) Close() error {
	closeErr := s.worker.Close()
	if waitErr := s.worker.Wait(); waitErr != nil && closeErr == nil {
		return waitErr
	}
	return closeErr
}

// connect loads configuration, starts the optional metrics server, and
// dials the protocol manager registered for the configured URL's scheme.
func connect(ctx context.Context) (*session, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}

	logger := logging.NewFromEnv()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.StartServer(cfg.MetricsAddr); err != nil {
				logger.Warn("metrics server stopped", logging.Err(err))
			}
		}()
	}

	sessionDir, err := store.DefaultSessionDir()
	if err != nil {
		logger.Warn("could not resolve default session directory, session state will not persist", logging.Err(err))
		sessionDir = ""
	}

	prompt := client.ChainPrompt{
		client.PinentryPrompt{Executable: cfg.PinentryProgram},
		client.TermPrompt{},
	}

	c, w, err := client.SelectByURL(ctx, cfg.URL.String(), client.Deps{
		Logger:     logger,
		Prompt:     prompt,
		SessionDir: sessionDir,
		NoCache:    cfg.NoCacheSessionKey,
	})
	if err != nil {
		return nil, err
	}
	return &session{Client: c, worker: w, logger: logger}, nil
}
