package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ptgott/reviewhub-mail/email"
	"github.com/ptgott/reviewhub-mail/notify"
	"github.com/ptgott/reviewhub-mail/token"
	"github.com/ptgott/reviewhub-mail/userconfig"
)

var errNotSent = errors.New("the email was not sent")

// app is populated by the root command before any subcommand runs.
type app struct {
	config   userconfig.Meta
	registry *prometheus.Registry
	metrics  *email.Metrics
}

// notifier builds a Notifier whose console backend writes to out.
func (a *app) notifier(out io.Writer) *notify.Notifier {
	m := email.NewWithOutput(a.config.Email, out)
	m.Metrics = a.metrics
	return notify.New(m, a.config.Links, a.config.AppName)
}

func setUpLogging(level string) {
	var w io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	// Log with filename and line number.
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()

	switch level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var (
		envFile     string
		configPath  string
		level       string
		metricsFile string
	)

	root := &cobra.Command{
		Use:           "reviewhub-mail",
		Short:         "Send ReviewHub account emails and generate tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setUpLogging(level)

			if err := userconfig.LoadDotEnv(envFile); err != nil {
				return err
			}

			var f io.Reader
			if configPath != "" {
				cf, err := os.Open(configPath)
				if err != nil {
					return fmt.Errorf("can't open the config file: %w", err)
				}
				defer cf.Close()
				f = cf
			}

			m, err := userconfig.Load(os.LookupEnv, f)
			if err != nil {
				return fmt.Errorf("problem parsing your config: %w", err)
			}

			c, err := m.CheckAndSetDefaults()
			if err != nil {
				return fmt.Errorf("problem validating your config: %w", err)
			}
			a.config = c

			log.Debug().
				Str("backend", c.Email.Backend.String()).
				Str("host", c.Email.SMTP.Host).
				Int("port", c.Email.SMTP.Port).
				Msg("loaded the config")

			if metricsFile != "" {
				a.registry = prometheus.NewRegistry()
				a.metrics, err = email.NewMetrics(a.registry)
				if err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.registry == nil {
				return nil
			}
			return prometheus.WriteToTextfile(metricsFile, a.registry)
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file; variables already set take precedence")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional YAML config file")
	root.PersistentFlags().StringVar(&level, "level", "info", `log level: "info", "debug", or "warn"`)
	root.PersistentFlags().StringVar(&metricsFile, "metrics-textfile", "", "write send counters to this file in the Prometheus text format")

	root.AddCommand(newSendCmd(a), newTokenCmd())
	return root
}

func newSendCmd(a *app) *cobra.Command {
	var to, username, tok string

	send := &cobra.Command{
		Use:   "send",
		Short: "Send an account email",
	}
	send.PersistentFlags().StringVar(&to, "to", "", "recipient address")
	send.PersistentFlags().StringVar(&username, "username", "", "name to greet the recipient with")
	send.MarkPersistentFlagRequired("to")

	// ensureToken generates a token when none was given and prints it, since
	// the caller has to store it somewhere.
	ensureToken := func(cmd *cobra.Command) error {
		if tok != "" {
			return nil
		}
		var err error
		tok, err = token.Generate(token.DefaultLength)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	}

	result := func(ok bool) error {
		if !ok {
			return errNotSent
		}
		return nil
	}

	verification := &cobra.Command{
		Use:   "verification",
		Short: "Send an email verification link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureToken(cmd); err != nil {
				return err
			}
			return result(a.notifier(cmd.OutOrStdout()).SendVerificationEmail(cmd.Context(), to, username, tok))
		},
	}
	verification.Flags().StringVar(&tok, "token", "", "token to embed in the link (generated if empty)")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Send a password reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureToken(cmd); err != nil {
				return err
			}
			return result(a.notifier(cmd.OutOrStdout()).SendPasswordResetEmail(cmd.Context(), to, username, tok))
		},
	}
	reset.Flags().StringVar(&tok, "token", "", "token to embed in the link (generated if empty)")

	welcome := &cobra.Command{
		Use:   "welcome",
		Short: "Send a welcome email",
		RunE: func(cmd *cobra.Command, args []string) error {
			return result(a.notifier(cmd.OutOrStdout()).SendWelcomeEmail(cmd.Context(), to, username))
		},
	}

	send.AddCommand(verification, reset, welcome)
	return send
}

func newTokenCmd() *cobra.Command {
	var length int

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a random token for verification or reset links",
		// Tokens don't need any config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token.Generate(length)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", token.DefaultLength, "number of characters")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("exiting")
		stop()
		os.Exit(1)
	}
}
