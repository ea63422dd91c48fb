// Package cli implements the coach command line: validate and preview draft
// sessions, persist them through the API and read ratings back.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/oarbit/internal/adapters/http/client"
	"github.com/okian/oarbit/internal/config"
	"github.com/okian/oarbit/pkg/logger"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	server   string
	timeout  time.Duration
	json     bool
	logLevel string
}

type commandContext struct {
	flags *rootFlags
	cfg   *config.Config
	log   logger.Logger
}

// NewRootCommand builds the oarbit command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}
	cc := &commandContext{flags: flags, log: logger.Nop()}

	root := &cobra.Command{
		Use:           "oarbit",
		Short:         "Seat-race sessions and athlete ratings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cc.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&flags.server, "server", "", "API base URL (default from OARBIT_SERVER_URL)")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 0, "Per-request timeout (default from OARBIT_REQUEST_TIMEOUT_MS)")
	root.PersistentFlags().BoolVar(&flags.json, "json", false, "Print JSON instead of tables")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newValidateCommand(cc))
	root.AddCommand(newPreviewCommand(cc))
	root.AddCommand(newSubmitCommand(cc))
	root.AddCommand(newResumeCommand(cc))
	root.AddCommand(newProcessCommand(cc))
	root.AddCommand(newRecalculateCommand(cc))
	root.AddCommand(newLeaderboardCommand(cc))
	root.AddCommand(newRatingCommand(cc))
	root.AddCommand(newSessionCommand(cc))
	root.AddCommand(newTimeCommand(cc))

	return root
}

func (c *commandContext) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(c.flags.server); s != "" {
		cfg.ServerURL = s
	}
	c.cfg = cfg

	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return err
	}
	if err := logger.InitWithWriter(cmd.ErrOrStderr()); err != nil {
		return err
	}
	if err := logger.SetLevelString(c.flags.logLevel); err != nil {
		return err
	}
	c.log = logger.Named("cli")
	return nil
}

func (c *commandContext) client() (*client.Client, error) {
	timeout := time.Duration(c.cfg.RequestTimeoutMS) * time.Millisecond
	if c.flags.timeout > 0 {
		timeout = c.flags.timeout
	}
	cl, err := client.New(c.cfg.ServerURL,
		client.WithTimeout(timeout),
		client.WithLogger(c.log.Named("client")),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.cfg.ServerURL, err)
	}
	return cl, nil
}

// print writes v as JSON with --json, otherwise the rendered tables.
func (c *commandContext) print(cmd *cobra.Command, v any, tables ...string) error {
	if c.flags.json {
		return writeJSON(cmd.OutOrStdout(), v)
	}
	for _, t := range tables {
		if t == "" {
			continue
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), t); err != nil {
			return err
		}
	}
	return nil
}
