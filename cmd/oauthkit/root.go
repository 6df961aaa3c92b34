package main

import (
	"context"

	"github.com/dpup/oauthkit"
	"github.com/dpup/oauthkit/clients"
	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/events"
	"github.com/dpup/oauthkit/events/membus"
	"github.com/dpup/oauthkit/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	provider   string
	debug      bool
	logLevel   string

	bus *membus.Bus
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "oauthkit",
		Short: "Run OAuth 1.0a and OAuth 2.0 flows against configured providers",
		Long: `oauthkit runs authorization flows against the providers defined under
"providers" in oauthkit.yaml (or OAUTHKIT__ environment variables).

Examples:
  oauthkit authurl -p github
  oauthkit exchange -p github --code 4/abc
  oauthkit profile -p github --token gho_xyz
  oauthkit sign POST https://api.example.com/1/statuses --consumer-key k --consumer-secret s`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.NewNopLogger()
			switch {
			case opts.debug:
				logger = logging.NewDevLogger()
			case opts.logLevel != "":
				l, err := logging.NewLevelLogger(opts.logLevel)
				if err != nil {
					return errors.WrapPrefix(oauthkit.ErrInvalidConfig, "--log-level", 0)
				}
				logger = l
			}
			ctx := logging.With(contextOf(cmd), logger)
			if opts.debug || opts.logLevel != "" {
				opts.bus = newEventBus(ctx)
				ctx = events.WithBus(ctx, opts.bus)
			}
			cmd.SetContext(ctx)
			if opts.configFile != "" {
				return oauthkit.LoadConfigFile(opts.configFile)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.bus == nil {
				return nil
			}
			return opts.bus.Shutdown(contextOf(cmd))
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file to load")
	cmd.PersistentFlags().StringVarP(&opts.provider, "provider", "p", "", "Provider key under providers.*")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Log provider requests to stderr")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Emit JSON logs at this level (debug, info, warn, error)")

	cmd.AddCommand(
		newSignCmd(),
		newAuthURLCmd(opts),
		newExchangeCmd(opts),
		newRefreshCmd(opts),
		newRevokeCmd(opts),
		newProfileCmd(opts),
		newConfigCmd(),
	)
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// client builds the client for the selected provider from the loaded
// configuration.
func (o *rootOptions) client(ctx context.Context) (oauthkit.Client, error) {
	cfg, err := clients.ProviderConfig(oauthkit.Config, o.provider)
	if err != nil {
		return nil, err
	}
	return clients.New(cfg, clients.NewExecutor(ctx, oauthkit.Config))
}
