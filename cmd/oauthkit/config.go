package main

import (
	"fmt"

	"github.com/dpup/oauthkit"
	"github.com/dpup/oauthkit/clients"
	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/internal/config"
	"github.com/dpup/oauthkit/request"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the loaded configuration",
	}
	cmd.AddCommand(newConfigValidateCmd(), newConfigKeysCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check configuration keys and build every configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, w := range config.Validate(oauthkit.Config) {
				fmt.Fprintln(out, text.FgYellow.Sprint("warning: ")+w.String())
			}

			exec := request.NewExecutor()
			t := newTable(out, "KEY", "CLIENT", "PROTOCOL", "STATUS")
			failed := 0
			for _, key := range clients.Keys(oauthkit.Config) {
				cfg, err := clients.ProviderConfig(oauthkit.Config, key)
				if err == nil {
					_, err = clients.New(cfg, exec)
				}
				status := text.FgGreen.Sprint("ok")
				if err != nil {
					failed++
					status = text.FgRed.Sprint(err.Error())
				}
				t.AppendRow(table.Row{key, cfg.Name.String(), string(cfg.Protocol), status})
			}
			t.Render()

			if failed > 0 {
				return errors.WrapPrefix(oauthkit.ErrInvalidConfig, fmt.Sprintf("%d provider(s) failed", failed), 0)
			}
			return nil
		},
	}
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List known configuration keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := newTable(cmd.OutOrStdout(), "KEY", "TYPE", "DEFAULT", "DESCRIPTION")
			for _, key := range config.Keys() {
				info, _ := config.Lookup(key)
				if info.Deprecated {
					continue
				}
				def := ""
				if info.Default != nil {
					def = fmt.Sprint(info.Default)
				}
				t.AppendRow(table.Row{key, info.Type, def, info.Description})
			}
			t.Render()
			return nil
		},
	}
}
