package main

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/commandpost/internal/config"
	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or persist the effective settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the settings after flags and COMMANDPOST_* variables apply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := toml.Marshal(a.settings)
			if err != nil {
				return errdef.Wrap(errdef.CodeConfig, err, "encode settings")
			}
			fmt.Fprintf(a.out, "# %s\n%s", a.handle.Path, data)
			return nil
		},
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Write the effective settings to the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.SaveSettings(a.settings, a.handle); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "saved %s\n", a.handle.Path)
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config directory and database path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(a.out, "config:   %s\n", config.Dir())
			fmt.Fprintf(a.out, "database: %s\n", config.DatabasePath(a.settings))
			return nil
		},
	}

	cmd.AddCommand(show, save, path)
	return cmd
}
