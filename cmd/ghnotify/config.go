package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/ghnotify/internal/config"
)

// configCmd groups commands that manage the config file itself. It skips
// the root pre-run so a broken config can always be rewritten.
func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "config",
		Short:             "Manage the config file",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Long: `Write the default configuration to the per-user config path, or to
the path given with --config. An existing file is kept unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.configPath
			if path == "" {
				var err error
				if path, err = config.ConfigPath(); err != nil {
					return fmt.Errorf("resolving config path: %w", err)
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Save(path, config.Defaults()); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	cmd.AddCommand(initCmd)
	return cmd
}
