package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/matheus3301/shiftsync/internal/config"
	"github.com/matheus3301/shiftsync/internal/daemon"
	"github.com/matheus3301/shiftsync/internal/profile"
)

func main() {
	var (
		profileFlag string
		configFlag  string
		remoteFlag  string
		verbose     bool
	)

	rootCmd := &cobra.Command{
		Use:          "shiftsyncd",
		Short:        "Per-profile shiftsync daemon",
		Long:         `Mirrors the marketplace records of one signed-in user, keeps their local state, and serves derived feeds to shiftctl over a Unix socket.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := profile.Root()
			path := configFlag
			if path == "" {
				path = profile.ConfigPath(root)
			}
			cfg, err := config.Resolve(path)
			if err != nil {
				return err
			}
			if profileFlag != "" {
				cfg.Profile = profileFlag
			}
			if remoteFlag != "" {
				cfg.RemoteDir = remoteFlag
			}
			if verbose {
				cfg.LogLevel = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			app := fx.New(
				daemon.Module(daemon.Params{Config: cfg, Root: root}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "profile name (overrides config)")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "config file (default $SHIFTSYNC_HOME/config.toml)")
	rootCmd.Flags().StringVar(&remoteFlag, "remote", "", "directory of the file-backed remote (overrides config)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
