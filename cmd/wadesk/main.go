package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memohai/wadesk/internal/config"
	"github.com/memohai/wadesk/internal/version"
)

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           version.Name,
		Short:         "WhatsApp Business helpdesk server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.GetInfo(),
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.toml (default $CONFIG_PATH or ./config.toml)")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newAdminCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", version.Name, version.GetInfo())
			if info.BuildTime != "" {
				fmt.Fprintf(out, "built:  %s\n", info.BuildTime)
			}
			fmt.Fprintf(out, "go:     %s\n", info.GoVersion)
		},
	}
}
