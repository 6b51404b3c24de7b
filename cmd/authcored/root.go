package main

import (
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/tools/hashbench"
)

func newRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "authcored",
		Short:         "Credential and session authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFile(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to an optional dotenv file")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSweepCommand())
	cmd.AddCommand(hashbench.NewCommand())
	return cmd
}
