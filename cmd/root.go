package cmd

import (
	"voice-relay/config"

	"github.com/spf13/cobra"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{Use: "voice-relay"}
	rootCmd.AddCommand(server(config))
	return rootCmd
}
