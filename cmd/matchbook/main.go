package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const configFlagName = "config"

var rootCmd = &cobra.Command{
	Use:           "matchbook",
	Short:         "Limit order book matching engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String(configFlagName, "", "Path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
