package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "callflowd",
	Short: "callflowd orchestrates telephony call flows over provider webhooks",
	Long: `callflowd answers provider webhook callbacks with call-control markup,
bridging inbound calls to a forwarding number with callee screening and
falling back to voicemail with recording playback.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")
}
