package cmd

import (
	"os"
	"os/signal"

	"github.com/dojo-hq/dojo-cli/internal/ui"
	"github.com/dojo-hq/dojo-cli/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "dojo",
	Short:   "Track competitive programming progress and pair up in collaborative rooms",
	Long:    `Dojo is a command-line client for the Dojo competitive-programming platform. It tracks your solved problems and ratings across LeetCode, Codeforces, CodeChef and GeeksforGeeks, lists upcoming contests and curated problem sheets, runs code against a sandboxed executor, and joins collaborative rooms with live chat and peer-to-peer voice and video.`,
	Version: version.Version,
}

var flagAPIURL string

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Custom API base URL")
}
