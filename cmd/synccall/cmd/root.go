package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/ui"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "synccall",
	Short:   "Group video calls for thesis teams, straight from the terminal",
	Long:    `Synccall joins your study group's video calls over WebRTC. Every participant connects directly to every other one; the server only brokers who is in the call and relays connection setup. Start a call for your group, share the call id, and teammates join with it.`,
	Version: version.Version,
}

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
