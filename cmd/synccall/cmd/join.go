package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/ui"
)

var flagGroup string

var joinCmd = &cobra.Command{
	Use:     "join <call-id>",
	Aliases: []string{"j"},
	Short:   "Join a call someone else started",
	Long: `Join an ongoing call by its call id.

Examples:
  synccall join 9f1c2a3b-4d5e-6789-a0b1-c2d3e4f56789
  synccall join --group thesis-team-7 9f1c2a3b-4d5e-6789-a0b1-c2d3e4f56789`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinCall(args[0])
	},
}

func joinCall(callID string) error {
	cfg, err := LoadConfig(currentOptions())
	if err != nil {
		return err
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	defer stopSpinner()
	cc, err := NewConnectionContext(cfg)
	if err != nil {
		return err
	}
	defer cc.Close()
	stopSpinner()

	stopSpinner = ui.RunMediaSpinner("Starting camera and microphone...")
	defer stopSpinner()
	if err := cc.Orc.Join(context.Background(), callID, flagGroup); err != nil {
		return err
	}
	stopSpinner()

	ui.PrintSuccessf("Joined call %s", callID)

	return runCall(cc, callID, flagGroup)
}

func init() {
	rootCmd.AddCommand(joinCmd)
	registerSessionFlags(joinCmd)
	joinCmd.Flags().StringVarP(&flagGroup, "group", "g", "", "Group the call belongs to")
}
