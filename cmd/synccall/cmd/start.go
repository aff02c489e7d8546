package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/config"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/ui"
)

var (
	flagDomain   string
	flagToken    string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

var startCmd = &cobra.Command{
	Use:     "start <group-id>",
	Aliases: []string{"s"},
	Short:   "Start a new call for your group",
	Long: `Start a new group call and join it as the first participant.

Examples:
  synccall start thesis-team-7
  synccall start --domain sync.example.com thesis-team-7
  synccall start --relay thesis-team-7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return startCall(args[0])
	},
}

func startCall(groupID string) error {
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
	callID, err := cc.Orc.Start(context.Background(), groupID)
	if err != nil {
		return err
	}
	stopSpinner()

	fmt.Println()
	fmt.Println(ui.CallInfoBox(callID, groupID))
	fmt.Println()

	return runCall(cc, callID, groupID)
}

func currentOptions() config.Options {
	return config.Options{
		Domain:     flagDomain,
		Token:      flagToken,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	}
}

func registerSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom domain")
	cmd.Flags().StringVarP(&flagToken, "token", "k", "", "Auth token (or SYNCCALL_TOKEN)")
	cmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	cmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	cmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	cmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}

func init() {
	rootCmd.AddCommand(startCmd)
	registerSessionFlags(startCmd)
}
