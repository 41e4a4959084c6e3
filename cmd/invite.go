package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/sourcing-cli/internal/model"
)

var (
	inviteEvent   string
	inviteCarrier string
	inviteName    string
	inviteMode    string
	inviteActor   string
)

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Invite a carrier to a sourcing event",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := initPipeline(st)
		if err != nil {
			return err
		}

		a, err := p.Invite(ctx, inviteEvent, inviteCarrier, inviteName, model.LaneScope{Mode: inviteMode}, inviteActor)
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

func init() {
	inviteCmd.Flags().StringVar(&inviteEvent, "event", "", "event ID (required)")
	inviteCmd.Flags().StringVar(&inviteCarrier, "carrier", "", "carrier ID (required)")
	inviteCmd.Flags().StringVar(&inviteName, "carrier-name", "", "carrier display name")
	inviteCmd.Flags().StringVar(&inviteMode, "mode", "", "lane scope transport mode")
	inviteCmd.Flags().StringVar(&inviteActor, "actor", "", "user performing the invite (required)")
	_ = inviteCmd.MarkFlagRequired("event")
	_ = inviteCmd.MarkFlagRequired("carrier")
	_ = inviteCmd.MarkFlagRequired("actor")
	rootCmd.AddCommand(inviteCmd)
}
