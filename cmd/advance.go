package main

import (
	"github.com/spf13/cobra"
)

var (
	advanceEvent string
	advanceActor string
	advanceForce bool
)

var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Advance a sourcing event to its next stage",
	Long:  "Moves the event forward one stage. From rfp_sent onward at least one awarded carrier is required; --force overrides the gate and records the override.",
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

		ev, err := p.AdvanceStage(ctx, advanceEvent, advanceActor, advanceForce)
		if err != nil {
			return err
		}
		return printJSON(ev)
	},
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Check whether an event can advance",
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

		res, err := p.CanAdvanceStage(ctx, advanceEvent)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	for _, c := range []*cobra.Command{advanceCmd, gateCmd} {
		c.Flags().StringVar(&advanceEvent, "event", "", "event ID (required)")
		_ = c.MarkFlagRequired("event")
	}
	advanceCmd.Flags().StringVar(&advanceActor, "actor", "", "user advancing the event (required)")
	advanceCmd.Flags().BoolVar(&advanceForce, "force", false, "override the stage gate")
	_ = advanceCmd.MarkFlagRequired("actor")

	rootCmd.AddCommand(advanceCmd, gateCmd)
}
