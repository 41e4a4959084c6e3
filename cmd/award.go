package main

import (
	"github.com/spf13/cobra"
)

var (
	awardAssignment string
	awardActor      string
	notAwardReason  string
	notAwardNotes   string
)

var awardCmd = &cobra.Command{
	Use:   "award",
	Short: "Award an assignment, creating its proposed tariff",
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

		out, err := p.Award(ctx, awardAssignment, awardActor)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var notAwardCmd = &cobra.Command{
	Use:   "not-award",
	Short: "Mark an assignment not awarded, with a reason",
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

		a, err := p.NotAward(ctx, awardAssignment, notAwardReason, notAwardNotes, awardActor)
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

func init() {
	for _, c := range []*cobra.Command{awardCmd, notAwardCmd} {
		c.Flags().StringVar(&awardAssignment, "assignment", "", "assignment ID (required)")
		c.Flags().StringVar(&awardActor, "actor", "", "user making the decision (required)")
		_ = c.MarkFlagRequired("assignment")
		_ = c.MarkFlagRequired("actor")
	}
	notAwardCmd.Flags().StringVar(&notAwardReason, "reason", "", "why the carrier was not awarded (required)")
	notAwardCmd.Flags().StringVar(&notAwardNotes, "notes", "", "optional note appended to the assignment")
	_ = notAwardCmd.MarkFlagRequired("reason")

	rootCmd.AddCommand(awardCmd, notAwardCmd)
}
