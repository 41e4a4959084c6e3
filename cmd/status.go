package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/sourcing-cli/internal/model"
)

var (
	statusAssignment string
	statusTo         string
	statusActor      string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Quick status change within the active set",
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

		a, err := p.QuickStatusChange(ctx, statusAssignment, model.AssignmentStatus(statusTo), statusActor)
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Mark an assignment withdrawn by the carrier",
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

		a, err := p.Withdraw(ctx, statusAssignment, statusActor)
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

var declineCmd = &cobra.Command{
	Use:   "decline",
	Short: "Mark an invitation declined",
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

		a, err := p.Decline(ctx, statusAssignment, statusActor)
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, withdrawCmd, declineCmd} {
		c.Flags().StringVar(&statusAssignment, "assignment", "", "assignment ID (required)")
		c.Flags().StringVar(&statusActor, "actor", "", "user performing the change (required)")
		_ = c.MarkFlagRequired("assignment")
		_ = c.MarkFlagRequired("actor")
	}
	statusCmd.Flags().StringVar(&statusTo, "to", "", "target status: invited|submitted|under_review|revision_requested (required)")
	_ = statusCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(statusCmd, withdrawCmd, declineCmd)
}
