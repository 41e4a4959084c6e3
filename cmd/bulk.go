package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/pipeline"
)

var (
	bulkAction      string
	bulkAssignments []string
	bulkReason      string
	bulkActor       string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Apply one action to many assignments",
	Long:  "Runs mark_submitted, award, or not_award across a set of assignments concurrently. Each assignment succeeds or fails on its own.",
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

		results, err := p.BulkApply(ctx, pipeline.BulkAction(bulkAction), bulkAssignments, bulkReason, bulkActor)
		if err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		zap.L().Info("bulk operation finished",
			zap.String("action", bulkAction),
			zap.Int("total", len(results)),
			zap.Int("failed", failed),
		)
		return printJSON(results)
	},
}

func init() {
	bulkCmd.Flags().StringVar(&bulkAction, "action", "", "mark_submitted|award|not_award (required)")
	bulkCmd.Flags().StringSliceVar(&bulkAssignments, "assignments", nil, "comma-separated assignment IDs (required)")
	bulkCmd.Flags().StringVar(&bulkReason, "reason", "", "reason, required for not_award")
	bulkCmd.Flags().StringVar(&bulkActor, "actor", "", "user performing the action (required)")
	_ = bulkCmd.MarkFlagRequired("action")
	_ = bulkCmd.MarkFlagRequired("assignments")
	_ = bulkCmd.MarkFlagRequired("actor")
	rootCmd.AddCommand(bulkCmd)
}
