package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	noteAssignment string
	noteAuthor     string
	noteBody       string
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage assignment notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a note, fanning out @First Last mentions",
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

		receipt, err := p.AddNote(ctx, noteAssignment, noteAuthor, noteBody)
		if err != nil {
			return err
		}
		if receipt.FanoutErr != nil {
			zap.L().Warn("note saved but notification fanout failed", zap.Error(receipt.FanoutErr))
		}
		return printJSON(receipt)
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes on an assignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		notes, err := st.ListNotes(ctx, noteAssignment)
		if err != nil {
			return err
		}
		return printJSON(notes)
	},
}

var activityLimit int

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the audit trail for an assignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListActivity(ctx, noteAssignment, activityLimit)
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}

func init() {
	noteAddCmd.Flags().StringVar(&noteAssignment, "assignment", "", "assignment ID (required)")
	noteAddCmd.Flags().StringVar(&noteAuthor, "author", "", "author user ID (required)")
	noteAddCmd.Flags().StringVar(&noteBody, "body", "", "note text (required)")
	_ = noteAddCmd.MarkFlagRequired("assignment")
	_ = noteAddCmd.MarkFlagRequired("author")
	_ = noteAddCmd.MarkFlagRequired("body")

	noteListCmd.Flags().StringVar(&noteAssignment, "assignment", "", "assignment ID (required)")
	_ = noteListCmd.MarkFlagRequired("assignment")

	activityCmd.Flags().StringVar(&noteAssignment, "assignment", "", "assignment ID (required)")
	activityCmd.Flags().IntVar(&activityLimit, "limit", 50, "max rows")
	_ = activityCmd.MarkFlagRequired("assignment")

	noteCmd.AddCommand(noteAddCmd, noteListCmd)
	rootCmd.AddCommand(noteCmd, activityCmd)
}
