package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage mention notifications",
}

var redeliverLimit int

var notifyRedeliverCmd = &cobra.Command{
	Use:   "redeliver",
	Short: "Retry webhook delivery for queued notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		delivered, err := initFanout(st).Redeliver(ctx, redeliverLimit)
		zap.L().Info("redelivery pass finished", zap.Int("delivered", delivered))
		return err
	},
}

func init() {
	notifyRedeliverCmd.Flags().IntVar(&redeliverLimit, "limit", 100, "max notifications per pass")
	notifyCmd.AddCommand(notifyRedeliverCmd)
	rootCmd.AddCommand(notifyCmd)
}
