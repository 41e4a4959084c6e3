package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/store"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage sourcing events",
}

var (
	eventName     string
	eventCustomer string
	eventMode     string
)

var eventsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a sourcing event",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		now := time.Now().UTC()
		ev := &model.SourcingEvent{
			Name:       eventName,
			CustomerID: eventCustomer,
			Stage:      model.StageInvited,
			Mode:       eventMode,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := st.CreateEvent(ctx, ev); err != nil {
			return eris.Wrap(err, "create event")
		}
		return printJSON(ev)
	},
}

var (
	listLimit  int
	listOffset int
)

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sourcing events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		events, err := st.ListEvents(ctx, listLimit, listOffset)
		if err != nil {
			return err
		}
		return printJSON(events)
	},
}

var (
	carriersEvent  string
	carriersStatus string
)

var eventsCarriersCmd = &cobra.Command{
	Use:   "carriers",
	Short: "List carrier assignments for an event",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		assignments, err := st.ListAssignments(ctx, store.AssignmentFilter{
			EventID: carriersEvent,
			Status:  model.AssignmentStatus(carriersStatus),
			Limit:   listLimit,
		})
		if err != nil {
			return err
		}
		return printJSON(assignments)
	},
}

func init() {
	eventsCreateCmd.Flags().StringVar(&eventName, "name", "", "event name (required)")
	eventsCreateCmd.Flags().StringVar(&eventCustomer, "customer", "", "customer ID (required)")
	eventsCreateCmd.Flags().StringVar(&eventMode, "mode", "", "default transport mode for tariffs")
	_ = eventsCreateCmd.MarkFlagRequired("name")
	_ = eventsCreateCmd.MarkFlagRequired("customer")

	eventsListCmd.Flags().IntVar(&listLimit, "limit", 50, "max rows")
	eventsListCmd.Flags().IntVar(&listOffset, "offset", 0, "rows to skip")

	eventsCarriersCmd.Flags().StringVar(&carriersEvent, "event", "", "event ID (required)")
	eventsCarriersCmd.Flags().StringVar(&carriersStatus, "status", "", "filter by status")
	_ = eventsCarriersCmd.MarkFlagRequired("event")

	eventsCmd.AddCommand(eventsCreateCmd, eventsListCmd, eventsCarriersCmd)
	rootCmd.AddCommand(eventsCmd)
}
