package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/workpermit/internal/core/events"
	"github.com/frahmantamala/workpermit/internal/permit"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect the permit event flow: publish a permit event through the audit handlers`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a permit event to an in-process bus wired with the audit handlers`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(cmd.Context(), args[0])
	},
}

var (
	eventPermitID int64
	eventTenantID int64
	eventActorID  int64
)

func testEvent(eventType string) (events.Event, error) {
	now := time.Now()
	switch eventType {
	case events.EventTypePermitSubmitted:
		return events.NewPermitSubmittedEvent(eventPermitID, eventTenantID, eventActorID, 0), nil
	case events.EventTypePermitSlotApproved:
		return events.NewPermitSlotApprovedEvent(eventPermitID, eventTenantID, "engineer", eventActorID, now, "pending"), nil
	case events.EventTypePermitApproved:
		return events.NewPermitApprovedEvent(eventPermitID, eventTenantID, eventActorID, eventActorID, eventActorID), nil
	case events.EventTypePermitRejected:
		return events.NewPermitRejectedEvent(eventPermitID, eventTenantID, eventActorID, "published from cli"), nil
	}
	return nil, fmt.Errorf("unknown event type %q", eventType)
}

func publishTestEvent(ctx context.Context, eventType string) error {
	log := logger.LoggerWrapper()

	event, err := testEvent(eventType)
	if err != nil {
		return err
	}

	eventBus := events.NewEventBus(log)
	handler := permit.NewEventHandler(log)
	eventBus.Subscribe(event.EventType(), handler.HandleAudit)

	log.Info("publishing test event", "event_type", event.EventType(), "event_id", event.EventID())
	if err := eventBus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	log.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventPermitID, "permit", 1, "permit id carried by the event")
	publishEventCmd.Flags().Int64Var(&eventTenantID, "tenant", 1, "tenant id carried by the event")
	publishEventCmd.Flags().Int64Var(&eventActorID, "actor", 1, "identity id carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
