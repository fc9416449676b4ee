package permit

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/workpermit/internal/core/events"
)

// EventHandler consumes permit lifecycle events. Coworker rows are never
// written here: their is_approved flag is display-only and has no setter.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

// HandleAudit writes one structured line per lifecycle event.
func (h *EventHandler) HandleAudit(ctx context.Context, event events.Event) error {
	h.logger.Info("permit audit",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"occurred_at", event.OccurredAt(),
		"payload", event.Payload())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	audited := []string{
		events.EventTypePermitSubmitted,
		events.EventTypePermitSlotApproved,
		events.EventTypePermitApproved,
		events.EventTypePermitRejected,
	}
	for _, eventType := range audited {
		eventBus.Subscribe(eventType, h.HandleAudit)
	}

	h.logger.Info("permit event handlers registered", "handlers", audited)
}
