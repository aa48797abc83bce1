package pipeline

import (
	"context"

	"archi_crm_backend/internal/events"
	"archi_crm_backend/internal/pipeline/domain"
)

// BusNotifier turns Notify effects into NotificationRequested events.
type BusNotifier struct {
	bus events.Bus
}

// NewBusNotifier wraps bus.
func NewBusNotifier(bus events.Bus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

// Notify publishes asynchronously.
func (n *BusNotifier) Notify(ctx context.Context, notice domain.Notify) {
	n.bus.Publish(ctx, events.NotificationRequested{
		BaseEvent: events.NewBaseEvent(),
		Recipient: notice.Recipient,
		Kind:      string(notice.Kind),
		Title:     notice.Title,
		Body:      notice.Body,
		Payload:   notice.Payload,
	})
}

var _ Notifier = (*BusNotifier)(nil)
