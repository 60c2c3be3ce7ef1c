package services

import (
	"context"

	"rental-system/internal/events"
	"rental-system/pkg/eventbus"
	"rental-system/pkg/utils"
)

const (
	entityEquipment = "equipment"
	entityCategory  = "equipment_category"
	entityEvent     = "event"
	entityBooking   = "booking"
	entityCheckOut  = "check_out"
	entityCheckIn   = "check_in"
	entityTicket    = "maintenance_ticket"
	entityQuote     = "quote"
	entityInvoice   = "invoice"
	entityPayment   = "payment"
	entityStaff     = "staff_assignment"

	actionCreated      = "created"
	actionUpdated      = "updated"
	actionDeleted      = "deleted"
	actionStatusSet    = "status_changed"
	actionCancelled    = "cancelled"
	actionConfirmed    = "confirmed"
	actionSent         = "sent"
	actionAccepted     = "accepted"
	actionRejected     = "rejected"
	actionConverted    = "converted"
	actionStarted      = "started"
	actionCompleted    = "completed"
	actionAssigned     = "assigned"
	actionUnassigned   = "unassigned"
	actionImported     = "imported"
	actionBatchExpire  = "expired"
	actionBatchOverdue = "marked_overdue"
)

// PublisherInterface - всё, что сервисы сообщают наружу после успешного коммита.
// Сбой доставки никогда не откатывает операцию.
type PublisherInterface interface {
	ActionLogged(ctx context.Context, action, entityType string, entityID uint64, details map[string]interface{})
	EquipmentStatusChanged(ctx context.Context, equipmentIDs ...uint64)
}

type busPublisher struct {
	bus *eventbus.Bus
}

func NewEventPublisher(bus *eventbus.Bus) PublisherInterface {
	return &busPublisher{bus: bus}
}

func (p *busPublisher) ActionLogged(ctx context.Context, action, entityType string, entityID uint64, details map[string]interface{}) {
	event := events.ActionLoggedEvent{
		ActorID:    utils.ActorIDFromCtx(ctx),
		Action:     entityType + "." + action,
		EntityType: entityType,
		Details:    details,
		IPAddress:  utils.IPAddressFromCtx(ctx),
	}
	if entityID != 0 {
		event.EntityID = &entityID
	}
	p.bus.Publish(ctx, event)
}

func (p *busPublisher) EquipmentStatusChanged(ctx context.Context, equipmentIDs ...uint64) {
	if len(equipmentIDs) == 0 {
		return
	}
	p.bus.Publish(ctx, events.EquipmentStatusChangedEvent{EquipmentIDs: equipmentIDs})
}
