package listeners

import (
	"context"

	"go.uber.org/zap"

	"rental-system/internal/events"
	"rental-system/pkg/eventbus"
)

// StatusSummaryInvalidator сбрасывает кэш сводки по статусам оборудования.
type StatusSummaryInvalidator interface {
	InvalidateStatusSummary(ctx context.Context)
}

type EquipmentCacheListener struct {
	invalidator StatusSummaryInvalidator
	logger      *zap.Logger
}

func NewEquipmentCacheListener(invalidator StatusSummaryInvalidator, logger *zap.Logger) *EquipmentCacheListener {
	return &EquipmentCacheListener{invalidator: invalidator, logger: logger}
}

func (l *EquipmentCacheListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.EquipmentStatusChangedEventName, l.handleStatusChanged)
	l.logger.Info("EquipmentCacheListener подписан на событие", zap.String("event", events.EquipmentStatusChangedEventName))
}

func (l *EquipmentCacheListener) handleStatusChanged(ctx context.Context, e eventbus.Event) error {
	if event, ok := e.(events.EquipmentStatusChangedEvent); ok {
		l.logger.Debug("Сброс сводки по статусам", zap.Uint64s("equipment_ids", event.EquipmentIDs))
	}
	l.invalidator.InvalidateStatusSummary(ctx)
	return nil
}
