package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rental-system/internal/entities"
	"rental-system/internal/events"
	"rental-system/internal/repositories"
	"rental-system/pkg/eventbus"
)

// AuditListener пишет журнал действий. Ошибка записи не влияет на уже закоммиченную операцию.
type AuditListener struct {
	actionLogRepo repositories.ActionLogRepositoryInterface
	logger        *zap.Logger
}

func NewAuditListener(actionLogRepo repositories.ActionLogRepositoryInterface, logger *zap.Logger) *AuditListener {
	return &AuditListener{actionLogRepo: actionLogRepo, logger: logger}
}

func (l *AuditListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.ActionLoggedEventName, l.handleActionLogged)
	l.logger.Info("AuditListener подписан на событие", zap.String("event", events.ActionLoggedEventName))
}

func (l *AuditListener) handleActionLogged(ctx context.Context, e eventbus.Event) error {
	event, ok := e.(events.ActionLoggedEvent)
	if !ok {
		return fmt.Errorf("неверный тип события для %s: %T", events.ActionLoggedEventName, e)
	}

	err := l.actionLogRepo.Create(ctx, entities.ActionLog{
		ActorID:    event.ActorID,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Details:    event.Details,
		IPAddress:  event.IPAddress,
	})
	if err != nil {
		l.logger.Error("Не удалось записать журнал действий",
			zap.String("action", event.Action),
			zap.String("entity_type", event.EntityType),
			zap.Error(err),
		)
		return err
	}
	return nil
}
