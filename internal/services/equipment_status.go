package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rental-system/internal/entities"
	"rental-system/internal/repositories"
	"rental-system/pkg/utils"
)

// equipmentStatusRecorder - единственное место, где меняется current_status.
// Статус и строка истории пишутся в одной транзакции под блокировкой строки оборудования.
type equipmentStatusRecorder struct {
	equipmentRepo repositories.EquipmentRepositoryInterface
	historyRepo   repositories.StatusHistoryRepositoryInterface
}

// apply переводит оборудование в next. Повторная установка текущего статуса ничего не пишет.
func (r equipmentStatusRecorder) apply(ctx context.Context, tx pgx.Tx, item *entities.EquipmentItem, next entities.EquipmentStatus, reason string) (bool, error) {
	if item.CurrentStatus == next {
		return false, nil
	}

	previous := item.CurrentStatus
	if err := r.equipmentRepo.UpdateStatus(ctx, tx, item.ID, next); err != nil {
		return false, fmt.Errorf("ошибка смены статуса оборудования %d: %w", item.ID, err)
	}
	_, err := r.historyRepo.Create(ctx, tx, entities.EquipmentStatusHistory{
		EquipmentID:    item.ID,
		PreviousStatus: &previous,
		NewStatus:      next,
		Reason:         reason,
		ActorID:        utils.ActorIDFromCtx(ctx),
	})
	if err != nil {
		return false, fmt.Errorf("ошибка записи истории статусов оборудования %d: %w", item.ID, err)
	}

	item.CurrentStatus = next
	return true, nil
}

// recordIntake - первая строка истории при поступлении оборудования.
func (r equipmentStatusRecorder) recordIntake(ctx context.Context, tx pgx.Tx, item *entities.EquipmentItem, reason string) error {
	_, err := r.historyRepo.Create(ctx, tx, entities.EquipmentStatusHistory{
		EquipmentID: item.ID,
		NewStatus:   item.CurrentStatus,
		Reason:      reason,
		ActorID:     utils.ActorIDFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("ошибка записи истории статусов оборудования %d: %w", item.ID, err)
	}
	return nil
}
