package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/internal/repositories"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
	"rental-system/pkg/utils"
)

const statusSummaryCacheKey = "equipment:status_summary"

type EquipmentServiceInterface interface {
	CreateEquipment(ctx context.Context, payload dto.CreateEquipmentDTO) (*entities.EquipmentItem, error)
	UpdateEquipment(ctx context.Context, id uint64, payload dto.UpdateEquipmentDTO) (*entities.EquipmentItem, error)
	SetStatus(ctx context.Context, id uint64, payload dto.SetEquipmentStatusDTO) (*entities.EquipmentItem, error)
	DeleteEquipment(ctx context.Context, id uint64) error
	FindEquipment(ctx context.Context, id uint64) (*entities.EquipmentItem, error)
	GetEquipments(ctx context.Context, filter types.Filter) ([]*entities.EquipmentItem, uint64, error)
	GetStatusHistory(ctx context.Context, id uint64) ([]*entities.EquipmentStatusHistory, error)
	GetStatusSummary(ctx context.Context) (*dto.EquipmentStatusSummaryDTO, error)
	InvalidateStatusSummary(ctx context.Context)
}

type EquipmentService struct {
	*BaseService
	equipmentRepo repositories.EquipmentRepositoryInterface
	categoryRepo  repositories.CategoryRepositoryInterface
	historyRepo   repositories.StatusHistoryRepositoryInterface
	bookingRepo   repositories.BookingRepositoryInterface
	txManager     repositories.TxManagerInterface
	publisher     PublisherInterface
	status        equipmentStatusRecorder
	summaryTTL    time.Duration
	logger        *zap.Logger
}

func NewEquipmentService(
	equipmentRepo repositories.EquipmentRepositoryInterface,
	categoryRepo repositories.CategoryRepositoryInterface,
	historyRepo repositories.StatusHistoryRepositoryInterface,
	bookingRepo repositories.BookingRepositoryInterface,
	cache repositories.CacheRepositoryInterface,
	txManager repositories.TxManagerInterface,
	publisher PublisherInterface,
	summaryTTL time.Duration,
	logger *zap.Logger,
) EquipmentServiceInterface {
	return &EquipmentService{
		BaseService:   NewBaseService(cache, logger),
		equipmentRepo: equipmentRepo,
		categoryRepo:  categoryRepo,
		historyRepo:   historyRepo,
		bookingRepo:   bookingRepo,
		txManager:     txManager,
		publisher:     publisher,
		status:        equipmentStatusRecorder{equipmentRepo: equipmentRepo, historyRepo: historyRepo},
		summaryTTL:    summaryTTL,
		logger:        logger,
	}
}

// checkPoolQuantity не даёт уменьшить парк ниже количества в действующей брони.
func (s *EquipmentService) checkPoolQuantity(ctx context.Context, tx pgx.Tx, item *entities.EquipmentItem, quantity int) error {
	if quantity < 1 {
		return apperrors.NewValidationError("количество оборудования должно быть не меньше 1, передано %d", quantity)
	}
	if quantity >= item.Quantity {
		return nil
	}
	booked, err := s.bookingRepo.MaxActiveQuantityByEquipment(ctx, tx, item.ID)
	if err != nil {
		return err
	}
	if quantity < booked {
		return apperrors.NewValidationError(
			"нельзя уменьшить количество «%s» до %d: в действующей брони %d ед.", item.Name, quantity, booked,
		).With("booked_quantity", booked)
	}
	return nil
}

func (s *EquipmentService) ensureCategory(ctx context.Context, tx pgx.Tx, categoryID uint64) error {
	if _, err := s.categoryRepo.FindByID(ctx, tx, categoryID); err != nil {
		return wrapNotFound(err, "категория оборудования %d не найдена", categoryID)
	}
	return nil
}

func (s *EquipmentService) CreateEquipment(ctx context.Context, payload dto.CreateEquipmentDTO) (*entities.EquipmentItem, error) {
	item := entities.EquipmentItem{
		Name:          strings.TrimSpace(payload.Name),
		CategoryID:    payload.CategoryID,
		SerialNumber:  utils.TrimmedOrNil(payload.SerialNumber),
		Barcode:       utils.TrimmedOrNil(payload.Barcode),
		Quantity:      payload.Quantity,
		CurrentStatus: entities.EquipmentAvailable,
		DailyRate:     payload.DailyRate,
		Notes:         payload.Notes,
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if item.DailyRate.IsNegative() {
		return nil, apperrors.NewValidationError("дневная ставка не может быть отрицательной")
	}

	var created *entities.EquipmentItem
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.ensureCategory(ctx, tx, item.CategoryID); err != nil {
			return err
		}

		id, err := s.equipmentRepo.Create(ctx, tx, item)
		if err != nil {
			return err
		}
		item.ID = id

		if err := s.status.recordIntake(ctx, tx, &item, "Поступление на склад"); err != nil {
			return err
		}

		created, err = s.equipmentRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		s.logger.Error("Ошибка при создании оборудования", zap.String("name", item.Name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Оборудование поставлено на учёт", zap.Uint64("id", created.ID), zap.String("name", created.Name))
	s.publisher.ActionLogged(ctx, actionCreated, entityEquipment, created.ID, map[string]interface{}{"name": created.Name})
	s.publisher.EquipmentStatusChanged(ctx, created.ID)
	return created, nil
}

func (s *EquipmentService) UpdateEquipment(ctx context.Context, id uint64, payload dto.UpdateEquipmentDTO) (*entities.EquipmentItem, error) {
	var updated *entities.EquipmentItem
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		item, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "оборудование %d не найдено", id)
		}

		if payload.Name.Valid {
			item.Name = strings.TrimSpace(payload.Name.String)
		}
		if payload.CategoryID.Valid && payload.CategoryID.Uint64 != item.CategoryID {
			if err := s.ensureCategory(ctx, tx, payload.CategoryID.Uint64); err != nil {
				return err
			}
			item.CategoryID = payload.CategoryID.Uint64
		}
		if payload.SerialNumber.Valid {
			item.SerialNumber = utils.TrimmedOrNil(&payload.SerialNumber.String)
		}
		if payload.Barcode.Valid {
			item.Barcode = utils.TrimmedOrNil(&payload.Barcode.String)
		}
		if payload.Quantity != nil {
			if err := s.checkPoolQuantity(ctx, tx, item, *payload.Quantity); err != nil {
				return err
			}
			item.Quantity = *payload.Quantity
		}
		if payload.DailyRate.Valid {
			item.DailyRate = payload.DailyRate.Decimal
		}
		if payload.Notes.Valid {
			item.Notes = &payload.Notes.String
		}

		if err := s.equipmentRepo.Update(ctx, tx, *item); err != nil {
			return err
		}
		updated, err = s.equipmentRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionUpdated, entityEquipment, id, nil)
	return updated, nil
}

// SetStatus - ручная смена статуса. IN_USE выставляется только выдачей.
func (s *EquipmentService) SetStatus(ctx context.Context, id uint64, payload dto.SetEquipmentStatusDTO) (*entities.EquipmentItem, error) {
	var (
		item     *entities.EquipmentItem
		previous entities.EquipmentStatus
	)
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		item, err = s.equipmentRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "оборудование %d не найдено", id)
		}
		previous = item.CurrentStatus

		if !item.CurrentStatus.CanSetManually(payload.Status) {
			return apperrors.NewValidationError(
				"нельзя вручную перевести оборудование «%s» из статуса %s в %s",
				item.Name, item.CurrentStatus, payload.Status,
			).With("current_status", item.CurrentStatus)
		}

		_, err = s.status.apply(ctx, tx, item, payload.Status, strings.TrimSpace(payload.Reason))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Статус оборудования изменён вручную",
		zap.Uint64("id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(item.CurrentStatus)),
	)
	s.publisher.ActionLogged(ctx, actionStatusSet, entityEquipment, id, map[string]interface{}{
		"from":   previous,
		"to":     item.CurrentStatus,
		"reason": payload.Reason,
	})
	s.publisher.EquipmentStatusChanged(ctx, id)
	return item, nil
}

func (s *EquipmentService) DeleteEquipment(ctx context.Context, id uint64) error {
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		item, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "оборудование %d не найдено", id)
		}

		active, err := s.bookingRepo.CountActiveByEquipment(ctx, tx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return apperrors.NewValidationError(
				"нельзя удалить оборудование «%s»: есть активные брони (%d)", item.Name, active,
			).With("active_bookings", active)
		}

		return s.equipmentRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.publisher.ActionLogged(ctx, actionDeleted, entityEquipment, id, nil)
	s.publisher.EquipmentStatusChanged(ctx, id)
	return nil
}

func (s *EquipmentService) FindEquipment(ctx context.Context, id uint64) (*entities.EquipmentItem, error) {
	item, err := s.equipmentRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, wrapNotFound(err, "оборудование %d не найдено", id)
	}
	return item, nil
}

func (s *EquipmentService) GetEquipments(ctx context.Context, filter types.Filter) ([]*entities.EquipmentItem, uint64, error) {
	return s.equipmentRepo.GetAll(ctx, filter)
}

func (s *EquipmentService) GetStatusHistory(ctx context.Context, id uint64) ([]*entities.EquipmentStatusHistory, error) {
	if _, err := s.FindEquipment(ctx, id); err != nil {
		return nil, err
	}
	return s.historyRepo.GetByEquipmentID(ctx, id)
}

// GetStatusSummary - количество единиц по каждому статусу, включая нулевые.
func (s *EquipmentService) GetStatusSummary(ctx context.Context) (*dto.EquipmentStatusSummaryDTO, error) {
	var cached dto.EquipmentStatusSummaryDTO
	if s.CacheGet(ctx, statusSummaryCacheKey, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	counts, err := s.equipmentRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта оборудования по статусам: %w", err)
	}

	byStatus := make(map[entities.EquipmentStatus]int64, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}

	summary := &dto.EquipmentStatusSummaryDTO{ByStatus: make([]entities.StatusCount, 0, len(entities.EquipmentStatuses))}
	for _, status := range entities.EquipmentStatuses {
		summary.ByStatus = append(summary.ByStatus, entities.StatusCount{Status: status, Count: byStatus[status]})
		summary.Total += byStatus[status]
	}

	s.CacheSet(ctx, statusSummaryCacheKey, summary, s.summaryTTL)
	return summary, nil
}

func (s *EquipmentService) InvalidateStatusSummary(ctx context.Context) {
	s.CacheDel(ctx, statusSummaryCacheKey)
}
