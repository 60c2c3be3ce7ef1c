package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/internal/repositories"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/utils"
)

// TransactionServiceInterface - выдача оборудования на мероприятие и его возврат.
type TransactionServiceInterface interface {
	CreateCheckOut(ctx context.Context, eventID uint64, payload dto.CreateCheckOutDTO) (*dto.CheckOutResultDTO, error)
	CreateCheckIn(ctx context.Context, eventID uint64, payload dto.CreateCheckInDTO) (*dto.CheckInResultDTO, error)
	GetEventTransactions(ctx context.Context, eventID uint64) (*dto.EventTransactionsDTO, error)
	ListOverdueReturns(ctx context.Context, asOf time.Time) ([]entities.OverdueReturn, error)
}

type TransactionService struct {
	logRepo       repositories.TransactionLogRepositoryInterface
	eventRepo     repositories.EventRepositoryInterface
	bookingRepo   repositories.BookingRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	maintenance   MaintenanceServiceInterface
	txManager     repositories.TxManagerInterface
	publisher     PublisherInterface
	status        equipmentStatusRecorder
	logger        *zap.Logger
}

func NewTransactionService(
	logRepo repositories.TransactionLogRepositoryInterface,
	eventRepo repositories.EventRepositoryInterface,
	bookingRepo repositories.BookingRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	historyRepo repositories.StatusHistoryRepositoryInterface,
	maintenance MaintenanceServiceInterface,
	txManager repositories.TxManagerInterface,
	publisher PublisherInterface,
	logger *zap.Logger,
) TransactionServiceInterface {
	return &TransactionService{
		logRepo:       logRepo,
		eventRepo:     eventRepo,
		bookingRepo:   bookingRepo,
		equipmentRepo: equipmentRepo,
		maintenance:   maintenance,
		txManager:     txManager,
		publisher:     publisher,
		status:        equipmentStatusRecorder{equipmentRepo: equipmentRepo, historyRepo: historyRepo},
		logger:        logger,
	}
}

// lockItems блокирует оборудование по возрастанию id. Отсутствующий id - NotFound с его номером.
func (s *TransactionService) lockItems(ctx context.Context, tx pgx.Tx, ids []uint64) (map[uint64]*entities.EquipmentItem, error) {
	if dup, found := firstDuplicate(ids); found {
		return nil, apperrors.NewValidationError("оборудование %d указано в запросе дважды", dup).With("equipment_id", dup)
	}
	locked, err := s.equipmentRepo.LockByIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, apperrors.NewNotFoundError("оборудование %d не найдено", id).With("equipment_id", id)
		}
	}
	return locked, nil
}

func (s *TransactionService) findBooking(ctx context.Context, tx pgx.Tx, event *entities.Event, item *entities.EquipmentItem) (*entities.EventEquipmentBooking, error) {
	booking, err := s.bookingRepo.FindByEventAndEquipment(ctx, tx, event.ID, item.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidationError(
				"оборудование «%s» (id %d) не забронировано на мероприятие %s", item.Name, item.ID, event.Label(),
			).With("equipment_id", item.ID)
		}
		return nil, err
	}
	return booking, nil
}

type checkOutLine struct {
	item    *entities.EquipmentItem
	booking *entities.EventEquipmentBooking
	row     entities.CheckOutItem
}

// CreateCheckOut выдаёт оборудование. Все проверки проходят до первой записи,
// затем журнал, статусы оборудования, брони и мероприятия пишутся одной транзакцией.
func (s *TransactionService) CreateCheckOut(ctx context.Context, eventID uint64, payload dto.CreateCheckOutDTO) (*dto.CheckOutResultDTO, error) {
	result := &dto.CheckOutResultDTO{}
	equipmentIDs := make([]uint64, 0, len(payload.Items))
	for _, it := range payload.Items {
		equipmentIDs = append(equipmentIDs, it.EquipmentID)
	}

	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, eventID)
		if err != nil {
			return wrapNotFound(err, "мероприятие %d не найдено", eventID)
		}
		if event.Status != entities.EventConfirmed && event.Status != entities.EventInProgress {
			return apperrors.NewValidationError(
				"выдача невозможна: мероприятие %s в статусе %s, требуется CONFIRMED или IN_PROGRESS",
				event.Label(), event.Status,
			).With("event_status", event.Status)
		}

		locked, err := s.lockItems(ctx, tx, sortedCopy(equipmentIDs))
		if err != nil {
			return err
		}

		lines := make([]checkOutLine, 0, len(payload.Items))
		for _, it := range payload.Items {
			item := locked[it.EquipmentID]
			booking, err := s.findBooking(ctx, tx, event, item)
			if err != nil {
				return err
			}
			if booking.Status != entities.BookingConfirmed {
				return apperrors.NewValidationError(
					"бронь оборудования «%s» в статусе %s, выдать можно только подтверждённую", item.Name, booking.Status,
				).With("equipment_id", item.ID).With("booking_status", booking.Status)
			}
			if !item.CurrentStatus.CanCheckOut() {
				return apperrors.NewValidationError(
					"оборудование «%s» нельзя выдать: статус %s", item.Name, item.CurrentStatus,
				).With("equipment_id", item.ID).With("current_status", item.CurrentStatus)
			}

			quantity := it.Quantity
			if quantity == 0 {
				quantity = booking.Quantity
			}
			if quantity > booking.Quantity {
				return apperrors.NewValidationError(
					"выдача %d ед. оборудования «%s» превышает бронь (%d)", quantity, item.Name, booking.Quantity,
				).With("equipment_id", item.ID)
			}
			condition := it.Condition
			if condition == "" {
				condition = entities.ConditionGood
			}
			if !condition.Valid() {
				return apperrors.NewValidationError(
					"неизвестное состояние %q оборудования «%s»", condition, item.Name,
				).With("equipment_id", item.ID)
			}

			lines = append(lines, checkOutLine{
				item:    item,
				booking: booking,
				row: entities.CheckOutItem{
					EquipmentID: item.ID,
					Quantity:    quantity,
					Condition:   condition,
					Notes:       it.Notes,
				},
			})
		}

		transaction := &entities.CheckOutTransaction{
			Reference: uuid.New(),
			EventID:   eventID,
			ActorID:   utils.ActorIDFromCtx(ctx),
			Notes:     payload.Notes,
			Items:     make([]entities.CheckOutItem, 0, len(lines)),
		}
		for _, line := range lines {
			transaction.Items = append(transaction.Items, line.row)
		}
		if _, err := s.logRepo.CreateCheckOut(ctx, tx, transaction); err != nil {
			return err
		}

		reason := fmt.Sprintf("Выдано на мероприятие %s", event.Label())
		for _, line := range lines {
			if _, err := s.status.apply(ctx, tx, line.item, entities.EquipmentInUse, reason); err != nil {
				return err
			}
			if err := s.bookingRepo.UpdateStatus(ctx, tx, line.booking.ID, entities.BookingCheckedOut); err != nil {
				return err
			}
		}

		result.EventStatus = event.Status
		if event.Status == entities.EventConfirmed {
			if err := s.eventRepo.UpdateStatus(ctx, tx, eventID, entities.EventInProgress); err != nil {
				return err
			}
			result.EventStatus = entities.EventInProgress
		}

		result.Transaction = transaction
		result.TotalItems = len(lines)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Оборудование выдано",
		zap.Uint64("event_id", eventID),
		zap.String("reference", result.Transaction.Reference.String()),
		zap.Int("items", result.TotalItems),
	)
	s.publisher.ActionLogged(ctx, actionCreated, entityCheckOut, result.Transaction.ID, map[string]interface{}{
		"event_id":      eventID,
		"reference":     result.Transaction.Reference.String(),
		"equipment_ids": equipmentIDs,
	})
	s.publisher.EquipmentStatusChanged(ctx, equipmentIDs...)
	return result, nil
}

type checkInLine struct {
	item    *entities.EquipmentItem
	booking *entities.EventEquipmentBooking
	row     entities.CheckInItem
}

func checkInReason(event *entities.Event, row entities.CheckInItem) string {
	reason := fmt.Sprintf("Возврат с мероприятия %s, состояние %s", event.Label(), row.Condition)
	if row.IsShortage {
		reason += fmt.Sprintf(", возвращено %d из %d", row.ReturnedQuantity, row.Quantity)
	}
	if row.DamageNotes != nil && *row.DamageNotes != "" {
		reason += ": " + *row.DamageNotes
	} else if row.Notes != nil && *row.Notes != "" {
		reason += ": " + *row.Notes
	}
	return reason
}

// CreateCheckIn принимает оборудование обратно. Повреждённое уходит в DAMAGED с заявкой на ремонт,
// потерянное - в LOST, остальное - в AVAILABLE.
func (s *TransactionService) CreateCheckIn(ctx context.Context, eventID uint64, payload dto.CreateCheckInDTO) (*dto.CheckInResultDTO, error) {
	result := &dto.CheckInResultDTO{MaintenanceTicketIDs: make([]uint64, 0)}
	equipmentIDs := make([]uint64, 0, len(payload.Items))
	for _, it := range payload.Items {
		equipmentIDs = append(equipmentIDs, it.EquipmentID)
	}

	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, eventID)
		if err != nil {
			return wrapNotFound(err, "мероприятие %d не найдено", eventID)
		}
		if event.Status != entities.EventInProgress && event.Status != entities.EventCompleted {
			return apperrors.NewValidationError(
				"возврат невозможен: мероприятие %s в статусе %s, требуется IN_PROGRESS или COMPLETED",
				event.Label(), event.Status,
			).With("event_status", event.Status)
		}

		checkedOut, err := s.logRepo.CheckedOutEquipmentIDs(ctx, tx, eventID)
		if err != nil {
			return err
		}
		for _, id := range equipmentIDs {
			if !checkedOut[id] {
				return apperrors.NewValidationError(
					"оборудование %d не выдавалось на мероприятие %s", id, event.Label(),
				).With("equipment_id", id)
			}
		}

		locked, err := s.lockItems(ctx, tx, sortedCopy(equipmentIDs))
		if err != nil {
			return err
		}

		lines := make([]checkInLine, 0, len(payload.Items))
		for _, it := range payload.Items {
			item := locked[it.EquipmentID]
			booking, err := s.findBooking(ctx, tx, event, item)
			if err != nil {
				return err
			}
			if booking.Status != entities.BookingCheckedOut {
				return apperrors.NewValidationError(
					"оборудование «%s» не числится выданным по брони (статус %s)", item.Name, booking.Status,
				).With("equipment_id", item.ID).With("booking_status", booking.Status)
			}

			quantity := it.Quantity
			if quantity == 0 {
				quantity = booking.Quantity
			}
			if quantity > booking.Quantity {
				return apperrors.NewValidationError(
					"возврат %d ед. оборудования «%s» превышает бронь (%d)", quantity, item.Name, booking.Quantity,
				).With("equipment_id", item.ID)
			}
			if !it.Condition.Valid() {
				return apperrors.NewValidationError(
					"при возврате нужно указать состояние оборудования «%s», передано %q", item.Name, it.Condition,
				).With("equipment_id", item.ID)
			}
			returned := quantity
			if it.ReturnedQuantity != nil {
				returned = *it.ReturnedQuantity
			}
			if returned < 0 || returned > quantity {
				return apperrors.NewValidationError(
					"возвращено %d ед. оборудования «%s», допустимо от 0 до %d", returned, item.Name, quantity,
				).With("equipment_id", item.ID)
			}

			lines = append(lines, checkInLine{
				item:    item,
				booking: booking,
				row:     entities.NewCheckInItem(item.ID, quantity, returned, it.Condition, it.DamageNotes, it.Notes),
			})
		}

		transaction := &entities.CheckInTransaction{
			Reference: uuid.New(),
			EventID:   eventID,
			ActorID:   utils.ActorIDFromCtx(ctx),
			Notes:     payload.Notes,
			Items:     make([]entities.CheckInItem, 0, len(lines)),
		}
		for _, line := range lines {
			transaction.Items = append(transaction.Items, line.row)
		}
		if _, err := s.logRepo.CreateCheckIn(ctx, tx, transaction); err != nil {
			return err
		}

		for _, line := range lines {
			next := line.row.Condition.ReturnStatus()
			if _, err := s.status.apply(ctx, tx, line.item, next, checkInReason(event, line.row)); err != nil {
				return err
			}

			switch next {
			case entities.EquipmentDamaged:
				result.ItemsWithIssues++
				issue := entities.DefaultDamageIssue
				if notes := utils.TrimmedOrNil(line.row.DamageNotes); notes != nil {
					issue = *notes
				}
				sourceEventID := eventID
				ticket, err := s.maintenance.CreateTicketInTx(ctx, tx, line.item, entities.MaintenanceTicket{
					Title:         fmt.Sprintf("Повреждение при возврате: %s", line.item.Name),
					ReportedIssue: issue,
					Priority:      entities.PriorityHigh,
					SourceEventID: &sourceEventID,
				})
				if err != nil {
					return err
				}
				result.MaintenanceTicketIDs = append(result.MaintenanceTicketIDs, ticket.ID)
			case entities.EquipmentLost:
				result.LostItems++
			}
			if line.row.IsShortage {
				result.ShortageItems++
			}

			if err := s.bookingRepo.UpdateStatus(ctx, tx, line.booking.ID, entities.BookingReturned); err != nil {
				return err
			}
		}

		unsettled, err := s.bookingRepo.CountUnsettledByEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		result.AllReturned = unsettled == 0
		result.EventStatus = event.Status
		if result.AllReturned && event.Status == entities.EventInProgress {
			if err := s.eventRepo.UpdateStatus(ctx, tx, eventID, entities.EventCompleted); err != nil {
				return err
			}
			result.EventStatus = entities.EventCompleted
		}

		result.Transaction = transaction
		result.TotalItems = len(lines)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Оборудование возвращено",
		zap.Uint64("event_id", eventID),
		zap.String("reference", result.Transaction.Reference.String()),
		zap.Int("items", result.TotalItems),
		zap.Int("damaged", result.ItemsWithIssues),
		zap.Int("lost", result.LostItems),
		zap.Bool("all_returned", result.AllReturned),
	)
	s.publisher.ActionLogged(ctx, actionCreated, entityCheckIn, result.Transaction.ID, map[string]interface{}{
		"event_id":      eventID,
		"reference":     result.Transaction.Reference.String(),
		"equipment_ids": equipmentIDs,
		"all_returned":  result.AllReturned,
	})
	for _, ticketID := range result.MaintenanceTicketIDs {
		s.publisher.ActionLogged(ctx, actionCreated, entityTicket, ticketID, map[string]interface{}{"source_event_id": eventID})
	}
	s.publisher.EquipmentStatusChanged(ctx, equipmentIDs...)
	return result, nil
}

func (s *TransactionService) GetEventTransactions(ctx context.Context, eventID uint64) (*dto.EventTransactionsDTO, error) {
	if _, err := s.eventRepo.FindByID(ctx, nil, eventID); err != nil {
		return nil, wrapNotFound(err, "мероприятие %d не найдено", eventID)
	}
	checkOuts, err := s.logRepo.GetCheckOutsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	checkIns, err := s.logRepo.GetCheckInsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &dto.EventTransactionsDTO{CheckOuts: checkOuts, CheckIns: checkIns}, nil
}

// ListOverdueReturns - выданное оборудование мероприятий, закончившихся раньше asOf.
func (s *TransactionService) ListOverdueReturns(ctx context.Context, asOf time.Time) ([]entities.OverdueReturn, error) {
	return s.bookingRepo.ListOverdue(ctx, dateOnly(asOf))
}
