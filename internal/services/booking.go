package services

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/internal/repositories"
	apperrors "rental-system/pkg/errors"
)

type BookingServiceInterface interface {
	BookEquipment(ctx context.Context, eventID uint64, payload dto.BookEquipmentDTO) (*entities.EventEquipmentBooking, error)
	BookMultipleEquipment(ctx context.Context, eventID uint64, payload dto.BulkBookEquipmentDTO) (*dto.BulkBookingResultDTO, error)
	ConfirmBookings(ctx context.Context, eventID uint64) (*dto.ConfirmBookingsResultDTO, error)
	UpdateBooking(ctx context.Context, bookingID uint64, payload dto.UpdateBookingDTO) (*entities.EventEquipmentBooking, error)
	CancelBooking(ctx context.Context, bookingID uint64) (*entities.EventEquipmentBooking, error)
	RemoveBooking(ctx context.Context, bookingID uint64) error
	GetEventBookings(ctx context.Context, eventID uint64) ([]*entities.EventEquipmentBooking, error)
	CheckAvailability(ctx context.Context, equipmentID uint64, query dto.AvailabilityQueryDTO) (*dto.AvailabilityDTO, error)
}

type BookingService struct {
	bookingRepo   repositories.BookingRepositoryInterface
	eventRepo     repositories.EventRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	txManager     repositories.TxManagerInterface
	publisher     PublisherInterface
	logger        *zap.Logger
}

func NewBookingService(
	bookingRepo repositories.BookingRepositoryInterface,
	eventRepo repositories.EventRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	txManager repositories.TxManagerInterface,
	publisher PublisherInterface,
	logger *zap.Logger,
) BookingServiceInterface {
	return &BookingService{
		bookingRepo:   bookingRepo,
		eventRepo:     eventRepo,
		equipmentRepo: equipmentRepo,
		txManager:     txManager,
		publisher:     publisher,
		logger:        logger,
	}
}

func conflictError(item *entities.EquipmentItem, conflict entities.BookingConflict) error {
	return apperrors.NewConflictError(
		"оборудование «%s» уже забронировано на мероприятие %s",
		item.Name, conflict.Label(),
	).With("equipment_id", item.ID).With("conflicting_event_id", conflict.EventID)
}

func notBookableError(item *entities.EquipmentItem) error {
	return apperrors.NewValidationError(
		"оборудование «%s» нельзя бронировать: статус %s", item.Name, item.CurrentStatus,
	).With("equipment_id", item.ID).With("current_status", item.CurrentStatus)
}

// lockOpenEvent блокирует мероприятие первым по порядку блокировок и проверяет, что оно не закрыто.
func (s *BookingService) lockOpenEvent(ctx context.Context, tx pgx.Tx, eventID uint64) (*entities.Event, error) {
	event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, eventID)
	if err != nil {
		return nil, wrapNotFound(err, "мероприятие %d не найдено", eventID)
	}
	if event.Status.IsClosed() {
		return nil, apperrors.NewValidationError(
			"мероприятие %s в статусе %s не принимает изменения броней", event.Label(), event.Status,
		).With("event_status", event.Status)
	}
	return event, nil
}

// BookEquipment создаёт бронь в статусе PENDING. Пересечение с держащими бронями других
// мероприятий проверяется внутри транзакции после блокировки строки оборудования.
func (s *BookingService) BookEquipment(ctx context.Context, eventID uint64, payload dto.BookEquipmentDTO) (*entities.EventEquipmentBooking, error) {
	quantity := payload.Quantity
	if quantity == 0 {
		quantity = 1
	}

	var booking *entities.EventEquipmentBooking
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		event, err := s.lockOpenEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		item, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, payload.EquipmentID)
		if err != nil {
			return wrapNotFound(err, "оборудование %d не найдено", payload.EquipmentID)
		}
		if !item.CurrentStatus.IsBookable() {
			return notBookableError(item)
		}
		if quantity > item.Quantity {
			return apperrors.NewValidationError(
				"запрошено %d ед. оборудования «%s», в наличии %d", quantity, item.Name, item.Quantity,
			).With("available_quantity", item.Quantity)
		}

		existing, err := s.bookingRepo.FindByEventAndEquipment(ctx, tx, eventID, item.ID)
		switch {
		case err == nil:
			return apperrors.NewConflictError(
				"оборудование «%s» уже забронировано на это мероприятие (бронь %d, статус %s)",
				item.Name, existing.ID, existing.Status,
			).With("booking_id", existing.ID)
		case !errors.Is(err, apperrors.ErrNotFound):
			return err
		}

		conflicts, err := s.bookingRepo.FindConflicts(ctx, tx, item.ID, event.StartDate, event.EndDate, event.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return conflictError(item, conflicts[0])
		}

		id, err := s.bookingRepo.Create(ctx, tx, entities.EventEquipmentBooking{
			EventID:     eventID,
			EquipmentID: item.ID,
			Quantity:    quantity,
			Status:      entities.BookingPending,
			Notes:       payload.Notes,
		})
		if err != nil {
			return err
		}
		booking, err = s.bookingRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionCreated, entityBooking, booking.ID, map[string]interface{}{
		"event_id":     eventID,
		"equipment_id": booking.EquipmentID,
		"quantity":     booking.Quantity,
	})
	return booking, nil
}

// BookMultipleEquipment бронирует каждую позицию в своей транзакции и собирает ошибки.
func (s *BookingService) BookMultipleEquipment(ctx context.Context, eventID uint64, payload dto.BulkBookEquipmentDTO) (*dto.BulkBookingResultDTO, error) {
	result := &dto.BulkBookingResultDTO{
		Successful: make([]*entities.EventEquipmentBooking, 0, len(payload.Items)),
		Failed:     make([]dto.BookingFailureDTO, 0),
	}
	for _, item := range payload.Items {
		booking, err := s.BookEquipment(ctx, eventID, item)
		if err != nil {
			result.Failed = append(result.Failed, dto.BookingFailureDTO{
				EquipmentID: item.EquipmentID,
				Kind:        apperrors.KindOf(err).String(),
				Error:       err.Error(),
			})
			continue
		}
		result.Successful = append(result.Successful, booking)
	}

	s.logger.Info("Пакетное бронирование",
		zap.Uint64("event_id", eventID),
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// ConfirmBookings подтверждает все ожидающие брони мероприятия. Повторный вызов подтверждает ноль броней.
func (s *BookingService) ConfirmBookings(ctx context.Context, eventID uint64) (*dto.ConfirmBookingsResultDTO, error) {
	result := &dto.ConfirmBookingsResultDTO{}
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		event, err := s.lockOpenEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		bookings, err := s.bookingRepo.GetByEventID(ctx, tx, eventID)
		if err != nil {
			return err
		}
		pending := make([]*entities.EventEquipmentBooking, 0, len(bookings))
		ids := make([]uint64, 0, len(bookings))
		for _, b := range bookings {
			if b.Status == entities.BookingPending {
				pending = append(pending, b)
				ids = append(ids, b.EquipmentID)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		locked, err := s.equipmentRepo.LockByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}

		for _, b := range pending {
			item, ok := locked[b.EquipmentID]
			if !ok {
				return apperrors.NewNotFoundError("оборудование %d не найдено", b.EquipmentID)
			}
			if !item.CurrentStatus.IsBookable() {
				return notBookableError(item)
			}
			conflicts, err := s.bookingRepo.FindConflicts(ctx, tx, item.ID, event.StartDate, event.EndDate, event.ID)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return conflictError(item, conflicts[0])
			}
		}

		for _, b := range pending {
			if err := s.bookingRepo.UpdateStatus(ctx, tx, b.ID, entities.BookingConfirmed); err != nil {
				return err
			}
			result.ConfirmedCount++
		}

		result.EventStatus = event.Status
		if event.Status == entities.EventDraft || event.Status == entities.EventQuoted {
			if err := s.eventRepo.UpdateStatus(ctx, tx, eventID, entities.EventConfirmed); err != nil {
				return err
			}
			result.EventStatus = entities.EventConfirmed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Брони подтверждены", zap.Uint64("event_id", eventID), zap.Int("count", result.ConfirmedCount))
	if result.ConfirmedCount > 0 {
		s.publisher.ActionLogged(ctx, actionConfirmed, entityEvent, eventID, map[string]interface{}{
			"confirmed_count": result.ConfirmedCount,
			"event_status":    result.EventStatus,
		})
	}
	return result, nil
}

// lockBooking читает бронь, блокирует её мероприятие, затем саму бронь.
func (s *BookingService) lockBooking(ctx context.Context, tx pgx.Tx, bookingID uint64) (*entities.Event, *entities.EventEquipmentBooking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, wrapNotFound(err, "бронь %d не найдена", bookingID)
	}
	event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, booking.EventID)
	if err != nil {
		return nil, nil, wrapNotFound(err, "мероприятие %d не найдено", booking.EventID)
	}
	booking, err = s.bookingRepo.FindByIDForUpdate(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, wrapNotFound(err, "бронь %d не найдена", bookingID)
	}
	return event, booking, nil
}

func (s *BookingService) UpdateBooking(ctx context.Context, bookingID uint64, payload dto.UpdateBookingDTO) (*entities.EventEquipmentBooking, error) {
	var updated *entities.EventEquipmentBooking
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		_, booking, err := s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != entities.BookingPending && booking.Status != entities.BookingConfirmed {
			return apperrors.NewValidationError("бронь %d в статусе %s изменить нельзя", booking.ID, booking.Status)
		}

		if payload.Quantity != nil {
			quantity := *payload.Quantity
			if quantity < 1 {
				return apperrors.NewValidationError("количество в брони должно быть не меньше 1, передано %d", quantity)
			}
			item, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, booking.EquipmentID)
			if err != nil {
				return wrapNotFound(err, "оборудование %d не найдено", booking.EquipmentID)
			}
			if quantity > item.Quantity {
				return apperrors.NewValidationError(
					"запрошено %d ед. оборудования «%s», в наличии %d", quantity, item.Name, item.Quantity,
				).With("available_quantity", item.Quantity)
			}
			booking.Quantity = quantity
		}
		if payload.Notes.Valid {
			booking.Notes = &payload.Notes.String
		}

		if err := s.bookingRepo.Update(ctx, tx, *booking); err != nil {
			return err
		}
		updated, err = s.bookingRepo.FindByID(ctx, tx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionUpdated, entityBooking, bookingID, map[string]interface{}{"quantity": updated.Quantity})
	return updated, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, bookingID uint64) (*entities.EventEquipmentBooking, error) {
	var cancelled *entities.EventEquipmentBooking
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		_, booking, err := s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !booking.Status.CanTransitionTo(entities.BookingCancelled) {
			return apperrors.NewValidationError(
				"бронь оборудования «%s» в статусе %s отменить нельзя", booking.EquipmentName, booking.Status,
			).With("booking_status", booking.Status)
		}
		if err := s.bookingRepo.UpdateStatus(ctx, tx, bookingID, entities.BookingCancelled); err != nil {
			return err
		}
		cancelled, err = s.bookingRepo.FindByID(ctx, tx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionCancelled, entityBooking, bookingID, nil)
	return cancelled, nil
}

// RemoveBooking удаляет бронь, пока оборудование не выдано.
func (s *BookingService) RemoveBooking(ctx context.Context, bookingID uint64) error {
	var booking *entities.EventEquipmentBooking
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		_, booking, err = s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status == entities.BookingCheckedOut || booking.Status == entities.BookingReturned {
			return apperrors.NewValidationError(
				"нельзя удалить бронь оборудования «%s» в статусе %s", booking.EquipmentName, booking.Status,
			).With("booking_status", booking.Status)
		}
		return s.bookingRepo.Delete(ctx, tx, bookingID)
	})
	if err != nil {
		return err
	}

	s.publisher.ActionLogged(ctx, actionDeleted, entityBooking, bookingID, map[string]interface{}{
		"event_id":     booking.EventID,
		"equipment_id": booking.EquipmentID,
	})
	return nil
}

func (s *BookingService) GetEventBookings(ctx context.Context, eventID uint64) ([]*entities.EventEquipmentBooking, error) {
	if _, err := s.eventRepo.FindByID(ctx, nil, eventID); err != nil {
		return nil, wrapNotFound(err, "мероприятие %d не найдено", eventID)
	}
	return s.bookingRepo.GetByEventID(ctx, nil, eventID)
}

// CheckAvailability - чтение без блокировок. Результат может устареть к моменту бронирования.
func (s *BookingService) CheckAvailability(ctx context.Context, equipmentID uint64, query dto.AvailabilityQueryDTO) (*dto.AvailabilityDTO, error) {
	start, end := dateOnly(query.StartDate), dateOnly(query.EndDate)
	if err := entities.ValidateDateRange(start, end); err != nil {
		return nil, apperrors.NewValidationError("%s", err.Error())
	}

	item, err := s.equipmentRepo.FindByID(ctx, nil, equipmentID)
	if err != nil {
		return nil, wrapNotFound(err, "оборудование %d не найдено", equipmentID)
	}
	conflicts, err := s.bookingRepo.FindConflicts(ctx, nil, equipmentID, start, end, query.ExcludeEventID)
	if err != nil {
		return nil, err
	}

	bookable := item.CurrentStatus.IsBookable()
	return &dto.AvailabilityDTO{
		EquipmentID: item.ID,
		Status:      item.CurrentStatus,
		Bookable:    bookable,
		Available:   bookable && len(conflicts) == 0,
		Conflicts:   conflicts,
	}, nil
}
