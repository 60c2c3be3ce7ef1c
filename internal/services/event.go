package services

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/internal/repositories"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
	"rental-system/pkg/utils"
)

type EventServiceInterface interface {
	CreateEvent(ctx context.Context, payload dto.CreateEventDTO) (*entities.Event, error)
	UpdateEvent(ctx context.Context, id uint64, payload dto.UpdateEventDTO) (*entities.Event, error)
	CancelEvent(ctx context.Context, id uint64) (*dto.CancelEventResultDTO, error)
	FindEvent(ctx context.Context, id uint64) (*entities.Event, error)
	GetEvents(ctx context.Context, filter types.Filter) ([]*entities.Event, uint64, error)

	AssignStaff(ctx context.Context, eventID uint64, payload dto.AssignStaffDTO) (*entities.StaffAssignment, error)
	RemoveStaff(ctx context.Context, eventID, userID uint64) error
	GetStaff(ctx context.Context, eventID uint64) ([]*entities.StaffAssignment, error)
}

type EventService struct {
	eventRepo     repositories.EventRepositoryInterface
	bookingRepo   repositories.BookingRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	staffRepo     repositories.StaffRepositoryInterface
	directoryRepo repositories.DirectoryRepositoryInterface
	txManager     repositories.TxManagerInterface
	publisher     PublisherInterface
	logger        *zap.Logger
}

func NewEventService(
	eventRepo repositories.EventRepositoryInterface,
	bookingRepo repositories.BookingRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	staffRepo repositories.StaffRepositoryInterface,
	directoryRepo repositories.DirectoryRepositoryInterface,
	txManager repositories.TxManagerInterface,
	publisher PublisherInterface,
	logger *zap.Logger,
) EventServiceInterface {
	return &EventService{
		eventRepo:     eventRepo,
		bookingRepo:   bookingRepo,
		equipmentRepo: equipmentRepo,
		staffRepo:     staffRepo,
		directoryRepo: directoryRepo,
		txManager:     txManager,
		publisher:     publisher,
		logger:        logger,
	}
}

// ensureActiveClient - мероприятия и финансовые документы заводятся только на действующего клиента.
func ensureActiveClient(ctx context.Context, directory repositories.DirectoryRepositoryInterface, tx pgx.Tx, clientID uint64) (*entities.Client, error) {
	client, err := directory.FindClient(ctx, tx, clientID)
	if err != nil {
		return nil, wrapNotFound(err, "клиент %d не найден", clientID)
	}
	if !client.IsActive {
		return nil, apperrors.NewValidationError("клиент «%s» неактивен", client.Name).With("client_id", clientID)
	}
	return client, nil
}

func (s *EventService) CreateEvent(ctx context.Context, payload dto.CreateEventDTO) (*entities.Event, error) {
	event := entities.Event{
		ClientID:  payload.ClientID,
		Name:      strings.TrimSpace(payload.Name),
		Venue:     payload.Venue,
		StartDate: dateOnly(payload.StartDate),
		EndDate:   dateOnly(payload.EndDate),
		Status:    entities.EventDraft,
		Notes:     payload.Notes,
		CreatedBy: utils.ActorIDFromCtx(ctx),
	}
	if err := entities.ValidateDateRange(event.StartDate, event.EndDate); err != nil {
		return nil, apperrors.NewValidationError("%s", err.Error())
	}

	var created *entities.Event
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := ensureActiveClient(ctx, s.directoryRepo, tx, event.ClientID); err != nil {
			return err
		}
		id, err := s.eventRepo.Create(ctx, tx, event)
		if err != nil {
			return err
		}
		created, err = s.eventRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Мероприятие создано", zap.Uint64("id", created.ID), zap.String("name", created.Name))
	s.publisher.ActionLogged(ctx, actionCreated, entityEvent, created.ID, map[string]interface{}{
		"name":       created.Name,
		"start_date": created.StartDate.Format(entities.DateLayout),
		"end_date":   created.EndDate.Format(entities.DateLayout),
	})
	return created, nil
}

// UpdateEvent при смене дат заново проверяет пересечения всех подтверждённых и выданных броней.
func (s *EventService) UpdateEvent(ctx context.Context, id uint64, payload dto.UpdateEventDTO) (*entities.Event, error) {
	var updated *entities.Event
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "мероприятие %d не найдено", id)
		}
		if event.Status.IsClosed() {
			return apperrors.NewValidationError("мероприятие %s в статусе %s нельзя изменить", event.Label(), event.Status)
		}

		oldStart, oldEnd := event.StartDate, event.EndDate
		if payload.Name.Valid {
			event.Name = strings.TrimSpace(payload.Name.String)
		}
		if payload.Venue.Valid {
			event.Venue = &payload.Venue.String
		}
		if payload.StartDate.Valid {
			event.StartDate = dateOnly(payload.StartDate.Time)
		}
		if payload.EndDate.Valid {
			event.EndDate = dateOnly(payload.EndDate.Time)
		}
		if payload.Notes.Valid {
			event.Notes = &payload.Notes.String
		}
		if err := entities.ValidateDateRange(event.StartDate, event.EndDate); err != nil {
			return apperrors.NewValidationError("%s", err.Error())
		}

		if !event.StartDate.Equal(oldStart) || !event.EndDate.Equal(oldEnd) {
			if err := s.recheckBookings(ctx, tx, event); err != nil {
				return err
			}
		}

		if err := s.eventRepo.Update(ctx, tx, *event); err != nil {
			return err
		}
		updated, err = s.eventRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionUpdated, entityEvent, id, map[string]interface{}{
		"start_date": updated.StartDate.Format(entities.DateLayout),
		"end_date":   updated.EndDate.Format(entities.DateLayout),
	})
	return updated, nil
}

// recheckBookings блокирует оборудование держащих броней и ищет пересечения с новыми датами.
func (s *EventService) recheckBookings(ctx context.Context, tx pgx.Tx, event *entities.Event) error {
	bookings, err := s.bookingRepo.GetByEventID(ctx, tx, event.ID)
	if err != nil {
		return err
	}

	ids := make([]uint64, 0, len(bookings))
	for _, b := range bookings {
		if b.Status == entities.BookingConfirmed || b.Status == entities.BookingCheckedOut {
			ids = append(ids, b.EquipmentID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked, err := s.equipmentRepo.LockByIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	for _, equipmentID := range ids {
		conflicts, err := s.bookingRepo.FindConflicts(ctx, tx, equipmentID, event.StartDate, event.EndDate, event.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			name := ""
			if item, ok := locked[equipmentID]; ok {
				name = item.Name
			}
			return apperrors.NewConflictError(
				"новые даты пересекаются с бронью оборудования «%s» на мероприятие %s",
				name, conflicts[0].Label(),
			).With("equipment_id", equipmentID).With("conflicting_event_id", conflicts[0].EventID)
		}
	}
	return nil
}

// CancelEvent отменяет мероприятие вместе с ожидающими и подтверждёнными бронями.
// Пока оборудование на руках, отменить нельзя.
func (s *EventService) CancelEvent(ctx context.Context, id uint64) (*dto.CancelEventResultDTO, error) {
	result := &dto.CancelEventResultDTO{}
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "мероприятие %d не найдено", id)
		}
		if !event.Status.CanTransitionTo(entities.EventCancelled) {
			return apperrors.NewValidationError("мероприятие %s в статусе %s нельзя отменить", event.Label(), event.Status)
		}

		bookings, err := s.bookingRepo.GetByEventID(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			if b.Status == entities.BookingCheckedOut {
				return apperrors.NewValidationError(
					"нельзя отменить мероприятие %s: оборудование «%s» выдано и не возвращено",
					event.Label(), b.EquipmentName,
				).With("equipment_id", b.EquipmentID)
			}
		}

		result.CancelledBookings, err = s.bookingRepo.UpdateStatusByEvent(ctx, tx, id,
			[]entities.BookingStatus{entities.BookingPending, entities.BookingConfirmed}, entities.BookingCancelled)
		if err != nil {
			return err
		}
		if err := s.eventRepo.UpdateStatus(ctx, tx, id, entities.EventCancelled); err != nil {
			return err
		}
		result.Event, err = s.eventRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Мероприятие отменено", zap.Uint64("id", id), zap.Int64("cancelled_bookings", result.CancelledBookings))
	s.publisher.ActionLogged(ctx, actionCancelled, entityEvent, id, map[string]interface{}{
		"cancelled_bookings": result.CancelledBookings,
	})
	return result, nil
}

func (s *EventService) FindEvent(ctx context.Context, id uint64) (*entities.Event, error) {
	event, err := s.eventRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, wrapNotFound(err, "мероприятие %d не найдено", id)
	}
	return event, nil
}

func (s *EventService) GetEvents(ctx context.Context, filter types.Filter) ([]*entities.Event, uint64, error) {
	return s.eventRepo.GetAll(ctx, filter)
}

func (s *EventService) AssignStaff(ctx context.Context, eventID uint64, payload dto.AssignStaffDTO) (*entities.StaffAssignment, error) {
	assignment := entities.StaffAssignment{
		EventID: eventID,
		UserID:  payload.UserID,
		Role:    strings.TrimSpace(payload.Role),
		Notes:   payload.Notes,
	}

	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		event, err := s.eventRepo.FindByID(ctx, tx, eventID)
		if err != nil {
			return wrapNotFound(err, "мероприятие %d не найдено", eventID)
		}
		if event.Status.IsClosed() {
			return apperrors.NewValidationError("мероприятие %s в статусе %s, назначать сотрудников нельзя", event.Label(), event.Status)
		}

		user, err := s.directoryRepo.FindUser(ctx, tx, payload.UserID)
		if err != nil {
			return wrapNotFound(err, "сотрудник %d не найден", payload.UserID)
		}
		if !user.IsActive {
			return apperrors.NewValidationError("сотрудник «%s» неактивен", user.Fio).With("user_id", user.ID)
		}
		assignment.UserFio = user.Fio

		assignment.ID, err = s.staffRepo.Create(ctx, tx, assignment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionAssigned, entityStaff, assignment.ID, map[string]interface{}{
		"event_id": eventID,
		"user_id":  payload.UserID,
		"role":     assignment.Role,
	})
	return &assignment, nil
}

func (s *EventService) RemoveStaff(ctx context.Context, eventID, userID uint64) error {
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		err := s.staffRepo.Delete(ctx, tx, eventID, userID)
		return wrapNotFound(err, "сотрудник %d не назначен на мероприятие %d", userID, eventID)
	})
	if err != nil {
		return err
	}

	s.publisher.ActionLogged(ctx, actionUnassigned, entityStaff, 0, map[string]interface{}{
		"event_id": eventID,
		"user_id":  userID,
	})
	return nil
}

func (s *EventService) GetStaff(ctx context.Context, eventID uint64) ([]*entities.StaffAssignment, error) {
	if _, err := s.FindEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.staffRepo.GetByEventID(ctx, eventID)
}
