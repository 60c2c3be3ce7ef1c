package services

import (
	"context"
	"fmt"
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

type MaintenanceServiceInterface interface {
	CreateTicket(ctx context.Context, payload dto.CreateTicketDTO) (*entities.MaintenanceTicket, error)
	// CreateTicketInTx открывает заявку в чужой транзакции. Оборудование должно быть уже заблокировано,
	// аудит публикует вызывающий после коммита.
	CreateTicketInTx(ctx context.Context, tx pgx.Tx, item *entities.EquipmentItem, ticket entities.MaintenanceTicket) (*entities.MaintenanceTicket, error)
	UpdateTicket(ctx context.Context, id uint64, payload dto.UpdateTicketDTO) (*entities.MaintenanceTicket, error)
	StartTicket(ctx context.Context, id uint64) (*entities.MaintenanceTicket, error)
	CompleteTicket(ctx context.Context, id uint64, payload dto.CompleteTicketDTO) (*entities.MaintenanceTicket, error)
	CancelTicket(ctx context.Context, id uint64, payload dto.CancelTicketDTO) (*entities.MaintenanceTicket, error)
	FindTicket(ctx context.Context, id uint64) (*entities.MaintenanceTicket, error)
	GetTickets(ctx context.Context, filter types.Filter) ([]*entities.MaintenanceTicket, uint64, error)
}

type MaintenanceService struct {
	ticketRepo    repositories.MaintenanceRepositoryInterface
	equipmentRepo repositories.EquipmentRepositoryInterface
	directoryRepo repositories.DirectoryRepositoryInterface
	txManager     repositories.TxManagerInterface
	publisher     PublisherInterface
	status        equipmentStatusRecorder
	logger        *zap.Logger
}

func NewMaintenanceService(
	ticketRepo repositories.MaintenanceRepositoryInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	historyRepo repositories.StatusHistoryRepositoryInterface,
	directoryRepo repositories.DirectoryRepositoryInterface,
	txManager repositories.TxManagerInterface,
	publisher PublisherInterface,
	logger *zap.Logger,
) MaintenanceServiceInterface {
	return &MaintenanceService{
		ticketRepo:    ticketRepo,
		equipmentRepo: equipmentRepo,
		directoryRepo: directoryRepo,
		txManager:     txManager,
		publisher:     publisher,
		status:        equipmentStatusRecorder{equipmentRepo: equipmentRepo, historyRepo: historyRepo},
		logger:        logger,
	}
}

func (s *MaintenanceService) ensureAssignee(ctx context.Context, tx pgx.Tx, userID *uint64) error {
	if userID == nil {
		return nil
	}
	user, err := s.directoryRepo.FindUser(ctx, tx, *userID)
	if err != nil {
		return wrapNotFound(err, "сотрудник %d не найден", *userID)
	}
	if !user.IsActive {
		return apperrors.NewValidationError("сотрудник «%s» неактивен", user.Fio).With("user_id", user.ID)
	}
	return nil
}

func (s *MaintenanceService) CreateTicket(ctx context.Context, payload dto.CreateTicketDTO) (*entities.MaintenanceTicket, error) {
	priority := payload.Priority
	if priority == "" {
		priority = entities.PriorityMedium
	}

	var ticket *entities.MaintenanceTicket
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		item, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, payload.EquipmentID)
		if err != nil {
			return wrapNotFound(err, "оборудование %d не найдено", payload.EquipmentID)
		}
		if item.CurrentStatus == entities.EquipmentInUse {
			return apperrors.NewValidationError(
				"оборудование «%s» выдано на мероприятие, заявку можно открыть после возврата", item.Name,
			).With("current_status", item.CurrentStatus)
		}
		if err := s.ensureAssignee(ctx, tx, payload.AssignedTo); err != nil {
			return err
		}

		ticket, err = s.CreateTicketInTx(ctx, tx, item, entities.MaintenanceTicket{
			Title:         strings.TrimSpace(payload.Title),
			ReportedIssue: strings.TrimSpace(payload.ReportedIssue),
			Priority:      priority,
			AssignedTo:    payload.AssignedTo,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionCreated, entityTicket, ticket.ID, map[string]interface{}{
		"equipment_id": ticket.EquipmentID,
		"priority":     ticket.Priority,
	})
	s.publisher.EquipmentStatusChanged(ctx, ticket.EquipmentID)
	return ticket, nil
}

// CreateTicketInTx переводит оборудование в UNDER_REPAIR, если оно ещё не DAMAGED/UNDER_REPAIR.
func (s *MaintenanceService) CreateTicketInTx(ctx context.Context, tx pgx.Tx, item *entities.EquipmentItem, ticket entities.MaintenanceTicket) (*entities.MaintenanceTicket, error) {
	ticket.EquipmentID = item.ID
	ticket.Status = entities.TicketOpen
	ticket.ReportedBy = utils.ActorIDFromCtx(ctx)

	id, err := s.ticketRepo.Create(ctx, tx, ticket)
	if err != nil {
		return nil, err
	}

	if item.CurrentStatus != entities.EquipmentDamaged && item.CurrentStatus != entities.EquipmentUnderRepair {
		reason := fmt.Sprintf("Заявка на ремонт #%d: %s", id, ticket.Title)
		if _, err := s.status.apply(ctx, tx, item, entities.EquipmentUnderRepair, reason); err != nil {
			return nil, err
		}
	}

	created, err := s.ticketRepo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Открыта заявка на ремонт",
		zap.Uint64("ticket_id", id),
		zap.Uint64("equipment_id", item.ID),
		zap.String("priority", string(created.Priority)),
	)
	return created, nil
}

// lockTicket блокирует оборудование раньше заявки, как и остальные операции над оборудованием.
func (s *MaintenanceService) lockTicket(ctx context.Context, tx pgx.Tx, id uint64) (*entities.MaintenanceTicket, *entities.EquipmentItem, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, nil, wrapNotFound(err, "заявка на ремонт %d не найдена", id)
	}
	item, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, ticket.EquipmentID)
	if err != nil {
		return nil, nil, wrapNotFound(err, "оборудование %d не найдено", ticket.EquipmentID)
	}
	ticket, err = s.ticketRepo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, nil, wrapNotFound(err, "заявка на ремонт %d не найдена", id)
	}
	return ticket, item, nil
}

func transitionError(ticket *entities.MaintenanceTicket, next entities.TicketStatus) error {
	return apperrors.NewValidationError(
		"заявку на ремонт #%d в статусе %s нельзя перевести в %s", ticket.ID, ticket.Status, next,
	).With("ticket_status", ticket.Status)
}

func (s *MaintenanceService) UpdateTicket(ctx context.Context, id uint64, payload dto.UpdateTicketDTO) (*entities.MaintenanceTicket, error) {
	var updated *entities.MaintenanceTicket
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		ticket, err := s.ticketRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "заявка на ремонт %d не найдена", id)
		}
		if ticket.Status.IsTerminal() {
			return apperrors.NewValidationError("заявка на ремонт #%d в статусе %s, изменения запрещены", ticket.ID, ticket.Status)
		}

		if payload.Title.Valid {
			ticket.Title = strings.TrimSpace(payload.Title.String)
		}
		if payload.ReportedIssue.Valid {
			ticket.ReportedIssue = strings.TrimSpace(payload.ReportedIssue.String)
		}
		if payload.Priority != "" {
			ticket.Priority = payload.Priority
		}
		if payload.AssignedTo.Valid {
			assignee := payload.AssignedTo.Uint64
			if err := s.ensureAssignee(ctx, tx, &assignee); err != nil {
				return err
			}
			ticket.AssignedTo = &assignee
		}
		if payload.RepairNotes.Valid {
			ticket.RepairNotes = &payload.RepairNotes.String
		}
		if payload.Cost.Valid {
			ticket.Cost = payload.Cost
		}

		if err := s.ticketRepo.Update(ctx, tx, *ticket); err != nil {
			return err
		}
		updated, err = s.ticketRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionUpdated, entityTicket, id, nil)
	return updated, nil
}

// StartTicket - переход в IN_PROGRESS. startedAt ставится только при выходе из OPEN.
func (s *MaintenanceService) StartTicket(ctx context.Context, id uint64) (*entities.MaintenanceTicket, error) {
	var started *entities.MaintenanceTicket
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		ticket, item, err := s.lockTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ticket.Status.CanTransitionTo(entities.TicketInProgress) {
			return transitionError(ticket, entities.TicketInProgress)
		}
		if item.CurrentStatus == entities.EquipmentInUse {
			return apperrors.NewValidationError("оборудование «%s» выдано на мероприятие, ремонт начать нельзя", item.Name)
		}

		if ticket.Status == entities.TicketOpen && ticket.StartedAt == nil {
			now := timeNow()
			ticket.StartedAt = &now
		}
		ticket.Status = entities.TicketInProgress

		reason := fmt.Sprintf("Начат ремонт по заявке #%d", ticket.ID)
		if _, err := s.status.apply(ctx, tx, item, entities.EquipmentUnderRepair, reason); err != nil {
			return err
		}
		if err := s.ticketRepo.Update(ctx, tx, *ticket); err != nil {
			return err
		}
		started, err = s.ticketRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionStarted, entityTicket, id, nil)
	s.publisher.EquipmentStatusChanged(ctx, started.EquipmentID)
	return started, nil
}

// CompleteTicket закрывает заявку. По умолчанию оборудование возвращается в AVAILABLE.
func (s *MaintenanceService) CompleteTicket(ctx context.Context, id uint64, payload dto.CompleteTicketDTO) (*entities.MaintenanceTicket, error) {
	setAvailable := true
	if payload.SetAvailable != nil {
		setAvailable = *payload.SetAvailable
	}

	var completed *entities.MaintenanceTicket
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		ticket, item, err := s.lockTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ticket.Status.CanTransitionTo(entities.TicketCompleted) {
			return transitionError(ticket, entities.TicketCompleted)
		}
		if item.CurrentStatus == entities.EquipmentInUse {
			return apperrors.NewValidationError("оборудование «%s» выдано на мероприятие, заявку закрыть нельзя", item.Name)
		}

		now := timeNow()
		ticket.Status = entities.TicketCompleted
		ticket.CompletedAt = &now
		if payload.RepairNotes != nil {
			ticket.RepairNotes = payload.RepairNotes
		}
		if payload.Cost.Valid {
			ticket.Cost = payload.Cost
		}

		next := entities.EquipmentUnderRepair
		reason := fmt.Sprintf("Заявка #%d закрыта, оборудование остаётся в ремонте", ticket.ID)
		if setAvailable {
			ticket.ReturnToServiceAt = &now
			next = entities.EquipmentAvailable
			reason = fmt.Sprintf("Ремонт завершён (заявка #%d)", ticket.ID)
		}
		if _, err := s.status.apply(ctx, tx, item, next, reason); err != nil {
			return err
		}

		if err := s.ticketRepo.Update(ctx, tx, *ticket); err != nil {
			return err
		}
		completed, err = s.ticketRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Заявка на ремонт закрыта", zap.Uint64("ticket_id", id), zap.Bool("set_available", setAvailable))
	s.publisher.ActionLogged(ctx, actionCompleted, entityTicket, id, map[string]interface{}{"set_available": setAvailable})
	s.publisher.EquipmentStatusChanged(ctx, completed.EquipmentID)
	return completed, nil
}

// CancelTicket не трогает статус оборудования: что делать с ним дальше, решают вручную.
func (s *MaintenanceService) CancelTicket(ctx context.Context, id uint64, payload dto.CancelTicketDTO) (*entities.MaintenanceTicket, error) {
	var cancelled *entities.MaintenanceTicket
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		ticket, err := s.ticketRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "заявка на ремонт %d не найдена", id)
		}
		if !ticket.Status.CanTransitionTo(entities.TicketCancelled) {
			return transitionError(ticket, entities.TicketCancelled)
		}

		ticket.Status = entities.TicketCancelled
		if reason := utils.TrimmedOrNil(payload.Reason); reason != nil {
			notes := "Отменена: " + *reason
			if ticket.RepairNotes != nil && *ticket.RepairNotes != "" {
				notes = *ticket.RepairNotes + "\n" + notes
			}
			ticket.RepairNotes = &notes
		}

		if err := s.ticketRepo.Update(ctx, tx, *ticket); err != nil {
			return err
		}
		cancelled, err = s.ticketRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionCancelled, entityTicket, id, nil)
	return cancelled, nil
}

func (s *MaintenanceService) FindTicket(ctx context.Context, id uint64) (*entities.MaintenanceTicket, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, wrapNotFound(err, "заявка на ремонт %d не найдена", id)
	}
	return ticket, nil
}

func (s *MaintenanceService) GetTickets(ctx context.Context, filter types.Filter) ([]*entities.MaintenanceTicket, uint64, error) {
	return s.ticketRepo.GetAll(ctx, filter)
}
