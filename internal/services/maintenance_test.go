package services

import (
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/utils"
)

func TestMaintenanceTicket_FullCycle(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)

	ticket, err := env.maintenance.CreateTicket(env.ctx, dto.CreateTicketDTO{
		EquipmentID:   fx.item.ID,
		Title:         "Хрипит динамик",
		ReportedIssue: "на высокой громкости",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.TicketOpen, ticket.Status)
	assert.Equal(t, entities.PriorityMedium, ticket.Priority)
	assert.Equal(t, testActorID, utils.SafeDeref(ticket.ReportedBy))
	assert.Equal(t, entities.EquipmentUnderRepair, env.equipmentStatus(t, fx.item.ID))

	started, err := env.maintenance.StartTicket(env.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TicketInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	completed, err := env.maintenance.CompleteTicket(env.ctx, ticket.ID, dto.CompleteTicketDTO{
		RepairNotes: utils.ToPtr("заменён динамик"),
		Cost:        decimal.NewNullDecimal(decimal.NewFromInt(3500)),
	})
	require.NoError(t, err)
	assert.Equal(t, entities.TicketCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.NotNil(t, completed.ReturnToServiceAt)
	assert.True(t, completed.Cost.Decimal.Equal(decimal.NewFromInt(3500)))
	assert.Equal(t, entities.EquipmentAvailable, env.equipmentStatus(t, fx.item.ID))
	env.assertHistoryMatchesStatus(t, fx.item.ID)

	_, err = env.maintenance.StartTicket(env.ctx, ticket.ID)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	_, err = env.maintenance.UpdateTicket(env.ctx, ticket.ID, dto.UpdateTicketDTO{Title: null.StringFrom("другое")})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCompleteTicket_KeepUnderRepair(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)
	ticket, err := env.maintenance.CreateTicket(env.ctx, dto.CreateTicketDTO{
		EquipmentID: fx.item.ID, Title: "Диагностика", ReportedIssue: "шум", Priority: entities.PriorityLow,
	})
	require.NoError(t, err)
	_, err = env.maintenance.StartTicket(env.ctx, ticket.ID)
	require.NoError(t, err)

	completed, err := env.maintenance.CompleteTicket(env.ctx, ticket.ID, dto.CompleteTicketDTO{SetAvailable: utils.ToPtr(false)})
	require.NoError(t, err)
	assert.Nil(t, completed.ReturnToServiceAt)
	assert.Equal(t, entities.EquipmentUnderRepair, env.equipmentStatus(t, fx.item.ID))
}

func TestCompleteTicket_RequiresStart(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)
	ticket, err := env.maintenance.CreateTicket(env.ctx, dto.CreateTicketDTO{
		EquipmentID: fx.item.ID, Title: "Замена кабеля", ReportedIssue: "обрыв",
	})
	require.NoError(t, err)

	_, err = env.maintenance.CompleteTicket(env.ctx, ticket.ID, dto.CompleteTicketDTO{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	stored, err := env.maintenance.FindTicket(env.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TicketOpen, stored.Status)
	assert.Nil(t, stored.CompletedAt)
	assert.Equal(t, entities.EquipmentUnderRepair, env.equipmentStatus(t, fx.item.ID))
}

func TestCancelTicket_LeavesEquipmentStatus(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)
	ticket, err := env.maintenance.CreateTicket(env.ctx, dto.CreateTicketDTO{
		EquipmentID: fx.item.ID, Title: "Проверка", ReportedIssue: "ложная тревога",
	})
	require.NoError(t, err)

	cancelled, err := env.maintenance.CancelTicket(env.ctx, ticket.ID, dto.CancelTicketDTO{Reason: utils.ToPtr("ошибка")})
	require.NoError(t, err)
	assert.Equal(t, entities.TicketCancelled, cancelled.Status)
	assert.Equal(t, entities.EquipmentUnderRepair, env.equipmentStatus(t, fx.item.ID))

	_, err = env.maintenance.CompleteTicket(env.ctx, ticket.ID, dto.CompleteTicketDTO{})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCreateTicket_Rejections(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)

	_, err := env.maintenance.CreateTicket(env.ctx, dto.CreateTicketDTO{EquipmentID: 9999, Title: "x", ReportedIssue: "y"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	inactive := env.seedUser(false)
	_, err = env.maintenance.CreateTicket(env.ctx, dto.CreateTicketDTO{
		EquipmentID: fx.item.ID, Title: "x", ReportedIssue: "y", AssignedTo: &inactive,
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, entities.EquipmentAvailable, env.equipmentStatus(t, fx.item.ID))

	env.bookAndConfirm(t, fx.event.ID, fx.item.ID, 1)
	env.checkOut(t, fx.event.ID, fx.item.ID)
	_, err = env.maintenance.CreateTicket(env.ctx, dto.CreateTicketDTO{EquipmentID: fx.item.ID, Title: "x", ReportedIssue: "y"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Empty(t, env.store.data.tickets)
}
