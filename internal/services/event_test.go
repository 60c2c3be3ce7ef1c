package services

import (
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
)

func TestCreateEvent_Validation(t *testing.T) {
	env := newTestEnv(t)
	clientID := env.seedClient(true)

	_, err := env.events.CreateEvent(env.ctx, dto.CreateEventDTO{
		ClientID: clientID, Name: "Наоборот", StartDate: day("2024-06-12"), EndDate: day("2024-06-10"),
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	inactive := env.seedClient(false)
	_, err = env.events.CreateEvent(env.ctx, dto.CreateEventDTO{
		ClientID: inactive, Name: "Архив", StartDate: day("2024-06-10"), EndDate: day("2024-06-12"),
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	ev := env.createEvent(t, clientID, "Юбилей", "2024-06-10", "2024-06-12")
	assert.Equal(t, entities.EventDraft, ev.Status)
	assert.Equal(t, testActorID, *ev.CreatedBy)
}

func TestUpdateEvent_DateShiftRechecksConfirmedBookings(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)
	env.bookAndConfirm(t, fx.event.ID, fx.item.ID, 1)

	later := env.createEvent(t, fx.clientID, "Выпускной", "2024-06-20", "2024-06-22")
	env.bookAndConfirm(t, later.ID, fx.item.ID, 1)

	_, err := env.events.UpdateEvent(env.ctx, later.ID, dto.UpdateEventDTO{StartDate: null.TimeFrom(day("2024-06-11"))})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "Свадьба")

	got, err := env.events.FindEvent(env.ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2024-06-20"), got.StartDate)

	moved, err := env.events.UpdateEvent(env.ctx, later.ID, dto.UpdateEventDTO{StartDate: null.TimeFrom(day("2024-06-13"))})
	require.NoError(t, err)
	assert.Equal(t, day("2024-06-13"), moved.StartDate)
}

func TestCancelEvent(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)
	second := env.createEquipment(t, fx.category.ID, "Стойка", 1)
	env.bookAndConfirm(t, fx.event.ID, fx.item.ID, 1)
	_, err := env.bookings.BookEquipment(env.ctx, fx.event.ID, dto.BookEquipmentDTO{EquipmentID: second.ID})
	require.NoError(t, err)

	res, err := env.events.CancelEvent(env.ctx, fx.event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.CancelledBookings)
	assert.Equal(t, entities.EventCancelled, res.Event.Status)

	bookings, err := env.bookings.GetEventBookings(env.ctx, fx.event.ID)
	require.NoError(t, err)
	for _, b := range bookings {
		assert.Equal(t, entities.BookingCancelled, b.Status)
	}

	_, err = env.events.CancelEvent(env.ctx, fx.event.ID)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	// отменённые брони больше не держат оборудование
	other := env.createEvent(t, fx.clientID, "Замена", "2024-06-10", "2024-06-12")
	env.bookAndConfirm(t, other.ID, fx.item.ID, 1)
}

func TestCancelEvent_CheckedOutEquipmentBlocks(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)
	env.bookAndConfirm(t, fx.event.ID, fx.item.ID, 1)
	env.checkOut(t, fx.event.ID, fx.item.ID)

	_, err := env.events.CancelEvent(env.ctx, fx.event.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, entities.EventInProgress, env.eventStatus(t, fx.event.ID))
}

func TestStaffAssignment(t *testing.T) {
	env := newTestEnv(t)
	fx := env.newRentalFixture(t)
	userID := env.seedUser(true)

	assignment, err := env.events.AssignStaff(env.ctx, fx.event.ID, dto.AssignStaffDTO{UserID: userID, Role: " Звукорежиссёр "})
	require.NoError(t, err)
	assert.Equal(t, "Звукорежиссёр", assignment.Role)
	assert.Equal(t, "Иванов Иван", assignment.UserFio)

	_, err = env.events.AssignStaff(env.ctx, fx.event.ID, dto.AssignStaffDTO{UserID: userID, Role: "Техник"})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = env.events.AssignStaff(env.ctx, fx.event.ID, dto.AssignStaffDTO{UserID: env.seedUser(false), Role: "Техник"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	staff, err := env.events.GetStaff(env.ctx, fx.event.ID)
	require.NoError(t, err)
	require.Len(t, staff, 1)

	require.NoError(t, env.events.RemoveStaff(env.ctx, fx.event.ID, userID))
	err = env.events.RemoveStaff(env.ctx, fx.event.ID, userID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
