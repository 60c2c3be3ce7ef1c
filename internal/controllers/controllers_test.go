package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/internal/services"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
	"rental-system/pkg/validation"
)

type fakeEquipmentService struct {
	services.EquipmentServiceInterface
	items map[uint64]*entities.EquipmentItem
	total uint64
}

func (f *fakeEquipmentService) FindEquipment(_ context.Context, id uint64) (*entities.EquipmentItem, error) {
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, apperrors.NewNotFoundError("Оборудование с ID %d не найдено", id)
}

func (f *fakeEquipmentService) GetEquipments(context.Context, types.Filter) ([]*entities.EquipmentItem, uint64, error) {
	list := make([]*entities.EquipmentItem, 0, len(f.items))
	for _, item := range f.items {
		list = append(list, item)
	}
	return list, f.total, nil
}

func (f *fakeEquipmentService) CreateEquipment(_ context.Context, payload dto.CreateEquipmentDTO) (*entities.EquipmentItem, error) {
	return &entities.EquipmentItem{ID: 1, Name: payload.Name, CategoryID: payload.CategoryID}, nil
}

func (f *fakeEquipmentService) SetStatus(_ context.Context, id uint64, payload dto.SetEquipmentStatusDTO) (*entities.EquipmentItem, error) {
	return &entities.EquipmentItem{ID: id, CurrentStatus: payload.Status}, nil
}

type fakeImportService struct {
	services.EquipmentImportServiceInterface
}

func (fakeImportService) ExportEquipment(context.Context, types.Filter) (*bytes.Buffer, error) {
	return bytes.NewBufferString("xlsx"), nil
}

type fakeBookingService struct {
	services.BookingServiceInterface
	lastQuery  dto.AvailabilityQueryDTO
	confirmErr error
	updated    *dto.UpdateBookingDTO
}

func (f *fakeBookingService) CheckAvailability(_ context.Context, equipmentID uint64, query dto.AvailabilityQueryDTO) (*dto.AvailabilityDTO, error) {
	f.lastQuery = query
	return &dto.AvailabilityDTO{EquipmentID: equipmentID, Available: true, Bookable: true}, nil
}

func (f *fakeBookingService) UpdateBooking(_ context.Context, id uint64, payload dto.UpdateBookingDTO) (*entities.EventEquipmentBooking, error) {
	f.updated = &payload
	return &entities.EventEquipmentBooking{ID: id, Quantity: 1, Status: entities.BookingPending}, nil
}

func (f *fakeBookingService) ConfirmBookings(context.Context, uint64) (*dto.ConfirmBookingsResultDTO, error) {
	return nil, f.confirmErr
}

type fakeTransactionService struct {
	services.TransactionServiceInterface
	asOf time.Time
}

func (f *fakeTransactionService) ListOverdueReturns(_ context.Context, asOf time.Time) ([]entities.OverdueReturn, error) {
	f.asOf = asOf
	return []entities.OverdueReturn{{EventID: 1, EquipmentID: 2}}, nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Body    json.RawMessage `json:"body"`
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	return e
}

func serve(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func newEquipmentEcho(svc *fakeEquipmentService, bookings *fakeBookingService) *echo.Echo {
	e := newTestEcho()
	ctrl := NewEquipmentController(svc, fakeImportService{}, bookings, zap.NewNop())
	e.GET("/equipment", ctrl.GetEquipments)
	e.GET("/equipment/export", ctrl.ExportEquipment)
	e.GET("/equipment/:id", ctrl.FindEquipment)
	e.POST("/equipment", ctrl.CreateEquipment)
	e.PUT("/equipment/:id/status", ctrl.SetStatus)
	e.GET("/equipment/:id/availability", ctrl.CheckAvailability)
	return e
}

func TestEquipmentController_FindEquipment(t *testing.T) {
	svc := &fakeEquipmentService{items: map[uint64]*entities.EquipmentItem{
		5: {ID: 5, Name: "Колонка JBL", CurrentStatus: entities.EquipmentAvailable, DailyRate: decimal.NewFromInt(1500)},
	}}
	e := newEquipmentEcho(svc, &fakeBookingService{})

	rec, env := serve(t, e, http.MethodGet, "/equipment/5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Status)
	var item entities.EquipmentItem
	require.NoError(t, json.Unmarshal(env.Body, &item))
	assert.Equal(t, "Колонка JBL", item.Name)

	rec, env = serve(t, e, http.MethodGet, "/equipment/77", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Status)
	assert.Contains(t, env.Message, "77")

	rec, _ = serve(t, e, http.MethodGet, "/equipment/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEquipmentController_ListIncludesPagination(t *testing.T) {
	svc := &fakeEquipmentService{items: map[uint64]*entities.EquipmentItem{
		1: {ID: 1, CurrentStatus: entities.EquipmentAvailable},
		2: {ID: 2, CurrentStatus: entities.EquipmentReserved},
	}, total: 3}
	e := newEquipmentEcho(svc, &fakeBookingService{})

	rec, env := serve(t, e, http.MethodGet, "/equipment?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		List       []entities.EquipmentItem `json:"list"`
		Pagination types.Pagination         `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Body, &body))
	assert.Len(t, body.List, 2)
	assert.Equal(t, uint64(3), body.Pagination.TotalCount)
	assert.Equal(t, 2, body.Pagination.TotalPages)
}

func TestEquipmentController_CreateValidation(t *testing.T) {
	e := newEquipmentEcho(&fakeEquipmentService{}, &fakeBookingService{})

	rec, env := serve(t, e, http.MethodPost, "/equipment", `{"category_id": 1, "daily_rate": "100"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "'name'")

	rec, env = serve(t, e, http.MethodPost, "/equipment", `{"name": "Пульт", "category_id": 1, "daily_rate": "100"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Status)
}

func TestEquipmentController_SetStatusRejectsUnknownStatus(t *testing.T) {
	e := newEquipmentEcho(&fakeEquipmentService{}, &fakeBookingService{})

	rec, _ := serve(t, e, http.MethodPut, "/equipment/3/status", `{"status": "BROKEN", "reason": "упала"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := serve(t, e, http.MethodPut, "/equipment/3/status", `{"status": "DAMAGED", "reason": "упала"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var item entities.EquipmentItem
	require.NoError(t, json.Unmarshal(env.Body, &item))
	assert.Equal(t, entities.EquipmentDamaged, item.CurrentStatus)
}

func TestEquipmentController_CheckAvailabilityParsesDates(t *testing.T) {
	bookings := &fakeBookingService{}
	e := newEquipmentEcho(&fakeEquipmentService{}, bookings)

	rec, _ := serve(t, e, http.MethodGet, "/equipment/4/availability?start_date=2024-06-10&end_date=2024-06-12T00:00:00Z&exclude_event_id=9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), bookings.lastQuery.StartDate)
	assert.Equal(t, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), bookings.lastQuery.EndDate)
	assert.Equal(t, uint64(9), bookings.lastQuery.ExcludeEventID)

	rec, _ = serve(t, e, http.MethodGet, "/equipment/4/availability?start_date=2024-06-10", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, e, http.MethodGet, "/equipment/4/availability?start_date=10.06.2024&end_date=2024-06-12", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEquipmentController_ExportSetsAttachmentHeaders(t *testing.T) {
	e := newEquipmentEcho(&fakeEquipmentService{}, &fakeBookingService{})

	rec, _ := serve(t, e, http.MethodGet, "/equipment/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=equipment_")
	assert.Equal(t, "xlsx", rec.Body.String())
}

func TestBookingController_DomainErrorsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"конфликт", apperrors.NewConflictError("Колонка JBL уже забронирована на «Свадьба»"), http.StatusConflict},
		{"валидация", apperrors.NewValidationError("Мероприятие отменено"), http.StatusBadRequest},
		{"не найдено", apperrors.NewNotFoundError("Мероприятие не найдено"), http.StatusNotFound},
		{"внутренняя", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEcho()
			ctrl := NewBookingController(&fakeBookingService{confirmErr: tc.err}, zap.NewNop())
			e.POST("/events/:id/bookings/confirm", ctrl.ConfirmBookings)

			rec, env := serve(t, e, http.MethodPost, "/events/1/bookings/confirm", "")
			assert.Equal(t, tc.code, rec.Code)
			assert.False(t, env.Status)
			if tc.code != http.StatusInternalServerError {
				assert.Equal(t, tc.err.Error(), env.Message)
			}
		})
	}
}

func TestTransactionController_OverdueAsOf(t *testing.T) {
	svc := &fakeTransactionService{}
	e := newTestEcho()
	ctrl := NewTransactionController(svc, zap.NewNop())
	e.GET("/transactions/overdue", ctrl.ListOverdueReturns)

	rec, _ := serve(t, e, http.MethodGet, "/transactions/overdue?as_of=2024-07-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), svc.asOf)

	before := time.Now().UTC()
	rec, _ = serve(t, e, http.MethodGet, "/transactions/overdue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.asOf.Before(before))
}

func TestBookingController_UpdateRejectsZeroQuantity(t *testing.T) {
	svc := &fakeBookingService{}
	e := newTestEcho()
	ctrl := NewBookingController(svc, zap.NewNop())
	e.PUT("/bookings/:id", ctrl.UpdateBooking)

	rec, env := serve(t, e, http.MethodPut, "/bookings/4", `{"quantity": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "'quantity'")
	assert.Nil(t, svc.updated, "сервис не должен вызываться")

	rec, _ = serve(t, e, http.MethodPut, "/bookings/4", `{"notes": "без пульта"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.updated)
	assert.Nil(t, svc.updated.Quantity)

	rec, _ = serve(t, e, http.MethodPut, "/bookings/4", `{"quantity": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, *svc.updated.Quantity)
}
