package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/pkg/config"
	"rental-system/pkg/utils"
)

const testActorID uint64 = 42

type testEnv struct {
	store *memStore
	cache *memCache
	pub   *recordingPublisher

	equipment    EquipmentServiceInterface
	categories   CategoryServiceInterface
	events       EventServiceInterface
	bookings     BookingServiceInterface
	maintenance  MaintenanceServiceInterface
	transactions TransactionServiceInterface
	quotes       QuoteServiceInterface
	invoices     InvoiceServiceInterface
	importer     EquipmentImportServiceInterface

	ctx context.Context
}

func testFinanceConfig() config.FinanceConfig {
	return config.FinanceConfig{
		DefaultTaxRate:    decimal.Zero,
		PaymentTermsDays:  30,
		QuoteValidityDays: 14,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	cache := newMemCache()
	pub := &recordingPublisher{}
	logger := zap.NewNop()
	tx := memTxManager{s: store}

	equipmentRepo := memEquipmentRepo{s: store}
	categoryRepo := memCategoryRepo{s: store}
	historyRepo := memHistoryRepo{s: store}
	eventRepo := memEventRepo{s: store}
	bookingRepo := memBookingRepo{s: store}
	directoryRepo := memDirectoryRepo{s: store}
	counterRepo := memCounterRepo{s: store}
	invoiceRepo := memInvoiceRepo{s: store}

	maintenance := NewMaintenanceService(memTicketRepo{s: store}, equipmentRepo, historyRepo, directoryRepo, tx, pub, logger)

	return &testEnv{
		store: store,
		cache: cache,
		pub:   pub,

		equipment:    NewEquipmentService(equipmentRepo, categoryRepo, historyRepo, bookingRepo, cache, tx, pub, time.Minute, logger),
		categories:   NewCategoryService(categoryRepo, equipmentRepo, tx, pub, logger),
		events:       NewEventService(eventRepo, bookingRepo, equipmentRepo, memStaffRepo{s: store}, directoryRepo, tx, pub, logger),
		bookings:     NewBookingService(bookingRepo, eventRepo, equipmentRepo, tx, pub, logger),
		maintenance:  maintenance,
		transactions: NewTransactionService(memTransactionLogRepo{s: store}, eventRepo, bookingRepo, equipmentRepo, historyRepo, maintenance, tx, pub, logger),
		quotes:       NewQuoteService(memQuoteRepo{s: store}, invoiceRepo, eventRepo, directoryRepo, counterRepo, tx, pub, testFinanceConfig(), logger),
		invoices:     NewInvoiceService(invoiceRepo, memPaymentRepo{s: store}, eventRepo, directoryRepo, counterRepo, tx, pub, testFinanceConfig(), logger),
		importer:     NewEquipmentImportService(equipmentRepo, categoryRepo, historyRepo, tx, pub, logger),

		ctx: utils.WithActor(context.Background(), testActorID),
	}
}

func day(s string) time.Time {
	t, err := time.Parse(entities.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func (e *testEnv) seedClient(active bool) uint64 {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	id := e.store.nextID()
	e.store.data.clients[id] = &entities.Client{ID: id, Name: "ООО Праздник", IsActive: active}
	return id
}

func (e *testEnv) seedUser(active bool) uint64 {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	id := e.store.nextID()
	e.store.data.users[id] = &entities.User{ID: id, Fio: "Иванов Иван", IsActive: active}
	return id
}

func (e *testEnv) createCategory(t *testing.T, name string) *entities.EquipmentCategory {
	t.Helper()
	c, err := e.categories.CreateCategory(e.ctx, dto.CategoryDTO{Name: name})
	require.NoError(t, err)
	return c
}

func (e *testEnv) createEquipment(t *testing.T, categoryID uint64, name string, quantity int) *entities.EquipmentItem {
	t.Helper()
	item, err := e.equipment.CreateEquipment(e.ctx, dto.CreateEquipmentDTO{
		Name:       name,
		CategoryID: categoryID,
		Quantity:   quantity,
		DailyRate:  decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) createEvent(t *testing.T, clientID uint64, name, start, end string) *entities.Event {
	t.Helper()
	ev, err := e.events.CreateEvent(e.ctx, dto.CreateEventDTO{
		ClientID:  clientID,
		Name:      name,
		StartDate: day(start),
		EndDate:   day(end),
	})
	require.NoError(t, err)
	return ev
}

func (e *testEnv) equipmentStatus(t *testing.T, id uint64) entities.EquipmentStatus {
	t.Helper()
	item, err := e.equipment.FindEquipment(e.ctx, id)
	require.NoError(t, err)
	return item.CurrentStatus
}

func (e *testEnv) eventStatus(t *testing.T, id uint64) entities.EventStatus {
	t.Helper()
	ev, err := e.events.FindEvent(e.ctx, id)
	require.NoError(t, err)
	return ev.Status
}

// bookAndConfirm - бронь одной позиции с подтверждением.
func (e *testEnv) bookAndConfirm(t *testing.T, eventID, equipmentID uint64, quantity int) *entities.EventEquipmentBooking {
	t.Helper()
	b, err := e.bookings.BookEquipment(e.ctx, eventID, dto.BookEquipmentDTO{EquipmentID: equipmentID, Quantity: quantity})
	require.NoError(t, err)
	_, err = e.bookings.ConfirmBookings(e.ctx, eventID)
	require.NoError(t, err)
	return b
}

// rentalFixture - клиент, категория, единица оборудования и мероприятие.
type rentalFixture struct {
	clientID uint64
	category *entities.EquipmentCategory
	item     *entities.EquipmentItem
	event    *entities.Event
}

func (e *testEnv) newRentalFixture(t *testing.T) rentalFixture {
	t.Helper()
	clientID := e.seedClient(true)
	category := e.createCategory(t, "Звук")
	item := e.createEquipment(t, category.ID, "Колонка JBL", 1)
	event := e.createEvent(t, clientID, "Свадьба", "2024-06-10", "2024-06-12")
	return rentalFixture{clientID: clientID, category: category, item: item, event: event}
}

// assertHistoryMatchesStatus: последняя запись журнала совпадает с текущим статусом.
func (e *testEnv) assertHistoryMatchesStatus(t *testing.T, equipmentID uint64) {
	t.Helper()
	history, err := e.equipment.GetStatusHistory(e.ctx, equipmentID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	require.Equal(t, e.equipmentStatus(t, equipmentID), history[0].NewStatus)
}
