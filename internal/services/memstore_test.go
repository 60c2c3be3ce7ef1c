package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"rental-system/internal/entities"
	"rental-system/internal/repositories"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
)

// memStore - хранилище в памяти с семантикой репозиториев Postgres.
// Транзакции выполняются по одной, откат восстанавливает снимок данных.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data memData
}

type memData struct {
	seq        uint64
	categories map[uint64]*entities.EquipmentCategory
	equipment  map[uint64]*entities.EquipmentItem
	history    []entities.EquipmentStatusHistory
	events     map[uint64]*entities.Event
	bookings   map[uint64]*entities.EventEquipmentBooking
	staff      []entities.StaffAssignment
	clients    map[uint64]*entities.Client
	users      map[uint64]*entities.User
	checkOuts  []*entities.CheckOutTransaction
	checkIns   []*entities.CheckInTransaction
	tickets    map[uint64]*entities.MaintenanceTicket
	quotes     map[uint64]*entities.Quote
	invoices   map[uint64]*entities.Invoice
	payments   map[uint64]*entities.Payment
	counters   map[string]int
}

func newMemStore() *memStore {
	return &memStore{data: memData{
		categories: make(map[uint64]*entities.EquipmentCategory),
		equipment:  make(map[uint64]*entities.EquipmentItem),
		events:     make(map[uint64]*entities.Event),
		bookings:   make(map[uint64]*entities.EventEquipmentBooking),
		clients:    make(map[uint64]*entities.Client),
		users:      make(map[uint64]*entities.User),
		tickets:    make(map[uint64]*entities.MaintenanceTicket),
		quotes:     make(map[uint64]*entities.Quote),
		invoices:   make(map[uint64]*entities.Invoice),
		payments:   make(map[uint64]*entities.Payment),
		counters:   make(map[string]int),
	}}
}

func cloneMap[T any](m map[uint64]*T) map[uint64]*T {
	out := make(map[uint64]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

func (d memData) clone() memData {
	c := d
	c.categories = cloneMap(d.categories)
	c.equipment = cloneMap(d.equipment)
	c.history = append([]entities.EquipmentStatusHistory(nil), d.history...)
	c.events = cloneMap(d.events)
	c.bookings = cloneMap(d.bookings)
	c.staff = append([]entities.StaffAssignment(nil), d.staff...)
	c.clients = cloneMap(d.clients)
	c.users = cloneMap(d.users)
	c.checkOuts = append([]*entities.CheckOutTransaction(nil), d.checkOuts...)
	c.checkIns = append([]*entities.CheckInTransaction(nil), d.checkIns...)
	c.tickets = cloneMap(d.tickets)
	c.quotes = cloneMap(d.quotes)
	c.invoices = cloneMap(d.invoices)
	c.payments = cloneMap(d.payments)
	c.counters = make(map[string]int, len(d.counters))
	for k, v := range d.counters {
		c.counters[k] = v
	}
	return c
}

// nextID вызывается под s.mu.
func (s *memStore) nextID() uint64 {
	s.data.seq++
	return s.data.seq
}

func sortedValues[T any](m map[uint64]*T, keep func(*T) bool) []*T {
	ids := make([]uint64, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyOf(m[id]))
	}
	return out
}

type memTxManager struct{ s *memStore }

func (m memTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	m.s.mu.Lock()
	snapshot := m.s.data.clone()
	m.s.mu.Unlock()

	if err := fn(nil); err != nil {
		m.s.mu.Lock()
		m.s.data = snapshot
		m.s.mu.Unlock()
		return err
	}
	return nil
}

// ---- справочники ----

type memDirectoryRepo struct{ s *memStore }

func (r memDirectoryRepo) FindClient(_ context.Context, _ pgx.Tx, id uint64) (*entities.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.data.clients[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyOf(c), nil
}

func (r memDirectoryRepo) FindUser(_ context.Context, _ pgx.Tx, id uint64) (*entities.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyOf(u), nil
}

// ---- оборудование ----

type memCategoryRepo struct{ s *memStore }

func (r memCategoryRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.EquipmentCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.data.categories[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyOf(c), nil
}

func (r memCategoryRepo) FindByName(_ context.Context, _ pgx.Tx, name string) (*entities.EquipmentCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.data.categories {
		if c.Name == name {
			return copyOf(c), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memCategoryRepo) GetAll(_ context.Context) ([]*entities.EquipmentCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := sortedValues(r.s.data.categories, nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memCategoryRepo) nameTaken(name string, exceptID uint64) bool {
	for id, c := range r.s.data.categories {
		if id != exceptID && c.Name == name {
			return true
		}
	}
	return false
}

func (r memCategoryRepo) Create(_ context.Context, _ pgx.Tx, c entities.EquipmentCategory) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.nameTaken(c.Name, 0) {
		return 0, apperrors.NewConflictError("категория «%s» уже существует", c.Name)
	}
	c.ID = r.s.nextID()
	c.CreatedAt = time.Now()
	r.s.data.categories[c.ID] = &c
	return c.ID, nil
}

func (r memCategoryRepo) Update(_ context.Context, _ pgx.Tx, c entities.EquipmentCategory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.categories[c.ID]; !ok {
		return apperrors.ErrNotFound
	}
	if r.nameTaken(c.Name, c.ID) {
		return apperrors.NewConflictError("категория «%s» уже существует", c.Name)
	}
	r.s.data.categories[c.ID] = &c
	return nil
}

func (r memCategoryRepo) Delete(_ context.Context, _ pgx.Tx, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.categories[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.data.categories, id)
	return nil
}

type memEquipmentRepo struct{ s *memStore }

func (r memEquipmentRepo) view(item *entities.EquipmentItem) *entities.EquipmentItem {
	c := copyOf(item)
	if cat, ok := r.s.data.categories[c.CategoryID]; ok {
		c.CategoryName = cat.Name
	}
	return c
}

func (r memEquipmentRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.EquipmentItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.data.equipment[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r.view(item), nil
}

func (r memEquipmentRepo) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EquipmentItem, error) {
	return r.FindByID(ctx, tx, id)
}

func (r memEquipmentRepo) LockByIDs(_ context.Context, _ pgx.Tx, ids []uint64) (map[uint64]*entities.EquipmentItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[uint64]*entities.EquipmentItem, len(ids))
	for _, id := range ids {
		if item, ok := r.s.data.equipment[id]; ok {
			out[id] = r.view(item)
		}
	}
	return out, nil
}

func (r memEquipmentRepo) FindBySerialNumber(_ context.Context, _ pgx.Tx, serial string) (*entities.EquipmentItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range r.s.data.equipment {
		if item.SerialNumber != nil && *item.SerialNumber == serial {
			return r.view(item), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memEquipmentRepo) GetAll(_ context.Context, filter types.Filter) ([]*entities.EquipmentItem, uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	status, _ := filter.Filter["current_status"].(string)
	items := sortedValues(r.s.data.equipment, func(e *entities.EquipmentItem) bool {
		if status != "" && string(e.CurrentStatus) != status {
			return false
		}
		return filter.Search == "" || strings.Contains(strings.ToLower(e.Name), strings.ToLower(filter.Search))
	})
	for i, item := range items {
		items[i] = r.view(item)
	}
	return items, uint64(len(items)), nil
}

func (r memEquipmentRepo) checkUnique(item entities.EquipmentItem) error {
	for id, other := range r.s.data.equipment {
		if id == item.ID {
			continue
		}
		if item.SerialNumber != nil && other.SerialNumber != nil && *item.SerialNumber == *other.SerialNumber {
			return apperrors.NewConflictError("оборудование с серийным номером %s уже существует", *item.SerialNumber)
		}
		if item.Barcode != nil && other.Barcode != nil && *item.Barcode == *other.Barcode {
			return apperrors.NewConflictError("оборудование со штрихкодом %s уже существует", *item.Barcode)
		}
	}
	if _, ok := r.s.data.categories[item.CategoryID]; !ok {
		return apperrors.NewValidationError("категория %d не существует", item.CategoryID)
	}
	return nil
}

func (r memEquipmentRepo) Create(_ context.Context, _ pgx.Tx, item entities.EquipmentItem) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item.ID = 0
	if err := r.checkUnique(item); err != nil {
		return 0, err
	}
	item.ID = r.s.nextID()
	item.CreatedAt = time.Now()
	item.CategoryName = ""
	r.s.data.equipment[item.ID] = &item
	return item.ID, nil
}

func (r memEquipmentRepo) Update(_ context.Context, _ pgx.Tx, item entities.EquipmentItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.equipment[item.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if err := r.checkUnique(item); err != nil {
		return err
	}
	item.CurrentStatus = stored.CurrentStatus
	item.CreatedAt = stored.CreatedAt
	item.CategoryName = ""
	r.s.data.equipment[item.ID] = &item
	return nil
}

func (r memEquipmentRepo) UpdateStatus(_ context.Context, _ pgx.Tx, id uint64, status entities.EquipmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.data.equipment[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	item.CurrentStatus = status
	return nil
}

func (r memEquipmentRepo) Delete(_ context.Context, _ pgx.Tx, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.equipment[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.data.equipment, id)
	return nil
}

func (r memEquipmentRepo) CountByCategory(_ context.Context, _ pgx.Tx, categoryID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, item := range r.s.data.equipment {
		if item.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (r memEquipmentRepo) CountByStatus(_ context.Context) ([]entities.StatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[entities.EquipmentStatus]int64)
	for _, item := range r.s.data.equipment {
		counts[item.CurrentStatus]++
	}
	out := make([]entities.StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, entities.StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

type memHistoryRepo struct{ s *memStore }

func (r memHistoryRepo) Create(_ context.Context, _ pgx.Tx, h entities.EquipmentStatusHistory) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = r.s.nextID()
	h.CreatedAt = time.Now()
	r.s.data.history = append(r.s.data.history, h)
	return h.ID, nil
}

func (r memHistoryRepo) GetByEquipmentID(_ context.Context, equipmentID uint64) ([]*entities.EquipmentStatusHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*entities.EquipmentStatusHistory, 0)
	for i := len(r.s.data.history) - 1; i >= 0; i-- {
		if r.s.data.history[i].EquipmentID == equipmentID {
			out = append(out, copyOf(&r.s.data.history[i]))
		}
	}
	return out, nil
}

func (r memHistoryRepo) FindLatest(ctx context.Context, _ pgx.Tx, equipmentID uint64) (*entities.EquipmentStatusHistory, error) {
	rows, _ := r.GetByEquipmentID(ctx, equipmentID)
	if len(rows) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return rows[0], nil
}

// ---- мероприятия и брони ----

type memEventRepo struct{ s *memStore }

func (r memEventRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.data.events[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyOf(e), nil
}

func (r memEventRepo) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Event, error) {
	return r.FindByID(ctx, tx, id)
}

func (r memEventRepo) GetAll(_ context.Context, _ types.Filter) ([]*entities.Event, uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := sortedValues(r.s.data.events, nil)
	return out, uint64(len(out)), nil
}

func (r memEventRepo) Create(_ context.Context, _ pgx.Tx, e entities.Event) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.clients[e.ClientID]; !ok {
		return 0, apperrors.NewValidationError("клиент %d не существует", e.ClientID)
	}
	e.ID = r.s.nextID()
	e.CreatedAt = time.Now()
	r.s.data.events[e.ID] = &e
	return e.ID, nil
}

func (r memEventRepo) Update(_ context.Context, _ pgx.Tx, e entities.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.events[e.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	e.Status = stored.Status
	e.CreatedAt = stored.CreatedAt
	r.s.data.events[e.ID] = &e
	return nil
}

func (r memEventRepo) UpdateStatus(_ context.Context, _ pgx.Tx, id uint64, status entities.EventStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.data.events[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	e.Status = status
	return nil
}

type memStaffRepo struct{ s *memStore }

func (r memStaffRepo) Create(_ context.Context, _ pgx.Tx, a entities.StaffAssignment) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.staff {
		if existing.EventID == a.EventID && existing.UserID == a.UserID {
			return 0, apperrors.NewConflictError("сотрудник %d уже назначен на мероприятие", a.UserID)
		}
	}
	a.ID = r.s.nextID()
	a.CreatedAt = time.Now()
	r.s.data.staff = append(r.s.data.staff, a)
	return a.ID, nil
}

func (r memStaffRepo) Delete(_ context.Context, _ pgx.Tx, eventID, userID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, a := range r.s.data.staff {
		if a.EventID == eventID && a.UserID == userID {
			r.s.data.staff = append(r.s.data.staff[:i:i], r.s.data.staff[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r memStaffRepo) GetByEventID(_ context.Context, eventID uint64) ([]*entities.StaffAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*entities.StaffAssignment, 0)
	for i := range r.s.data.staff {
		if r.s.data.staff[i].EventID == eventID {
			a := copyOf(&r.s.data.staff[i])
			if u, ok := r.s.data.users[a.UserID]; ok {
				a.UserFio = u.Fio
			}
			out = append(out, a)
		}
	}
	return out, nil
}

type memBookingRepo struct{ s *memStore }

func (r memBookingRepo) view(b *entities.EventEquipmentBooking) *entities.EventEquipmentBooking {
	c := copyOf(b)
	if item, ok := r.s.data.equipment[c.EquipmentID]; ok {
		c.EquipmentName = item.Name
	}
	return c
}

func (r memBookingRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.EventEquipmentBooking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.data.bookings[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r.view(b), nil
}

func (r memBookingRepo) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EventEquipmentBooking, error) {
	return r.FindByID(ctx, tx, id)
}

func (r memBookingRepo) FindByEventAndEquipment(_ context.Context, _ pgx.Tx, eventID, equipmentID uint64) (*entities.EventEquipmentBooking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.data.bookings {
		if b.EventID == eventID && b.EquipmentID == equipmentID {
			return r.view(b), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memBookingRepo) GetByEventID(_ context.Context, _ pgx.Tx, eventID uint64) ([]*entities.EventEquipmentBooking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := sortedValues(r.s.data.bookings, func(b *entities.EventEquipmentBooking) bool { return b.EventID == eventID })
	for i, b := range out {
		out[i] = r.view(b)
	}
	return out, nil
}

func isBlocking(status entities.BookingStatus) bool {
	for _, s := range entities.BlockingBookingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r memBookingRepo) FindConflicts(_ context.Context, _ pgx.Tx, equipmentID uint64, start, end time.Time, excludeEventID uint64) ([]entities.BookingConflict, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conflicts := make([]entities.BookingConflict, 0)
	for _, b := range sortedValues(r.s.data.bookings, nil) {
		if b.EquipmentID != equipmentID || !isBlocking(b.Status) || (excludeEventID != 0 && b.EventID == excludeEventID) {
			continue
		}
		ev := r.s.data.events[b.EventID]
		if !entities.Overlaps(start, end, ev.StartDate, ev.EndDate) {
			continue
		}
		conflicts = append(conflicts, entities.BookingConflict{
			BookingID:      b.ID,
			EventID:        ev.ID,
			EventName:      ev.Name,
			EventStartDate: ev.StartDate,
			EventEndDate:   ev.EndDate,
			Status:         b.Status,
		})
	}
	return conflicts, nil
}

func (r memBookingRepo) Create(_ context.Context, _ pgx.Tx, b entities.EventEquipmentBooking) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.data.bookings {
		if other.EventID == b.EventID && other.EquipmentID == b.EquipmentID {
			return 0, apperrors.NewConflictError("оборудование %d уже забронировано на это мероприятие", b.EquipmentID)
		}
	}
	b.ID = r.s.nextID()
	b.CreatedAt = time.Now()
	b.EquipmentName = ""
	r.s.data.bookings[b.ID] = &b
	return b.ID, nil
}

func (r memBookingRepo) Update(_ context.Context, _ pgx.Tx, b entities.EventEquipmentBooking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.bookings[b.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.Quantity = b.Quantity
	stored.Notes = b.Notes
	return nil
}

func (r memBookingRepo) UpdateStatus(_ context.Context, _ pgx.Tx, id uint64, status entities.BookingStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.data.bookings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	b.Status = status
	return nil
}

func (r memBookingRepo) UpdateStatusByEvent(_ context.Context, _ pgx.Tx, eventID uint64, from []entities.BookingStatus, to entities.BookingStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, b := range r.s.data.bookings {
		if b.EventID != eventID {
			continue
		}
		for _, s := range from {
			if b.Status == s {
				b.Status = to
				n++
				break
			}
		}
	}
	return n, nil
}

func (r memBookingRepo) Delete(_ context.Context, _ pgx.Tx, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.bookings[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.data.bookings, id)
	return nil
}

func (r memBookingRepo) CountActiveByEquipment(_ context.Context, _ pgx.Tx, equipmentID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, b := range r.s.data.bookings {
		if b.EquipmentID != equipmentID {
			continue
		}
		for _, s := range entities.ActiveBookingStatuses {
			if b.Status == s {
				n++
			}
		}
	}
	return n, nil
}

func (r memBookingRepo) MaxActiveQuantityByEquipment(_ context.Context, _ pgx.Tx, equipmentID uint64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	maxQty := 0
	for _, b := range r.s.data.bookings {
		if b.EquipmentID != equipmentID || b.Quantity <= maxQty {
			continue
		}
		for _, s := range entities.ActiveBookingStatuses {
			if b.Status == s {
				maxQty = b.Quantity
				break
			}
		}
	}
	return maxQty, nil
}

func (r memBookingRepo) CountUnsettledByEvent(_ context.Context, _ pgx.Tx, eventID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, b := range r.s.data.bookings {
		if b.EventID == eventID && !b.Status.IsSettled() {
			n++
		}
	}
	return n, nil
}

func (r memBookingRepo) ListOverdue(_ context.Context, asOf time.Time) ([]entities.OverdueReturn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entities.OverdueReturn, 0)
	for _, b := range sortedValues(r.s.data.bookings, nil) {
		ev := r.s.data.events[b.EventID]
		if b.Status != entities.BookingCheckedOut || !ev.EndDate.Before(asOf) {
			continue
		}
		out = append(out, entities.OverdueReturn{
			EventID:       ev.ID,
			EventName:     ev.Name,
			EventEndDate:  ev.EndDate,
			EquipmentID:   b.EquipmentID,
			EquipmentName: r.s.data.equipment[b.EquipmentID].Name,
			BookingID:     b.ID,
		})
	}
	return out, nil
}

// ---- выдача и возврат ----

type memTransactionLogRepo struct{ s *memStore }

func (r memTransactionLogRepo) CreateCheckOut(_ context.Context, _ pgx.Tx, t *entities.CheckOutTransaction) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.nextID()
	t.CreatedAt = time.Now()
	for i := range t.Items {
		t.Items[i].ID = r.s.nextID()
		t.Items[i].TransactionID = t.ID
	}
	stored := copyOf(t)
	stored.Items = append([]entities.CheckOutItem(nil), t.Items...)
	r.s.data.checkOuts = append(r.s.data.checkOuts, stored)
	return t.ID, nil
}

func (r memTransactionLogRepo) CreateCheckIn(_ context.Context, _ pgx.Tx, t *entities.CheckInTransaction) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.nextID()
	t.CreatedAt = time.Now()
	for i := range t.Items {
		t.Items[i].ID = r.s.nextID()
		t.Items[i].TransactionID = t.ID
	}
	stored := copyOf(t)
	stored.Items = append([]entities.CheckInItem(nil), t.Items...)
	r.s.data.checkIns = append(r.s.data.checkIns, stored)
	return t.ID, nil
}

func (r memTransactionLogRepo) CheckedOutEquipmentIDs(_ context.Context, _ pgx.Tx, eventID uint64) (map[uint64]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make(map[uint64]bool)
	for _, t := range r.s.data.checkOuts {
		if t.EventID != eventID {
			continue
		}
		for _, it := range t.Items {
			ids[it.EquipmentID] = true
		}
	}
	return ids, nil
}

func (r memTransactionLogRepo) GetCheckOutsByEvent(_ context.Context, eventID uint64) ([]*entities.CheckOutTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*entities.CheckOutTransaction, 0)
	for _, t := range r.s.data.checkOuts {
		if t.EventID == eventID {
			out = append(out, copyOf(t))
		}
	}
	return out, nil
}

func (r memTransactionLogRepo) GetCheckInsByEvent(_ context.Context, eventID uint64) ([]*entities.CheckInTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*entities.CheckInTransaction, 0)
	for _, t := range r.s.data.checkIns {
		if t.EventID == eventID {
			out = append(out, copyOf(t))
		}
	}
	return out, nil
}

// ---- обслуживание ----

type memTicketRepo struct{ s *memStore }

func (r memTicketRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.MaintenanceTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.tickets[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyOf(t), nil
}

func (r memTicketRepo) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.MaintenanceTicket, error) {
	return r.FindByID(ctx, tx, id)
}

func (r memTicketRepo) GetAll(_ context.Context, filter types.Filter) ([]*entities.MaintenanceTicket, uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	equipmentID, _ := filter.Filter["equipment_id"].(uint64)
	out := sortedValues(r.s.data.tickets, func(t *entities.MaintenanceTicket) bool {
		return equipmentID == 0 || t.EquipmentID == equipmentID
	})
	return out, uint64(len(out)), nil
}

func (r memTicketRepo) Create(_ context.Context, _ pgx.Tx, t entities.MaintenanceTicket) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.equipment[t.EquipmentID]; !ok {
		return 0, apperrors.NewValidationError("оборудование %d не существует", t.EquipmentID)
	}
	t.ID = r.s.nextID()
	t.CreatedAt = time.Now()
	r.s.data.tickets[t.ID] = &t
	return t.ID, nil
}

func (r memTicketRepo) Update(_ context.Context, _ pgx.Tx, t entities.MaintenanceTicket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.tickets[t.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.s.data.tickets[t.ID] = &t
	return nil
}

// ---- финансы ----

type memCounterRepo struct{ s *memStore }

func (r memCounterRepo) Next(_ context.Context, _ pgx.Tx, prefix, period string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := prefix + "-" + period
	r.s.data.counters[key]++
	return r.s.data.counters[key], nil
}

func cloneItems(items []entities.LineItem) []entities.LineItem {
	return append([]entities.LineItem(nil), items...)
}

type memQuoteRepo struct{ s *memStore }

func (r memQuoteRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.data.quotes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := copyOf(q)
	c.Items = cloneItems(q.Items)
	return c, nil
}

func (r memQuoteRepo) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Quote, error) {
	return r.FindByID(ctx, tx, id)
}

func (r memQuoteRepo) GetAll(_ context.Context, _ types.Filter) ([]*entities.Quote, uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := sortedValues(r.s.data.quotes, nil)
	return out, uint64(len(out)), nil
}

func (r memQuoteRepo) Create(_ context.Context, _ pgx.Tx, q entities.Quote) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.data.quotes {
		if other.QuoteNumber == q.QuoteNumber {
			return 0, apperrors.NewConflictError("смета с номером %s уже существует", q.QuoteNumber)
		}
	}
	q.ID = r.s.nextID()
	q.CreatedAt = time.Now()
	q.Items = cloneItems(q.Items)
	r.s.data.quotes[q.ID] = &q
	return q.ID, nil
}

func (r memQuoteRepo) UpdateItems(_ context.Context, _ pgx.Tx, id uint64, items []entities.LineItem, totals entities.Totals) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.data.quotes[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	q.Items = cloneItems(items)
	q.Totals = totals
	return nil
}

func (r memQuoteRepo) UpdateStatus(_ context.Context, _ pgx.Tx, id uint64, status entities.QuoteStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.data.quotes[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	q.Status = status
	return nil
}

func (r memQuoteRepo) ExpireSent(_ context.Context, _ pgx.Tx, asOf time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, q := range r.s.data.quotes {
		if q.Status == entities.QuoteSent && q.ValidUntil != nil && q.ValidUntil.Before(asOf) {
			q.Status = entities.QuoteExpired
			n++
		}
	}
	return n, nil
}

type memInvoiceRepo struct{ s *memStore }

func (r memInvoiceRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.data.invoices[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := copyOf(inv)
	c.Items = cloneItems(inv.Items)
	return c, nil
}

func (r memInvoiceRepo) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Invoice, error) {
	return r.FindByID(ctx, tx, id)
}

func (r memInvoiceRepo) FindByQuoteID(_ context.Context, _ pgx.Tx, quoteID uint64) (*entities.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range sortedValues(r.s.data.invoices, nil) {
		if inv.QuoteID != nil && *inv.QuoteID == quoteID && inv.Status != entities.InvoiceCancelled {
			return inv, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memInvoiceRepo) GetAll(_ context.Context, _ types.Filter) ([]*entities.Invoice, uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := sortedValues(r.s.data.invoices, nil)
	return out, uint64(len(out)), nil
}

func (r memInvoiceRepo) Create(_ context.Context, _ pgx.Tx, inv entities.Invoice) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.data.invoices {
		if other.InvoiceNumber == inv.InvoiceNumber {
			return 0, apperrors.NewConflictError("счёт с номером %s уже существует", inv.InvoiceNumber)
		}
	}
	inv.ID = r.s.nextID()
	inv.CreatedAt = time.Now()
	inv.Items = cloneItems(inv.Items)
	r.s.data.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (r memInvoiceRepo) UpdateItems(_ context.Context, _ pgx.Tx, id uint64, items []entities.LineItem, totals entities.Totals) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.data.invoices[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	inv.Items = cloneItems(items)
	inv.Totals = totals
	return nil
}

func (r memInvoiceRepo) UpdatePayment(_ context.Context, _ pgx.Tx, id uint64, amountPaid decimal.Decimal, status entities.InvoiceStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.data.invoices[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	inv.AmountPaid = amountPaid
	inv.Status = status
	return nil
}

func (r memInvoiceRepo) UpdateStatus(_ context.Context, _ pgx.Tx, id uint64, status entities.InvoiceStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.data.invoices[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	inv.Status = status
	return nil
}

func (r memInvoiceRepo) Delete(_ context.Context, _ pgx.Tx, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.invoices[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.data.invoices, id)
	return nil
}

func (r memInvoiceRepo) MarkOverdue(_ context.Context, _ pgx.Tx, asOf time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, inv := range r.s.data.invoices {
		if inv.IsOverdueAt(asOf) {
			inv.Status = entities.InvoiceOverdue
			n++
		}
	}
	return n, nil
}

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.payments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyOf(p), nil
}

func (r memPaymentRepo) GetByInvoiceID(_ context.Context, _ pgx.Tx, invoiceID uint64) ([]*entities.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedValues(r.s.data.payments, func(p *entities.Payment) bool { return p.InvoiceID == invoiceID }), nil
}

func (r memPaymentRepo) Create(_ context.Context, _ pgx.Tx, p entities.Payment) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.invoices[p.InvoiceID]; !ok {
		return 0, apperrors.NewValidationError("счёт %d не существует", p.InvoiceID)
	}
	p.ID = r.s.nextID()
	p.CreatedAt = time.Now()
	r.s.data.payments[p.ID] = &p
	return p.ID, nil
}

func (r memPaymentRepo) Delete(_ context.Context, _ pgx.Tx, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.payments[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.data.payments, id)
	return nil
}

func (r memPaymentRepo) SumByInvoice(_ context.Context, _ pgx.Tx, invoiceID uint64) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, p := range r.s.data.payments {
		if p.InvoiceID == invoiceID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r memPaymentRepo) CountByInvoice(_ context.Context, _ pgx.Tx, invoiceID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, p := range r.s.data.payments {
		if p.InvoiceID == invoiceID {
			n++
		}
	}
	return n, nil
}

// ---- кэш и публикация ----

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, repositories.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// recordingPublisher запоминает события вместо шины.
type recordingPublisher struct {
	mu            sync.Mutex
	actions       []string
	statusChanges [][]uint64
}

func (p *recordingPublisher) ActionLogged(_ context.Context, action, entityType string, _ uint64, _ map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, entityType+"."+action)
}

func (p *recordingPublisher) EquipmentStatusChanged(_ context.Context, equipmentIDs ...uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanges = append(p.statusChanges, equipmentIDs)
}

func (p *recordingPublisher) count(action string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, a := range p.actions {
		if a == action {
			n++
		}
	}
	return n
}
