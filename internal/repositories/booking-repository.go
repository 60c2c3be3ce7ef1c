package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
)

const (
	bookingTable  = "event_equipment_bookings"
	bookingFields = `b.id, b.event_id, b.equipment_id, b.quantity, b.status, b.notes, b.created_at, b.updated_at,
		COALESCE(e.name, '')`
	bookingFrom = "event_equipment_bookings AS b LEFT JOIN equipment_items AS e ON e.id = b.equipment_id"
)

type BookingRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EventEquipmentBooking, error)
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EventEquipmentBooking, error)
	FindByEventAndEquipment(ctx context.Context, tx pgx.Tx, eventID, equipmentID uint64) (*entities.EventEquipmentBooking, error)
	GetByEventID(ctx context.Context, tx pgx.Tx, eventID uint64) ([]*entities.EventEquipmentBooking, error)
	// FindConflicts - брони CONFIRMED/CHECKED_OUT других мероприятий на то же оборудование,
	// чьи даты пересекаются с [start, end] включительно.
	FindConflicts(ctx context.Context, tx pgx.Tx, equipmentID uint64, start, end time.Time, excludeEventID uint64) ([]entities.BookingConflict, error)
	Create(ctx context.Context, tx pgx.Tx, b entities.EventEquipmentBooking) (uint64, error)
	Update(ctx context.Context, tx pgx.Tx, b entities.EventEquipmentBooking) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.BookingStatus) error
	UpdateStatusByEvent(ctx context.Context, tx pgx.Tx, eventID uint64, from []entities.BookingStatus, to entities.BookingStatus) (int64, error)
	Delete(ctx context.Context, tx pgx.Tx, id uint64) error
	CountActiveByEquipment(ctx context.Context, tx pgx.Tx, equipmentID uint64) (int64, error)
	// MaxActiveQuantityByEquipment - наибольшее количество в брони PENDING/CONFIRMED/CHECKED_OUT, 0 если броней нет.
	MaxActiveQuantityByEquipment(ctx context.Context, tx pgx.Tx, equipmentID uint64) (int, error)
	CountUnsettledByEvent(ctx context.Context, tx pgx.Tx, eventID uint64) (int64, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]entities.OverdueReturn, error)
}

type bookingRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewBookingRepository(storage *pgxpool.Pool, logger *zap.Logger) BookingRepositoryInterface {
	return &bookingRepository{storage: storage, logger: logger}
}

func (r *bookingRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *bookingRepository) scanRow(row pgx.Row) (*entities.EventEquipmentBooking, error) {
	var b entities.EventEquipmentBooking
	err := row.Scan(
		&b.ID, &b.EventID, &b.EquipmentID, &b.Quantity, &b.Status, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt, &b.EquipmentName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования event_equipment_bookings: %w", err)
	}
	return &b, nil
}

func (r *bookingRepository) findOne(ctx context.Context, tx pgx.Tx, where sq.Eq, forUpdate bool) (*entities.EventEquipmentBooking, error) {
	builder := psql.Select(bookingFields).From(bookingFrom).Where(where)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE OF b")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL booking findOne: %w", err)
	}
	return r.scanRow(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *bookingRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EventEquipmentBooking, error) {
	return r.findOne(ctx, tx, sq.Eq{"b.id": id}, false)
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.EventEquipmentBooking, error) {
	return r.findOne(ctx, tx, sq.Eq{"b.id": id}, true)
}

func (r *bookingRepository) FindByEventAndEquipment(ctx context.Context, tx pgx.Tx, eventID, equipmentID uint64) (*entities.EventEquipmentBooking, error) {
	return r.findOne(ctx, tx, sq.Eq{"b.event_id": eventID, "b.equipment_id": equipmentID}, false)
}

func (r *bookingRepository) GetByEventID(ctx context.Context, tx pgx.Tx, eventID uint64) ([]*entities.EventEquipmentBooking, error) {
	query, args, err := psql.Select(bookingFields).
		From(bookingFrom).
		Where(sq.Eq{"b.event_id": eventID}).
		OrderBy("b.equipment_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL GetByEventID: %w", err)
	}

	rows, err := r.getQuerier(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения GetByEventID: %w", err)
	}
	defer rows.Close()

	bookings := make([]*entities.EventEquipmentBooking, 0)
	for rows.Next() {
		b, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows в GetByEventID: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) FindConflicts(ctx context.Context, tx pgx.Tx, equipmentID uint64, start, end time.Time, excludeEventID uint64) ([]entities.BookingConflict, error) {
	builder := psql.Select("b.id, ev.id, ev.name, ev.start_date, ev.end_date, b.status").
		From("event_equipment_bookings AS b").
		Join("events AS ev ON ev.id = b.event_id").
		Where(sq.Eq{"b.equipment_id": equipmentID}).
		Where(sq.Eq{"b.status": entities.BlockingBookingStatuses}).
		Where(sq.LtOrEq{"ev.start_date": end}).
		Where(sq.GtOrEq{"ev.end_date": start}).
		OrderBy("ev.start_date", "b.id")
	if excludeEventID != 0 {
		builder = builder.Where(sq.NotEq{"b.event_id": excludeEventID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL FindConflicts: %w", err)
	}

	rows, err := r.getQuerier(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска пересечений брони: %w", err)
	}
	defer rows.Close()

	conflicts := make([]entities.BookingConflict, 0)
	for rows.Next() {
		var c entities.BookingConflict
		if err := rows.Scan(&c.BookingID, &c.EventID, &c.EventName, &c.EventStartDate, &c.EventEndDate, &c.Status); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пересечения: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows в FindConflicts: %w", err)
	}
	return conflicts, nil
}

func (r *bookingRepository) Create(ctx context.Context, tx pgx.Tx, b entities.EventEquipmentBooking) (uint64, error) {
	query, args, err := psql.Insert(bookingTable).
		Columns("event_id", "equipment_id", "quantity", "status", "notes", "created_at", "updated_at").
		Values(b.EventID, b.EquipmentID, b.Quantity, b.Status, b.Notes, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create booking: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return 0, apperrors.NewConflictError("оборудование %d уже забронировано на мероприятие %d", b.EquipmentID, b.EventID)
		case pgForeignKeyViolation:
			return 0, apperrors.NewValidationError("мероприятие %d или оборудование %d не существует", b.EventID, b.EquipmentID)
		}
		if mapped := checkViolationError(err); mapped != nil {
			return 0, mapped
		}
		return 0, fmt.Errorf("ошибка создания event_equipment_bookings: %w", err)
	}
	return newID, nil
}

func (r *bookingRepository) Update(ctx context.Context, tx pgx.Tx, b entities.EventEquipmentBooking) error {
	query, args, err := psql.Update(bookingTable).
		Set("quantity", b.Quantity).
		Set("notes", b.Notes).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Update booking: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if mapped := checkViolationError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("ошибка обновления брони: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.BookingStatus) error {
	query, args, err := psql.Update(bookingTable).
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса UpdateStatus booking: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса брони: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) UpdateStatusByEvent(ctx context.Context, tx pgx.Tx, eventID uint64, from []entities.BookingStatus, to entities.BookingStatus) (int64, error) {
	query, args, err := psql.Update(bookingTable).
		Set("status", to).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"event_id": eventID, "status": from}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса UpdateStatusByEvent: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("ошибка массовой смены статуса броней: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *bookingRepository) Delete(ctx context.Context, tx pgx.Tx, id uint64) error {
	query, args, err := psql.Delete(bookingTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Delete booking: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка удаления брони: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) count(ctx context.Context, tx pgx.Tx, where sq.Sqlizer) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From(bookingTable).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки SQL count bookings: %w", err)
	}
	var n int64
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта броней: %w", err)
	}
	return n, nil
}

func (r *bookingRepository) CountActiveByEquipment(ctx context.Context, tx pgx.Tx, equipmentID uint64) (int64, error) {
	return r.count(ctx, tx, sq.Eq{"equipment_id": equipmentID, "status": entities.ActiveBookingStatuses})
}

func (r *bookingRepository) MaxActiveQuantityByEquipment(ctx context.Context, tx pgx.Tx, equipmentID uint64) (int, error) {
	query, args, err := psql.Select("COALESCE(MAX(quantity), 0)").
		From(bookingTable).
		Where(sq.Eq{"equipment_id": equipmentID, "status": entities.ActiveBookingStatuses}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки SQL MaxActiveQuantityByEquipment: %w", err)
	}
	var n int
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта количества в бронях: %w", err)
	}
	return n, nil
}

func (r *bookingRepository) CountUnsettledByEvent(ctx context.Context, tx pgx.Tx, eventID uint64) (int64, error) {
	return r.count(ctx, tx, sq.And{
		sq.Eq{"event_id": eventID},
		sq.NotEq{"status": []entities.BookingStatus{entities.BookingReturned, entities.BookingCancelled}},
	})
}

// ListOverdue - выданное оборудование мероприятий, закончившихся до asOf.
func (r *bookingRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]entities.OverdueReturn, error) {
	query, args, err := psql.Select("ev.id, ev.name, ev.end_date, e.id, e.name, b.id").
		From("event_equipment_bookings AS b").
		Join("events AS ev ON ev.id = b.event_id").
		Join("equipment_items AS e ON e.id = b.equipment_id").
		Where(sq.Eq{"b.status": entities.BookingCheckedOut}).
		Where(sq.Lt{"ev.end_date": asOf}).
		OrderBy("ev.end_date", "b.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL ListOverdue: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения ListOverdue: %w", err)
	}
	defer rows.Close()

	overdue := make([]entities.OverdueReturn, 0)
	for rows.Next() {
		var o entities.OverdueReturn
		if err := rows.Scan(&o.EventID, &o.EventName, &o.EventEndDate, &o.EquipmentID, &o.EquipmentName, &o.BookingID); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ListOverdue: %w", err)
		}
		overdue = append(overdue, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows в ListOverdue: %w", err)
	}
	return overdue, nil
}
