package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rental-system/internal/entities"
	"rental-system/internal/infrastructure/bd"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
)

const (
	eventTable  = "events"
	eventFields = "id, client_id, name, venue, start_date, end_date, status, notes, created_by, created_at, updated_at"
)

var eventMap = map[string]string{
	"id":         "id",
	"client_id":  "client_id",
	"name":       "name",
	"venue":      "venue",
	"status":     "status",
	"start_date": "start_date",
	"end_date":   "end_date",
	"created_at": "created_at",
}

type EventRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Event, error)
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Event, error)
	GetAll(ctx context.Context, filter types.Filter) ([]*entities.Event, uint64, error)
	Create(ctx context.Context, tx pgx.Tx, e entities.Event) (uint64, error)
	Update(ctx context.Context, tx pgx.Tx, e entities.Event) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.EventStatus) error
}

type eventRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewEventRepository(storage *pgxpool.Pool, logger *zap.Logger) EventRepositoryInterface {
	return &eventRepository{storage: storage, logger: logger}
}

func (r *eventRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *eventRepository) scanRow(row pgx.Row) (*entities.Event, error) {
	var e entities.Event
	err := row.Scan(
		&e.ID, &e.ClientID, &e.Name, &e.Venue, &e.StartDate, &e.EndDate,
		&e.Status, &e.Notes, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования events: %w", err)
	}
	return &e, nil
}

func (r *eventRepository) findOne(ctx context.Context, tx pgx.Tx, id uint64, forUpdate bool) (*entities.Event, error) {
	builder := psql.Select(eventFields).From(eventTable).Where(sq.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL event findOne: %w", err)
	}
	return r.scanRow(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *eventRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Event, error) {
	return r.findOne(ctx, tx, id, false)
}

// FindByIDForUpdate - первая блокировка в порядке event -> equipment -> bookings.
func (r *eventRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Event, error) {
	return r.findOne(ctx, tx, id, true)
}

func (r *eventRepository) applyWhere(builder sq.SelectBuilder, filter types.Filter) sq.SelectBuilder {
	builder = bd.ApplySearch(builder, filter.Search, "name", "venue")
	builder = bd.ApplyFilters(builder, filter, eventMap)
	// Мероприятия, пересекающие период [from, to]
	if from, ok := filter.Filter["from"]; ok {
		builder = builder.Where(sq.GtOrEq{"end_date": from})
	}
	if to, ok := filter.Filter["to"]; ok {
		builder = builder.Where(sq.LtOrEq{"start_date": to})
	}
	return builder
}

func (r *eventRepository) GetAll(ctx context.Context, filter types.Filter) ([]*entities.Event, uint64, error) {
	countQuery, countArgs, err := r.applyWhere(psql.Select("COUNT(id)").From(eventTable), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}

	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []*entities.Event{}, 0, nil
	}

	selectBuilder := r.applyWhere(psql.Select(eventFields).From(eventTable), filter)
	selectBuilder = bd.ApplyListParams(selectBuilder, filter, eventMap, "start_date DESC")

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL select: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения select: %w", err)
	}
	defer rows.Close()

	events := make([]*entities.Event, 0)
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			r.logger.Error("Ошибка сканирования event", zap.Error(err))
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации rows: %w", err)
	}
	return events, total, nil
}

func (r *eventRepository) Create(ctx context.Context, tx pgx.Tx, e entities.Event) (uint64, error) {
	query, args, err := psql.Insert(eventTable).
		Columns("client_id", "name", "venue", "start_date", "end_date", "status", "notes", "created_by", "created_at", "updated_at").
		Values(e.ClientID, e.Name, e.Venue, e.StartDate, e.EndDate, e.Status, e.Notes, e.CreatedBy, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return 0, apperrors.NewValidationError("клиент %d не существует", e.ClientID)
		}
		return 0, fmt.Errorf("ошибка создания events: %w", err)
	}
	return newID, nil
}

func (r *eventRepository) Update(ctx context.Context, tx pgx.Tx, e entities.Event) error {
	query, args, err := psql.Update(eventTable).
		Set("name", e.Name).
		Set("venue", e.Venue).
		Set("start_date", e.StartDate).
		Set("end_date", e.EndDate).
		Set("notes", e.Notes).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Update: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления events: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *eventRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.EventStatus) error {
	query, args, err := psql.Update(eventTable).
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса UpdateStatus: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса мероприятия: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
