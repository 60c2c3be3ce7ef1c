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
	ticketTable  = "maintenance_tickets"
	ticketFields = `id, equipment_id, title, reported_issue, status, priority, reported_by, assigned_to,
		repair_notes, cost, source_event_id, started_at, completed_at, return_to_service_at, created_at, updated_at`
)

var ticketMap = map[string]string{
	"id":              "id",
	"equipment_id":    "equipment_id",
	"status":          "status",
	"priority":        "priority",
	"assigned_to":     "assigned_to",
	"source_event_id": "source_event_id",
	"created_at":      "created_at",
	"updated_at":      "updated_at",
}

type MaintenanceRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.MaintenanceTicket, error)
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.MaintenanceTicket, error)
	GetAll(ctx context.Context, filter types.Filter) ([]*entities.MaintenanceTicket, uint64, error)
	Create(ctx context.Context, tx pgx.Tx, t entities.MaintenanceTicket) (uint64, error)
	// Update переписывает все изменяемые поля заявки, включая статус и отметки времени.
	Update(ctx context.Context, tx pgx.Tx, t entities.MaintenanceTicket) error
}

type maintenanceRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewMaintenanceRepository(storage *pgxpool.Pool, logger *zap.Logger) MaintenanceRepositoryInterface {
	return &maintenanceRepository{storage: storage, logger: logger}
}

func (r *maintenanceRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *maintenanceRepository) scanRow(row pgx.Row) (*entities.MaintenanceTicket, error) {
	var t entities.MaintenanceTicket
	err := row.Scan(
		&t.ID, &t.EquipmentID, &t.Title, &t.ReportedIssue, &t.Status, &t.Priority, &t.ReportedBy, &t.AssignedTo,
		&t.RepairNotes, &t.Cost, &t.SourceEventID, &t.StartedAt, &t.CompletedAt, &t.ReturnToServiceAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования maintenance_tickets: %w", err)
	}
	return &t, nil
}

func (r *maintenanceRepository) findOne(ctx context.Context, tx pgx.Tx, id uint64, forUpdate bool) (*entities.MaintenanceTicket, error) {
	builder := psql.Select(ticketFields).From(ticketTable).Where(sq.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL ticket findOne: %w", err)
	}
	return r.scanRow(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *maintenanceRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.MaintenanceTicket, error) {
	return r.findOne(ctx, tx, id, false)
}

func (r *maintenanceRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.MaintenanceTicket, error) {
	return r.findOne(ctx, tx, id, true)
}

func (r *maintenanceRepository) GetAll(ctx context.Context, filter types.Filter) ([]*entities.MaintenanceTicket, uint64, error) {
	applyWhere := func(b sq.SelectBuilder) sq.SelectBuilder {
		b = bd.ApplySearch(b, filter.Search, "title", "reported_issue")
		return bd.ApplyFilters(b, filter, ticketMap)
	}

	countQuery, countArgs, err := applyWhere(psql.Select("COUNT(id)").From(ticketTable)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}

	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []*entities.MaintenanceTicket{}, 0, nil
	}

	selectBuilder := bd.ApplyListParams(applyWhere(psql.Select(ticketFields).From(ticketTable)), filter, ticketMap, "id DESC")
	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL select: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения select: %w", err)
	}
	defer rows.Close()

	tickets := make([]*entities.MaintenanceTicket, 0)
	for rows.Next() {
		t, err := r.scanRow(rows)
		if err != nil {
			r.logger.Error("Ошибка сканирования ticket", zap.Error(err))
			return nil, 0, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации rows: %w", err)
	}
	return tickets, total, nil
}

func (r *maintenanceRepository) Create(ctx context.Context, tx pgx.Tx, t entities.MaintenanceTicket) (uint64, error) {
	query, args, err := psql.Insert(ticketTable).
		Columns("equipment_id", "title", "reported_issue", "status", "priority", "reported_by", "assigned_to",
			"source_event_id", "created_at", "updated_at").
		Values(t.EquipmentID, t.Title, t.ReportedIssue, t.Status, t.Priority, t.ReportedBy, t.AssignedTo,
			t.SourceEventID, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create ticket: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return 0, apperrors.NewValidationError("заявка ссылается на несуществующее оборудование, мероприятие или сотрудника")
		}
		return 0, fmt.Errorf("ошибка создания maintenance_tickets: %w", err)
	}
	return newID, nil
}

func (r *maintenanceRepository) Update(ctx context.Context, tx pgx.Tx, t entities.MaintenanceTicket) error {
	query, args, err := psql.Update(ticketTable).
		Set("title", t.Title).
		Set("reported_issue", t.ReportedIssue).
		Set("status", t.Status).
		Set("priority", t.Priority).
		Set("assigned_to", t.AssignedTo).
		Set("repair_notes", t.RepairNotes).
		Set("cost", t.Cost).
		Set("started_at", t.StartedAt).
		Set("completed_at", t.CompletedAt).
		Set("return_to_service_at", t.ReturnToServiceAt).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": t.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Update ticket: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return apperrors.NewValidationError("назначенный сотрудник не существует")
		}
		return fmt.Errorf("ошибка обновления maintenance_tickets: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
