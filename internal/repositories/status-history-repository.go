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
	apperrors "rental-system/pkg/errors"
)

const (
	statusHistoryTable  = "equipment_status_history"
	statusHistoryFields = "id, equipment_id, previous_status, new_status, reason, actor_id, created_at"
)

// StatusHistoryRepositoryInterface - журнал только дописывается, методов изменения нет.
type StatusHistoryRepositoryInterface interface {
	Create(ctx context.Context, tx pgx.Tx, h entities.EquipmentStatusHistory) (uint64, error)
	GetByEquipmentID(ctx context.Context, equipmentID uint64) ([]*entities.EquipmentStatusHistory, error)
	FindLatest(ctx context.Context, tx pgx.Tx, equipmentID uint64) (*entities.EquipmentStatusHistory, error)
}

type statusHistoryRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewStatusHistoryRepository(storage *pgxpool.Pool, logger *zap.Logger) StatusHistoryRepositoryInterface {
	return &statusHistoryRepository{storage: storage, logger: logger}
}

func (r *statusHistoryRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *statusHistoryRepository) scanRow(row pgx.Row) (*entities.EquipmentStatusHistory, error) {
	var h entities.EquipmentStatusHistory
	err := row.Scan(&h.ID, &h.EquipmentID, &h.PreviousStatus, &h.NewStatus, &h.Reason, &h.ActorID, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования equipment_status_history: %w", err)
	}
	return &h, nil
}

func (r *statusHistoryRepository) Create(ctx context.Context, tx pgx.Tx, h entities.EquipmentStatusHistory) (uint64, error) {
	query, args, err := psql.Insert(statusHistoryTable).
		Columns("equipment_id", "previous_status", "new_status", "reason", "actor_id", "created_at").
		Values(h.EquipmentID, h.PreviousStatus, h.NewStatus, h.Reason, h.ActorID, sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create history: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		return 0, fmt.Errorf("ошибка записи истории статусов: %w", err)
	}
	return newID, nil
}

func (r *statusHistoryRepository) GetByEquipmentID(ctx context.Context, equipmentID uint64) ([]*entities.EquipmentStatusHistory, error) {
	query, args, err := psql.Select(statusHistoryFields).
		From(statusHistoryTable).
		Where(sq.Eq{"equipment_id": equipmentID}).
		OrderBy("id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL GetByEquipmentID: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения GetByEquipmentID: %w", err)
	}
	defer rows.Close()

	history := make([]*entities.EquipmentStatusHistory, 0)
	for rows.Next() {
		h, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows в GetByEquipmentID: %w", err)
	}
	return history, nil
}

func (r *statusHistoryRepository) FindLatest(ctx context.Context, tx pgx.Tx, equipmentID uint64) (*entities.EquipmentStatusHistory, error) {
	query, args, err := psql.Select(statusHistoryFields).
		From(statusHistoryTable).
		Where(sq.Eq{"equipment_id": equipmentID}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL FindLatest: %w", err)
	}
	return r.scanRow(r.getQuerier(tx).QueryRow(ctx, query, args...))
}
