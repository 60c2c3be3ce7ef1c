package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rental-system/internal/entities"
)

type ActionLogRepositoryInterface interface {
	Create(ctx context.Context, log entities.ActionLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uint64) ([]*entities.ActionLog, error)
}

type actionLogRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewActionLogRepository(storage *pgxpool.Pool, logger *zap.Logger) ActionLogRepositoryInterface {
	return &actionLogRepository{storage: storage, logger: logger}
}

// Create пишет вне транзакции операции: запись журнала не должна откатывать основное действие.
func (r *actionLogRepository) Create(ctx context.Context, log entities.ActionLog) error {
	details := log.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	query, args, err := psql.Insert("action_logs").
		Columns("actor_id", "action", "entity_type", "entity_id", "details", "ip_address", "created_at").
		Values(log.ActorID, log.Action, log.EntityType, log.EntityID, details, log.IPAddress, sq.Expr("NOW()")).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса action_logs: %w", err)
	}
	if _, err := r.storage.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка записи action_logs: %w", err)
	}
	return nil
}

func (r *actionLogRepository) GetByEntity(ctx context.Context, entityType string, entityID uint64) ([]*entities.ActionLog, error) {
	query, args, err := psql.Select("id, actor_id, action, entity_type, entity_id, details, ip_address, created_at").
		From("action_logs").
		Where(sq.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL GetByEntity: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения action_logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*entities.ActionLog, 0)
	for rows.Next() {
		var l entities.ActionLog
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.EntityType, &l.EntityID, &l.Details, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования action_logs: %w", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows action_logs: %w", err)
	}
	return logs, nil
}
