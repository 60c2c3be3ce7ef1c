package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CounterRepositoryInterface - сквозная нумерация документов по префиксу и периоду.
type CounterRepositoryInterface interface {
	Next(ctx context.Context, tx pgx.Tx, prefix, period string) (int, error)
}

type counterRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewCounterRepository(storage *pgxpool.Pool, logger *zap.Logger) CounterRepositoryInterface {
	return &counterRepository{storage: storage, logger: logger}
}

// Next атомарно увеличивает счётчик. Строка (prefix, period) остаётся заблокированной
// до конца транзакции, поэтому параллельные создания получают разные номера.
func (r *counterRepository) Next(ctx context.Context, tx pgx.Tx, prefix, period string) (int, error) {
	query, args, err := psql.Insert("document_counters").
		Columns("prefix", "period", "last_value").
		Values(prefix, period, 1).
		Suffix("ON CONFLICT (prefix, period) DO UPDATE SET last_value = document_counters.last_value + 1 RETURNING last_value").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса счётчика: %w", err)
	}

	var value int
	if err := tx.QueryRow(ctx, query, args...).Scan(&value); err != nil {
		return 0, fmt.Errorf("ошибка получения номера %s-%s: %w", prefix, period, err)
	}
	return value, nil
}
