package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "rental-system/pkg/errors"
)

const (
	pgLockNotAvailable   = "55P03"
	pgDeadlockDetected   = "40P01"
	pgSerializationError = "40001"
)

type TxManagerInterface interface {
	RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type TxManager struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewTxManager(pool *pgxpool.Pool, lockTimeout time.Duration) TxManagerInterface {
	return &TxManager{pool: pool, lockTimeout: lockTimeout}
}

// RunInTransaction выполняет fn в одной транзакции: ошибка или паника откатывают всё.
// Не дождавшиеся блокировки операции получают Conflict; повторять запрос решает клиент.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			err = mapTxError(err)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = mapTxError(fmt.Errorf("ошибка при коммите транзакции: %w", commitErr))
		}
	}()

	if m.lockTimeout > 0 {
		// SET LOCAL не принимает плейсхолдеры
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("не удалось установить lock_timeout: %w", err)
		}
	}

	return fn(tx)
}

// mapTxError переводит ошибки Postgres, не разобранные репозиториями, в доменные.
func mapTxError(err error) error {
	switch pgErrorCode(err) {
	case pgLockNotAvailable, pgDeadlockDetected, pgSerializationError:
		return apperrors.NewConflictError("Данные заняты параллельной операцией, повторите запрос позже")
	}
	if mapped := checkViolationError(err); mapped != nil {
		return mapped
	}
	return err
}
