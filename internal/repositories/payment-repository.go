package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
)

const (
	paymentTable  = "payments"
	paymentFields = "id, invoice_id, amount, method, reference, paid_at, notes, created_by, created_at"
)

type PaymentRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Payment, error)
	GetByInvoiceID(ctx context.Context, tx pgx.Tx, invoiceID uint64) ([]*entities.Payment, error)
	Create(ctx context.Context, tx pgx.Tx, p entities.Payment) (uint64, error)
	Delete(ctx context.Context, tx pgx.Tx, id uint64) error
	SumByInvoice(ctx context.Context, tx pgx.Tx, invoiceID uint64) (decimal.Decimal, error)
	CountByInvoice(ctx context.Context, tx pgx.Tx, invoiceID uint64) (int64, error)
}

type paymentRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewPaymentRepository(storage *pgxpool.Pool, logger *zap.Logger) PaymentRepositoryInterface {
	return &paymentRepository{storage: storage, logger: logger}
}

func (r *paymentRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *paymentRepository) scanRow(row pgx.Row) (*entities.Payment, error) {
	var p entities.Payment
	err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.PaidAt, &p.Notes, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования payments: %w", err)
	}
	return &p, nil
}

func (r *paymentRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Payment, error) {
	query, args, err := psql.Select(paymentFields).From(paymentTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL payment FindByID: %w", err)
	}
	return r.scanRow(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *paymentRepository) GetByInvoiceID(ctx context.Context, tx pgx.Tx, invoiceID uint64) ([]*entities.Payment, error) {
	query, args, err := psql.Select(paymentFields).
		From(paymentTable).
		Where(sq.Eq{"invoice_id": invoiceID}).
		OrderBy("paid_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL GetByInvoiceID: %w", err)
	}

	rows, err := r.getQuerier(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения GetByInvoiceID: %w", err)
	}
	defer rows.Close()

	payments := make([]*entities.Payment, 0)
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) Create(ctx context.Context, tx pgx.Tx, p entities.Payment) (uint64, error) {
	query, args, err := psql.Insert(paymentTable).
		Columns("invoice_id", "amount", "method", "reference", "paid_at", "notes", "created_by", "created_at").
		Values(p.InvoiceID, p.Amount, p.Method, p.Reference, p.PaidAt, p.Notes, p.CreatedBy, sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create payment: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		return 0, fmt.Errorf("ошибка создания payments: %w", err)
	}
	return newID, nil
}

func (r *paymentRepository) Delete(ctx context.Context, tx pgx.Tx, id uint64) error {
	query, args, err := psql.Delete(paymentTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Delete payment: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка удаления платежа: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *paymentRepository) SumByInvoice(ctx context.Context, tx pgx.Tx, invoiceID uint64) (decimal.Decimal, error) {
	query, args, err := psql.Select("COALESCE(SUM(amount), 0)").From(paymentTable).Where(sq.Eq{"invoice_id": invoiceID}).ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка сборки SQL SumByInvoice: %w", err)
	}
	var sum decimal.Decimal
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("ошибка суммирования платежей: %w", err)
	}
	return sum, nil
}

func (r *paymentRepository) CountByInvoice(ctx context.Context, tx pgx.Tx, invoiceID uint64) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From(paymentTable).Where(sq.Eq{"invoice_id": invoiceID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки SQL CountByInvoice: %w", err)
	}
	var n int64
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта платежей: %w", err)
	}
	return n, nil
}
