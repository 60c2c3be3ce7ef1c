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
	"rental-system/internal/infrastructure/bd"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
)

const (
	quoteTable      = "quotes"
	quoteItemsTable = "quote_line_items"
	quoteFields     = `id, quote_number, client_id, event_id, status, subtotal, discount, tax_rate, tax_amount, total,
		valid_until, notes, created_by, created_at, updated_at`
)

var quoteMap = map[string]string{
	"id":           "id",
	"quote_number": "quote_number",
	"client_id":    "client_id",
	"event_id":     "event_id",
	"status":       "status",
	"total":        "total",
	"valid_until":  "valid_until",
	"created_at":   "created_at",
}

type QuoteRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Quote, error)
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Quote, error)
	GetAll(ctx context.Context, filter types.Filter) ([]*entities.Quote, uint64, error)
	Create(ctx context.Context, tx pgx.Tx, q entities.Quote) (uint64, error)
	UpdateItems(ctx context.Context, tx pgx.Tx, id uint64, items []entities.LineItem, totals entities.Totals) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.QuoteStatus) error
	// ExpireSent переводит в EXPIRED отправленные сметы со сроком действия раньше asOf.
	ExpireSent(ctx context.Context, tx pgx.Tx, asOf time.Time) (int64, error)
}

type quoteRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewQuoteRepository(storage *pgxpool.Pool, logger *zap.Logger) QuoteRepositoryInterface {
	return &quoteRepository{storage: storage, logger: logger}
}

func (r *quoteRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *quoteRepository) scanRow(row pgx.Row) (*entities.Quote, error) {
	var q entities.Quote
	err := row.Scan(
		&q.ID, &q.QuoteNumber, &q.ClientID, &q.EventID, &q.Status,
		&q.Subtotal, &q.Discount, &q.TaxRate, &q.TaxAmount, &q.Total,
		&q.ValidUntil, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования quotes: %w", err)
	}
	return &q, nil
}

func (r *quoteRepository) findOne(ctx context.Context, tx pgx.Tx, id uint64, forUpdate bool) (*entities.Quote, error) {
	builder := psql.Select(quoteFields).From(quoteTable).Where(sq.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL quote findOne: %w", err)
	}

	querier := r.getQuerier(tx)
	q, err := r.scanRow(querier.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if q.Items, err = loadLineItems(ctx, querier, quoteItemsTable, "quote_id", q.ID); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *quoteRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Quote, error) {
	return r.findOne(ctx, tx, id, false)
}

func (r *quoteRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Quote, error) {
	return r.findOne(ctx, tx, id, true)
}

func (r *quoteRepository) GetAll(ctx context.Context, filter types.Filter) ([]*entities.Quote, uint64, error) {
	applyWhere := func(b sq.SelectBuilder) sq.SelectBuilder {
		b = bd.ApplySearch(b, filter.Search, "quote_number", "notes")
		return bd.ApplyFilters(b, filter, quoteMap)
	}

	countQuery, countArgs, err := applyWhere(psql.Select("COUNT(id)").From(quoteTable)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []*entities.Quote{}, 0, nil
	}

	selectBuilder := bd.ApplyListParams(applyWhere(psql.Select(quoteFields).From(quoteTable)), filter, quoteMap, "id DESC")
	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL select: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения select: %w", err)
	}
	defer rows.Close()

	quotes := make([]*entities.Quote, 0)
	for rows.Next() {
		q, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации rows: %w", err)
	}
	return quotes, total, nil
}

func (r *quoteRepository) Create(ctx context.Context, tx pgx.Tx, q entities.Quote) (uint64, error) {
	query, args, err := psql.Insert(quoteTable).
		Columns("quote_number", "client_id", "event_id", "status", "subtotal", "discount", "tax_rate", "tax_amount", "total",
			"valid_until", "notes", "created_by", "created_at", "updated_at").
		Values(q.QuoteNumber, q.ClientID, q.EventID, q.Status, q.Subtotal, q.Discount, q.TaxRate, q.TaxAmount, q.Total,
			q.ValidUntil, q.Notes, q.CreatedBy, sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create quote: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return 0, apperrors.NewConflictError("смета с номером %s уже существует", q.QuoteNumber)
		case pgForeignKeyViolation:
			return 0, apperrors.NewValidationError("клиент %d или мероприятие не существует", q.ClientID)
		}
		return 0, fmt.Errorf("ошибка создания quotes: %w", err)
	}

	if err := replaceLineItems(ctx, tx, quoteItemsTable, "quote_id", newID, q.Items); err != nil {
		return 0, err
	}
	return newID, nil
}

func (r *quoteRepository) UpdateItems(ctx context.Context, tx pgx.Tx, id uint64, items []entities.LineItem, totals entities.Totals) error {
	if err := replaceLineItems(ctx, tx, quoteItemsTable, "quote_id", id, items); err != nil {
		return err
	}

	query, args, err := psql.Update(quoteTable).
		Set("subtotal", totals.Subtotal).
		Set("discount", totals.Discount).
		Set("tax_rate", totals.TaxRate).
		Set("tax_amount", totals.TaxAmount).
		Set("total", totals.Total).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса UpdateItems quote: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления итогов сметы: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *quoteRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.QuoteStatus) error {
	query, args, err := psql.Update(quoteTable).
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса UpdateStatus quote: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса сметы: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *quoteRepository) ExpireSent(ctx context.Context, tx pgx.Tx, asOf time.Time) (int64, error) {
	query, args, err := psql.Update(quoteTable).
		Set("status", entities.QuoteExpired).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"status": entities.QuoteSent}).
		Where(sq.Lt{"valid_until": asOf}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса ExpireSent: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("ошибка истечения смет: %w", err)
	}
	return result.RowsAffected(), nil
}
