package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rental-system/internal/entities"
	"rental-system/internal/infrastructure/bd"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
)

const (
	invoiceTable      = "invoices"
	invoiceItemsTable = "invoice_line_items"
	invoiceFields     = `id, invoice_number, client_id, event_id, quote_id, status, subtotal, discount, tax_rate, tax_amount,
		total, amount_paid, issue_date, due_date, notes, created_by, created_at, updated_at`
)

var invoiceMap = map[string]string{
	"id":             "id",
	"invoice_number": "invoice_number",
	"client_id":      "client_id",
	"event_id":       "event_id",
	"quote_id":       "quote_id",
	"status":         "status",
	"total":          "total",
	"amount_paid":    "amount_paid",
	"issue_date":     "issue_date",
	"due_date":       "due_date",
	"created_at":     "created_at",
}

type InvoiceRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Invoice, error)
	// FindByIDForUpdate блокирует счёт: amount_paid и status меняются только под этой блокировкой.
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Invoice, error)
	// FindByQuoteID - счёт, выставленный по смете, если он уже есть.
	FindByQuoteID(ctx context.Context, tx pgx.Tx, quoteID uint64) (*entities.Invoice, error)
	GetAll(ctx context.Context, filter types.Filter) ([]*entities.Invoice, uint64, error)
	Create(ctx context.Context, tx pgx.Tx, inv entities.Invoice) (uint64, error)
	UpdateItems(ctx context.Context, tx pgx.Tx, id uint64, items []entities.LineItem, totals entities.Totals) error
	UpdatePayment(ctx context.Context, tx pgx.Tx, id uint64, amountPaid decimal.Decimal, status entities.InvoiceStatus) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.InvoiceStatus) error
	Delete(ctx context.Context, tx pgx.Tx, id uint64) error
	// MarkOverdue переводит в OVERDUE отправленные и частично оплаченные счета со сроком раньше asOf.
	MarkOverdue(ctx context.Context, tx pgx.Tx, asOf time.Time) (int64, error)
}

type invoiceRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewInvoiceRepository(storage *pgxpool.Pool, logger *zap.Logger) InvoiceRepositoryInterface {
	return &invoiceRepository{storage: storage, logger: logger}
}

func (r *invoiceRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *invoiceRepository) scanRow(row pgx.Row) (*entities.Invoice, error) {
	var inv entities.Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.ClientID, &inv.EventID, &inv.QuoteID, &inv.Status,
		&inv.Subtotal, &inv.Discount, &inv.TaxRate, &inv.TaxAmount, &inv.Total, &inv.AmountPaid,
		&inv.IssueDate, &inv.DueDate, &inv.Notes, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования invoices: %w", err)
	}
	return &inv, nil
}

func (r *invoiceRepository) findOne(ctx context.Context, tx pgx.Tx, id uint64, forUpdate bool) (*entities.Invoice, error) {
	builder := psql.Select(invoiceFields).From(invoiceTable).Where(sq.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL invoice findOne: %w", err)
	}

	querier := r.getQuerier(tx)
	inv, err := r.scanRow(querier.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if inv.Items, err = loadLineItems(ctx, querier, invoiceItemsTable, "invoice_id", inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Invoice, error) {
	return r.findOne(ctx, tx, id, false)
}

func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Invoice, error) {
	return r.findOne(ctx, tx, id, true)
}

func (r *invoiceRepository) FindByQuoteID(ctx context.Context, tx pgx.Tx, quoteID uint64) (*entities.Invoice, error) {
	query, args, err := psql.Select(invoiceFields).
		From(invoiceTable).
		Where(sq.Eq{"quote_id": quoteID}).
		Where(sq.NotEq{"status": entities.InvoiceCancelled}).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL FindByQuoteID: %w", err)
	}
	return r.scanRow(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *invoiceRepository) GetAll(ctx context.Context, filter types.Filter) ([]*entities.Invoice, uint64, error) {
	applyWhere := func(b sq.SelectBuilder) sq.SelectBuilder {
		b = bd.ApplySearch(b, filter.Search, "invoice_number", "notes")
		return bd.ApplyFilters(b, filter, invoiceMap)
	}

	countQuery, countArgs, err := applyWhere(psql.Select("COUNT(id)").From(invoiceTable)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []*entities.Invoice{}, 0, nil
	}

	selectBuilder := bd.ApplyListParams(applyWhere(psql.Select(invoiceFields).From(invoiceTable)), filter, invoiceMap, "id DESC")
	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL select: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения select: %w", err)
	}
	defer rows.Close()

	invoices := make([]*entities.Invoice, 0)
	for rows.Next() {
		inv, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации rows: %w", err)
	}
	return invoices, total, nil
}

func (r *invoiceRepository) Create(ctx context.Context, tx pgx.Tx, inv entities.Invoice) (uint64, error) {
	query, args, err := psql.Insert(invoiceTable).
		Columns("invoice_number", "client_id", "event_id", "quote_id", "status", "subtotal", "discount", "tax_rate",
			"tax_amount", "total", "amount_paid", "issue_date", "due_date", "notes", "created_by", "created_at", "updated_at").
		Values(inv.InvoiceNumber, inv.ClientID, inv.EventID, inv.QuoteID, inv.Status, inv.Subtotal, inv.Discount, inv.TaxRate,
			inv.TaxAmount, inv.Total, inv.AmountPaid, inv.IssueDate, inv.DueDate, inv.Notes, inv.CreatedBy,
			sq.Expr("NOW()"), sq.Expr("NOW()")).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create invoice: %w", err)
	}

	var newID uint64
	if err := tx.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return 0, apperrors.NewConflictError("счёт с номером %s уже существует", inv.InvoiceNumber)
		case pgForeignKeyViolation:
			return 0, apperrors.NewValidationError("клиент %d, мероприятие или смета не существует", inv.ClientID)
		}
		return 0, fmt.Errorf("ошибка создания invoices: %w", err)
	}

	if err := replaceLineItems(ctx, tx, invoiceItemsTable, "invoice_id", newID, inv.Items); err != nil {
		return 0, err
	}
	return newID, nil
}

func (r *invoiceRepository) UpdateItems(ctx context.Context, tx pgx.Tx, id uint64, items []entities.LineItem, totals entities.Totals) error {
	if err := replaceLineItems(ctx, tx, invoiceItemsTable, "invoice_id", id, items); err != nil {
		return err
	}

	query, args, err := psql.Update(invoiceTable).
		Set("subtotal", totals.Subtotal).
		Set("discount", totals.Discount).
		Set("tax_rate", totals.TaxRate).
		Set("tax_amount", totals.TaxAmount).
		Set("total", totals.Total).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса UpdateItems invoice: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления итогов счёта: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *invoiceRepository) UpdatePayment(ctx context.Context, tx pgx.Tx, id uint64, amountPaid decimal.Decimal, status entities.InvoiceStatus) error {
	query, args, err := psql.Update(invoiceTable).
		Set("amount_paid", amountPaid).
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса UpdatePayment: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления оплаты счёта: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uint64, status entities.InvoiceStatus) error {
	query, args, err := psql.Update(invoiceTable).
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса UpdateStatus invoice: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса счёта: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *invoiceRepository) Delete(ctx context.Context, tx pgx.Tx, id uint64) error {
	query, args, err := psql.Delete(invoiceTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Delete invoice: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return apperrors.NewValidationError("счёт %d не может быть удалён, по нему есть платежи", id)
		}
		return fmt.Errorf("ошибка удаления счёта: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *invoiceRepository) MarkOverdue(ctx context.Context, tx pgx.Tx, asOf time.Time) (int64, error) {
	query, args, err := psql.Update(invoiceTable).
		Set("status", entities.InvoiceOverdue).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"status": []entities.InvoiceStatus{entities.InvoiceSent, entities.InvoicePartiallyPaid}}).
		Where(sq.Lt{"due_date": asOf}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса MarkOverdue: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("ошибка отметки просроченных счетов: %w", err)
	}
	return result.RowsAffected(), nil
}
