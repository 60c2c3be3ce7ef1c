package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/internal/repositories"
	"rental-system/pkg/config"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/types"
	"rental-system/pkg/utils"
)

type InvoiceServiceInterface interface {
	CreateInvoice(ctx context.Context, payload dto.CreateInvoiceDTO) (*entities.Invoice, error)
	UpdateInvoiceItems(ctx context.Context, id uint64, payload dto.UpdateItemsDTO) (*entities.Invoice, error)
	DeleteInvoice(ctx context.Context, id uint64) error
	SendInvoice(ctx context.Context, id uint64) (*entities.Invoice, error)
	CancelInvoice(ctx context.Context, id uint64) (*entities.Invoice, error)
	MarkOverdueInvoices(ctx context.Context, asOf time.Time) (*dto.BatchResultDTO, error)
	FindInvoice(ctx context.Context, id uint64) (*entities.Invoice, error)
	GetInvoices(ctx context.Context, filter types.Filter) ([]*entities.Invoice, uint64, error)

	CreatePayment(ctx context.Context, invoiceID uint64, payload dto.CreatePaymentDTO) (*entities.Payment, error)
	DeletePayment(ctx context.Context, invoiceID, paymentID uint64) (*entities.Invoice, error)
	GetPayments(ctx context.Context, invoiceID uint64) ([]*entities.Payment, error)
}

type InvoiceService struct {
	invoiceRepo   repositories.InvoiceRepositoryInterface
	paymentRepo   repositories.PaymentRepositoryInterface
	eventRepo     repositories.EventRepositoryInterface
	directoryRepo repositories.DirectoryRepositoryInterface
	numbers       documentNumberer
	txManager     repositories.TxManagerInterface
	publisher     PublisherInterface
	finance       config.FinanceConfig
	logger        *zap.Logger
}

func NewInvoiceService(
	invoiceRepo repositories.InvoiceRepositoryInterface,
	paymentRepo repositories.PaymentRepositoryInterface,
	eventRepo repositories.EventRepositoryInterface,
	directoryRepo repositories.DirectoryRepositoryInterface,
	counterRepo repositories.CounterRepositoryInterface,
	txManager repositories.TxManagerInterface,
	publisher PublisherInterface,
	finance config.FinanceConfig,
	logger *zap.Logger,
) InvoiceServiceInterface {
	return &InvoiceService{
		invoiceRepo:   invoiceRepo,
		paymentRepo:   paymentRepo,
		eventRepo:     eventRepo,
		directoryRepo: directoryRepo,
		numbers:       documentNumberer{counterRepo: counterRepo},
		txManager:     txManager,
		publisher:     publisher,
		finance:       finance,
		logger:        logger,
	}
}

// lockEditableDraft - счёт под блокировкой, если он черновик без платежей.
func (s *InvoiceService) lockEditableDraft(ctx context.Context, tx pgx.Tx, id uint64, op string) (*entities.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, wrapNotFound(err, "счёт %d не найден", id)
	}
	if invoice.Status != entities.InvoiceDraft {
		return nil, apperrors.NewValidationError(
			"%s счёта %s возможно только в черновике, текущий статус %s", op, invoice.InvoiceNumber, invoice.Status,
		).With("invoice_id", id).With("current_status", invoice.Status)
	}
	payments, err := s.paymentRepo.CountByInvoice(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if payments > 0 {
		return nil, apperrors.NewValidationError(
			"%s счёта %s невозможно: по нему есть платежи (%d)", op, invoice.InvoiceNumber, payments,
		).With("invoice_id", id)
	}
	return invoice, nil
}

func (s *InvoiceService) CreateInvoice(ctx context.Context, payload dto.CreateInvoiceDTO) (*entities.Invoice, error) {
	items, totals, err := computeDocumentTotals(lineItemsFromDTO(payload.Items), payload.Discount, payload.TaxRate, s.finance.DefaultTaxRate)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	issueDate := dateOnly(now)
	dueDate := issueDate.AddDate(0, 0, s.finance.PaymentTermsDays)
	if payload.DueDate != nil {
		dueDate = dateOnly(*payload.DueDate)
	}
	if dueDate.Before(issueDate) {
		return nil, apperrors.NewValidationError(
			"срок оплаты %s раньше даты выставления %s", dueDate.Format(entities.DateLayout), issueDate.Format(entities.DateLayout),
		)
	}

	var created *entities.Invoice
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := ensureDocumentParties(ctx, tx, s.directoryRepo, s.eventRepo, payload.ClientID, payload.EventID); err != nil {
			return err
		}
		number, err := s.numbers.next(ctx, tx, entities.InvoiceNumberPrefix, now)
		if err != nil {
			return err
		}

		id, err := s.invoiceRepo.Create(ctx, tx, entities.Invoice{
			InvoiceNumber: number,
			ClientID:      payload.ClientID,
			EventID:       payload.EventID,
			Status:        entities.InvoiceDraft,
			Totals:        totals,
			AmountPaid:    decimal.Zero,
			IssueDate:     issueDate,
			DueDate:       dueDate,
			Notes:         payload.Notes,
			CreatedBy:     utils.ActorIDFromCtx(ctx),
			Items:         items,
		})
		if err != nil {
			return err
		}
		created, err = s.invoiceRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Выставлен счёт", zap.String("number", created.InvoiceNumber), zap.String("total", created.Total.StringFixed(2)))
	s.publisher.ActionLogged(ctx, actionCreated, entityInvoice, created.ID, map[string]interface{}{
		"number": created.InvoiceNumber,
		"total":  created.Total.StringFixed(2),
	})
	return created, nil
}

func (s *InvoiceService) UpdateInvoiceItems(ctx context.Context, id uint64, payload dto.UpdateItemsDTO) (*entities.Invoice, error) {
	var updated *entities.Invoice
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		invoice, err := s.lockEditableDraft(ctx, tx, id, "изменение строк")
		if err != nil {
			return err
		}

		discount := payload.Discount
		if !discount.Valid {
			discount = decimal.NewNullDecimal(invoice.Discount)
		}
		taxRate := payload.TaxRate
		if !taxRate.Valid {
			taxRate = decimal.NewNullDecimal(invoice.TaxRate)
		}
		items, totals, err := computeDocumentTotals(lineItemsFromDTO(payload.Items), discount, taxRate, s.finance.DefaultTaxRate)
		if err != nil {
			return err
		}
		if err := s.invoiceRepo.UpdateItems(ctx, tx, id, items, totals); err != nil {
			return err
		}
		updated, err = s.invoiceRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionUpdated, entityInvoice, id, map[string]interface{}{"total": updated.Total.StringFixed(2)})
	return updated, nil
}

func (s *InvoiceService) DeleteInvoice(ctx context.Context, id uint64) error {
	var number string
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		invoice, err := s.lockEditableDraft(ctx, tx, id, "удаление")
		if err != nil {
			return err
		}
		number = invoice.InvoiceNumber
		return s.invoiceRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.publisher.ActionLogged(ctx, actionDeleted, entityInvoice, id, map[string]interface{}{"number": number})
	return nil
}

func (s *InvoiceService) SendInvoice(ctx context.Context, id uint64) (*entities.Invoice, error) {
	var sent *entities.Invoice
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "счёт %d не найден", id)
		}
		if invoice.Status != entities.InvoiceDraft {
			return apperrors.NewValidationError(
				"отправить можно только черновик, счёт %s в статусе %s", invoice.InvoiceNumber, invoice.Status,
			).With("invoice_id", id).With("current_status", invoice.Status)
		}
		if len(invoice.Items) == 0 {
			return apperrors.NewValidationError("счёт %s не содержит строк", invoice.InvoiceNumber).With("invoice_id", id)
		}
		if err := s.invoiceRepo.UpdateStatus(ctx, tx, id, entities.InvoiceSent); err != nil {
			return err
		}
		sent, err = s.invoiceRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionSent, entityInvoice, id, map[string]interface{}{"number": sent.InvoiceNumber})
	return sent, nil
}

// CancelInvoice отменяет неоплаченный счёт без платежей.
func (s *InvoiceService) CancelInvoice(ctx context.Context, id uint64) (*entities.Invoice, error) {
	var cancelled *entities.Invoice
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "счёт %d не найден", id)
		}
		if invoice.Status == entities.InvoicePaid || invoice.Status == entities.InvoiceCancelled {
			return apperrors.NewValidationError(
				"счёт %s в статусе %s нельзя отменить", invoice.InvoiceNumber, invoice.Status,
			).With("invoice_id", id).With("current_status", invoice.Status)
		}
		payments, err := s.paymentRepo.CountByInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		if payments > 0 {
			return apperrors.NewValidationError(
				"счёт %s нельзя отменить: по нему есть платежи на %s", invoice.InvoiceNumber, invoice.AmountPaid.StringFixed(2),
			).With("invoice_id", id)
		}
		if err := s.invoiceRepo.UpdateStatus(ctx, tx, id, entities.InvoiceCancelled); err != nil {
			return err
		}
		cancelled, err = s.invoiceRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionCancelled, entityInvoice, id, map[string]interface{}{"number": cancelled.InvoiceNumber})
	return cancelled, nil
}

func (s *InvoiceService) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (*dto.BatchResultDTO, error) {
	result := &dto.BatchResultDTO{}
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		affected, err := s.invoiceRepo.MarkOverdue(ctx, tx, dateOnly(asOf))
		result.Affected = affected
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Affected > 0 {
		s.logger.Info("Счета просрочены", zap.Int64("count", result.Affected))
		s.publisher.ActionLogged(ctx, actionBatchOverdue, entityInvoice, 0, map[string]interface{}{
			"count": result.Affected,
			"as_of": asOf.Format(entities.DateLayout),
		})
	}
	return result, nil
}

func (s *InvoiceService) FindInvoice(ctx context.Context, id uint64) (*entities.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, wrapNotFound(err, "счёт %d не найден", id)
	}
	return invoice, nil
}

func (s *InvoiceService) GetInvoices(ctx context.Context, filter types.Filter) ([]*entities.Invoice, uint64, error) {
	return s.invoiceRepo.GetAll(ctx, filter)
}

// CreatePayment зачисляет платёж. Сумма не может превышать остаток к оплате,
// amountPaid и статус меняются под блокировкой счёта.
func (s *InvoiceService) CreatePayment(ctx context.Context, invoiceID uint64, payload dto.CreatePaymentDTO) (*entities.Payment, error) {
	if !payload.Amount.IsPositive() {
		return nil, apperrors.NewValidationError("сумма платежа должна быть больше нуля")
	}

	var (
		created *entities.Payment
		status  entities.InvoiceStatus
		balance decimal.Decimal
	)
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return wrapNotFound(err, "счёт %d не найден", invoiceID)
		}
		if invoice.Status == entities.InvoiceCancelled {
			return apperrors.NewValidationError("счёт %s отменён, платежи не принимаются", invoice.InvoiceNumber).
				With("invoice_id", invoiceID)
		}
		due := invoice.BalanceDue()
		if payload.Amount.GreaterThan(due) {
			return apperrors.NewValidationError(
				"платёж %s превышает остаток к оплате %s по счёту %s",
				payload.Amount.StringFixed(2), due.StringFixed(2), invoice.InvoiceNumber,
			).With("invoice_id", invoiceID).With("balance_due", due.StringFixed(2))
		}

		paidAt := timeNow()
		if payload.PaidAt != nil {
			paidAt = *payload.PaidAt
		}
		id, err := s.paymentRepo.Create(ctx, tx, entities.Payment{
			InvoiceID: invoiceID,
			Amount:    payload.Amount,
			Method:    payload.Method,
			Reference: payload.Reference,
			PaidAt:    paidAt,
			Notes:     payload.Notes,
			CreatedBy: utils.ActorIDFromCtx(ctx),
		})
		if err != nil {
			return err
		}

		invoice.AmountPaid = invoice.AmountPaid.Add(payload.Amount)
		status = invoice.StatusAfterPayment()
		balance = invoice.BalanceDue()
		if err := s.invoiceRepo.UpdatePayment(ctx, tx, invoiceID, invoice.AmountPaid, status); err != nil {
			return err
		}
		created, err = s.paymentRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Зачислен платёж",
		zap.Uint64("invoice_id", invoiceID),
		zap.String("amount", created.Amount.StringFixed(2)),
		zap.String("status", string(status)),
	)
	s.publisher.ActionLogged(ctx, actionCreated, entityPayment, created.ID, map[string]interface{}{
		"invoice_id":     invoiceID,
		"amount":         created.Amount.StringFixed(2),
		"invoice_status": status,
		"balance_due":    balance.StringFixed(2),
	})
	return created, nil
}

// DeletePayment удаляет платёж и пересчитывает amountPaid по оставшимся платежам.
func (s *InvoiceService) DeletePayment(ctx context.Context, invoiceID, paymentID uint64) (*entities.Invoice, error) {
	var updated *entities.Invoice
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return wrapNotFound(err, "счёт %d не найден", invoiceID)
		}
		payment, err := s.paymentRepo.FindByID(ctx, tx, paymentID)
		if err != nil {
			return wrapNotFound(err, "платёж %d не найден", paymentID)
		}
		if payment.InvoiceID != invoiceID {
			return apperrors.NewNotFoundError("платёж %d не относится к счёту %s", paymentID, invoice.InvoiceNumber)
		}
		if err := s.paymentRepo.Delete(ctx, tx, paymentID); err != nil {
			return err
		}

		paid, err := s.paymentRepo.SumByInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		invoice.AmountPaid = paid
		if err := s.invoiceRepo.UpdatePayment(ctx, tx, invoiceID, paid, invoice.StatusAfterPaymentRemoval()); err != nil {
			return err
		}
		updated, err = s.invoiceRepo.FindByID(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionDeleted, entityPayment, paymentID, map[string]interface{}{
		"invoice_id":     invoiceID,
		"invoice_status": updated.Status,
		"amount_paid":    updated.AmountPaid.StringFixed(2),
	})
	return updated, nil
}

func (s *InvoiceService) GetPayments(ctx context.Context, invoiceID uint64) ([]*entities.Payment, error) {
	if _, err := s.invoiceRepo.FindByID(ctx, nil, invoiceID); err != nil {
		return nil, wrapNotFound(err, "счёт %d не найден", invoiceID)
	}
	return s.paymentRepo.GetByInvoiceID(ctx, nil, invoiceID)
}
