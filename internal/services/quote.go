package services

import (
	"context"
	"errors"
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

type QuoteServiceInterface interface {
	CreateQuote(ctx context.Context, payload dto.CreateQuoteDTO) (*entities.Quote, error)
	UpdateQuoteItems(ctx context.Context, id uint64, payload dto.UpdateItemsDTO) (*entities.Quote, error)
	SendQuote(ctx context.Context, id uint64) (*entities.Quote, error)
	AcceptQuote(ctx context.Context, id uint64) (*entities.Quote, error)
	RejectQuote(ctx context.Context, id uint64) (*entities.Quote, error)
	// ExpireQuotes переводит отправленные сметы с истёкшим сроком в EXPIRED.
	ExpireQuotes(ctx context.Context, asOf time.Time) (*dto.BatchResultDTO, error)
	ConvertQuoteToInvoice(ctx context.Context, id uint64) (*entities.Invoice, error)
	FindQuote(ctx context.Context, id uint64) (*entities.Quote, error)
	GetQuotes(ctx context.Context, filter types.Filter) ([]*entities.Quote, uint64, error)
}

type QuoteService struct {
	quoteRepo     repositories.QuoteRepositoryInterface
	invoiceRepo   repositories.InvoiceRepositoryInterface
	eventRepo     repositories.EventRepositoryInterface
	directoryRepo repositories.DirectoryRepositoryInterface
	numbers       documentNumberer
	txManager     repositories.TxManagerInterface
	publisher     PublisherInterface
	finance       config.FinanceConfig
	logger        *zap.Logger
}

func NewQuoteService(
	quoteRepo repositories.QuoteRepositoryInterface,
	invoiceRepo repositories.InvoiceRepositoryInterface,
	eventRepo repositories.EventRepositoryInterface,
	directoryRepo repositories.DirectoryRepositoryInterface,
	counterRepo repositories.CounterRepositoryInterface,
	txManager repositories.TxManagerInterface,
	publisher PublisherInterface,
	finance config.FinanceConfig,
	logger *zap.Logger,
) QuoteServiceInterface {
	return &QuoteService{
		quoteRepo:     quoteRepo,
		invoiceRepo:   invoiceRepo,
		eventRepo:     eventRepo,
		directoryRepo: directoryRepo,
		numbers:       documentNumberer{counterRepo: counterRepo},
		txManager:     txManager,
		publisher:     publisher,
		finance:       finance,
		logger:        logger,
	}
}

// computeDocumentTotals пересчитывает строки и итоги. Ошибка расчёта - всегда ошибка входных данных.
func computeDocumentTotals(items []entities.LineItem, discount, taxRate decimal.NullDecimal, defaultTaxRate decimal.Decimal) ([]entities.LineItem, entities.Totals, error) {
	d := decimal.Zero
	if discount.Valid {
		d = discount.Decimal
	}
	rate := defaultTaxRate
	if taxRate.Valid {
		rate = taxRate.Decimal
	}
	computed, totals, err := entities.ComputeTotals(items, d, rate)
	if err != nil {
		return nil, entities.Totals{}, apperrors.NewValidationError("%s", err.Error())
	}
	return computed, totals, nil
}

// ensureDocumentParties проверяет клиента и, если указано, принадлежность мероприятия клиенту.
func ensureDocumentParties(
	ctx context.Context,
	tx pgx.Tx,
	directory repositories.DirectoryRepositoryInterface,
	eventRepo repositories.EventRepositoryInterface,
	clientID uint64,
	eventID *uint64,
) error {
	if _, err := ensureActiveClient(ctx, directory, tx, clientID); err != nil {
		return err
	}
	if eventID == nil {
		return nil
	}
	event, err := eventRepo.FindByID(ctx, tx, *eventID)
	if err != nil {
		return wrapNotFound(err, "мероприятие %d не найдено", *eventID)
	}
	if event.ClientID != clientID {
		return apperrors.NewValidationError(
			"мероприятие %s принадлежит другому клиенту", event.Label(),
		).With("event_id", event.ID).With("client_id", clientID)
	}
	return nil
}

func quoteTransitionError(q *entities.Quote, next entities.QuoteStatus) error {
	return apperrors.NewValidationError(
		"смета %s в статусе %s не может перейти в %s", q.QuoteNumber, q.Status, next,
	).With("quote_id", q.ID).With("current_status", q.Status)
}

func (s *QuoteService) CreateQuote(ctx context.Context, payload dto.CreateQuoteDTO) (*entities.Quote, error) {
	items, totals, err := computeDocumentTotals(lineItemsFromDTO(payload.Items), payload.Discount, payload.TaxRate, s.finance.DefaultTaxRate)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	validUntil := dateOnly(now).AddDate(0, 0, s.finance.QuoteValidityDays)
	if payload.ValidUntil != nil {
		validUntil = dateOnly(*payload.ValidUntil)
	}
	if validUntil.Before(dateOnly(now)) {
		return nil, apperrors.NewValidationError("срок действия сметы %s уже прошёл", validUntil.Format(entities.DateLayout))
	}

	var created *entities.Quote
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := ensureDocumentParties(ctx, tx, s.directoryRepo, s.eventRepo, payload.ClientID, payload.EventID); err != nil {
			return err
		}
		number, err := s.numbers.next(ctx, tx, entities.QuoteNumberPrefix, now)
		if err != nil {
			return err
		}

		id, err := s.quoteRepo.Create(ctx, tx, entities.Quote{
			QuoteNumber: number,
			ClientID:    payload.ClientID,
			EventID:     payload.EventID,
			Status:      entities.QuoteDraft,
			Totals:      totals,
			ValidUntil:  &validUntil,
			Notes:       payload.Notes,
			CreatedBy:   utils.ActorIDFromCtx(ctx),
			Items:       items,
		})
		if err != nil {
			return err
		}
		created, err = s.quoteRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Создана смета", zap.String("number", created.QuoteNumber), zap.String("total", created.Total.StringFixed(2)))
	s.publisher.ActionLogged(ctx, actionCreated, entityQuote, created.ID, map[string]interface{}{
		"number": created.QuoteNumber,
		"total":  created.Total.StringFixed(2),
	})
	return created, nil
}

func (s *QuoteService) UpdateQuoteItems(ctx context.Context, id uint64, payload dto.UpdateItemsDTO) (*entities.Quote, error) {
	var updated *entities.Quote
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		quote, err := s.quoteRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "смета %d не найдена", id)
		}
		if quote.Status != entities.QuoteDraft {
			return apperrors.NewValidationError(
				"строки сметы %s можно менять только в черновике, текущий статус %s", quote.QuoteNumber, quote.Status,
			).With("quote_id", id)
		}

		discount := payload.Discount
		if !discount.Valid {
			discount = decimal.NewNullDecimal(quote.Discount)
		}
		taxRate := payload.TaxRate
		if !taxRate.Valid {
			taxRate = decimal.NewNullDecimal(quote.TaxRate)
		}
		items, totals, err := computeDocumentTotals(lineItemsFromDTO(payload.Items), discount, taxRate, s.finance.DefaultTaxRate)
		if err != nil {
			return err
		}
		if err := s.quoteRepo.UpdateItems(ctx, tx, id, items, totals); err != nil {
			return err
		}
		updated, err = s.quoteRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionUpdated, entityQuote, id, map[string]interface{}{"total": updated.Total.StringFixed(2)})
	return updated, nil
}

// SendQuote отправляет смету клиенту. Черновое мероприятие сметы переходит в QUOTED.
func (s *QuoteService) SendQuote(ctx context.Context, id uint64) (*entities.Quote, error) {
	var sent *entities.Quote
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		current, err := s.quoteRepo.FindByID(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "смета %d не найдена", id)
		}
		var event *entities.Event
		if current.EventID != nil {
			event, err = s.eventRepo.FindByIDForUpdate(ctx, tx, *current.EventID)
			if err != nil {
				return wrapNotFound(err, "мероприятие %d не найдено", *current.EventID)
			}
		}

		quote, err := s.quoteRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "смета %d не найдена", id)
		}
		if !quote.Status.CanTransitionTo(entities.QuoteSent) {
			return quoteTransitionError(quote, entities.QuoteSent)
		}
		if len(quote.Items) == 0 {
			return apperrors.NewValidationError("смета %s не содержит строк", quote.QuoteNumber).With("quote_id", id)
		}
		if err := s.quoteRepo.UpdateStatus(ctx, tx, id, entities.QuoteSent); err != nil {
			return err
		}
		if event != nil && event.Status == entities.EventDraft {
			if err := s.eventRepo.UpdateStatus(ctx, tx, event.ID, entities.EventQuoted); err != nil {
				return err
			}
		}

		sent, err = s.quoteRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, actionSent, entityQuote, id, map[string]interface{}{"number": sent.QuoteNumber})
	return sent, nil
}

func (s *QuoteService) AcceptQuote(ctx context.Context, id uint64) (*entities.Quote, error) {
	return s.resolve(ctx, id, entities.QuoteAccepted, actionAccepted)
}

func (s *QuoteService) RejectQuote(ctx context.Context, id uint64) (*entities.Quote, error) {
	return s.resolve(ctx, id, entities.QuoteRejected, actionRejected)
}

// resolve фиксирует ответ клиента. Принять истёкшую смету нельзя.
func (s *QuoteService) resolve(ctx context.Context, id uint64, next entities.QuoteStatus, action string) (*entities.Quote, error) {
	var resolved *entities.Quote
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		quote, err := s.quoteRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "смета %d не найдена", id)
		}
		if !quote.Status.CanTransitionTo(next) {
			return quoteTransitionError(quote, next)
		}
		if next == entities.QuoteAccepted && quote.ValidUntil != nil && quote.ValidUntil.Before(dateOnly(timeNow())) {
			return apperrors.NewValidationError(
				"срок действия сметы %s истёк %s", quote.QuoteNumber, quote.ValidUntil.Format(entities.DateLayout),
			).With("quote_id", id)
		}
		if err := s.quoteRepo.UpdateStatus(ctx, tx, id, next); err != nil {
			return err
		}
		resolved, err = s.quoteRepo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.ActionLogged(ctx, action, entityQuote, id, map[string]interface{}{"number": resolved.QuoteNumber})
	return resolved, nil
}

func (s *QuoteService) ExpireQuotes(ctx context.Context, asOf time.Time) (*dto.BatchResultDTO, error) {
	result := &dto.BatchResultDTO{}
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		affected, err := s.quoteRepo.ExpireSent(ctx, tx, dateOnly(asOf))
		result.Affected = affected
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Affected > 0 {
		s.logger.Info("Сметы просрочены", zap.Int64("count", result.Affected))
		s.publisher.ActionLogged(ctx, actionBatchExpire, entityQuote, 0, map[string]interface{}{
			"count": result.Affected,
			"as_of": asOf.Format(entities.DateLayout),
		})
	}
	return result, nil
}

// ConvertQuoteToInvoice выставляет черновой счёт по принятой смете. По одной смете - один действующий счёт.
func (s *QuoteService) ConvertQuoteToInvoice(ctx context.Context, id uint64) (*entities.Invoice, error) {
	var created *entities.Invoice
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		quote, err := s.quoteRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return wrapNotFound(err, "смета %d не найдена", id)
		}
		if quote.Status != entities.QuoteAccepted {
			return apperrors.NewValidationError(
				"счёт выставляется только по принятой смете, смета %s в статусе %s", quote.QuoteNumber, quote.Status,
			).With("quote_id", id)
		}

		existing, err := s.invoiceRepo.FindByQuoteID(ctx, tx, id)
		switch {
		case err == nil:
			return apperrors.NewConflictError(
				"по смете %s уже выставлен счёт %s", quote.QuoteNumber, existing.InvoiceNumber,
			).With("invoice_id", existing.ID)
		case !errors.Is(err, apperrors.ErrNotFound):
			return err
		}

		items := make([]entities.LineItem, 0, len(quote.Items))
		for _, it := range quote.Items {
			items = append(items, entities.LineItem{
				EquipmentID: it.EquipmentID,
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
			})
		}
		items, totals, err := computeDocumentTotals(items, decimal.NewNullDecimal(quote.Discount), decimal.NewNullDecimal(quote.TaxRate), s.finance.DefaultTaxRate)
		if err != nil {
			return err
		}

		now := timeNow()
		number, err := s.numbers.next(ctx, tx, entities.InvoiceNumberPrefix, now)
		if err != nil {
			return err
		}
		quoteID := quote.ID
		invoiceID, err := s.invoiceRepo.Create(ctx, tx, entities.Invoice{
			InvoiceNumber: number,
			ClientID:      quote.ClientID,
			EventID:       quote.EventID,
			QuoteID:       &quoteID,
			Status:        entities.InvoiceDraft,
			Totals:        totals,
			AmountPaid:    decimal.Zero,
			IssueDate:     dateOnly(now),
			DueDate:       dateOnly(now).AddDate(0, 0, s.finance.PaymentTermsDays),
			Notes:         quote.Notes,
			CreatedBy:     utils.ActorIDFromCtx(ctx),
			Items:         items,
		})
		if err != nil {
			return err
		}
		created, err = s.invoiceRepo.FindByID(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Смета переведена в счёт", zap.Uint64("quote_id", id), zap.String("invoice", created.InvoiceNumber))
	s.publisher.ActionLogged(ctx, actionConverted, entityQuote, id, map[string]interface{}{"invoice_id": created.ID})
	s.publisher.ActionLogged(ctx, actionCreated, entityInvoice, created.ID, map[string]interface{}{
		"number":   created.InvoiceNumber,
		"quote_id": id,
		"total":    created.Total.StringFixed(2),
	})
	return created, nil
}

func (s *QuoteService) FindQuote(ctx context.Context, id uint64) (*entities.Quote, error) {
	quote, err := s.quoteRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, wrapNotFound(err, "смета %d не найдена", id)
	}
	return quote, nil
}

func (s *QuoteService) GetQuotes(ctx context.Context, filter types.Filter) ([]*entities.Quote, uint64, error) {
	return s.quoteRepo.GetAll(ctx, filter)
}
