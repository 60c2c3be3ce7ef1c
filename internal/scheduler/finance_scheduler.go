package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"rental-system/internal/services"
)

// FinanceScheduler периодически просрочивает счета и сметы и сообщает о невозвращённом оборудовании.
type FinanceScheduler struct {
	scheduler          gocron.Scheduler
	invoiceService     services.InvoiceServiceInterface
	quoteService       services.QuoteServiceInterface
	transactionService services.TransactionServiceInterface
	interval           time.Duration
	logger             *zap.Logger
}

func NewFinanceScheduler(
	invoiceService services.InvoiceServiceInterface,
	quoteService services.QuoteServiceInterface,
	transactionService services.TransactionServiceInterface,
	interval time.Duration,
	logger *zap.Logger,
) (*FinanceScheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("не удалось создать планировщик: %w", err)
	}
	return &FinanceScheduler{
		scheduler:          s,
		invoiceService:     invoiceService,
		quoteService:       quoteService,
		transactionService: transactionService,
		interval:           interval,
		logger:             logger,
	}, nil
}

// Start регистрирует задачу и запускает планировщик. Первый проход выполняется сразу.
func (f *FinanceScheduler) Start(ctx context.Context) error {
	_, err := f.scheduler.NewJob(
		gocron.DurationJob(f.interval),
		gocron.NewTask(func() { f.RunOnce(ctx, time.Now()) }),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать задачу просрочки: %w", err)
	}

	f.scheduler.Start()
	f.logger.Info("Планировщик просрочки запущен", zap.Duration("interval", f.interval))
	return nil
}

// RunOnce - один проход. Ошибка одного шага не мешает остальным.
func (f *FinanceScheduler) RunOnce(ctx context.Context, asOf time.Time) {
	if res, err := f.invoiceService.MarkOverdueInvoices(ctx, asOf); err != nil {
		f.logger.Error("Не удалось отметить просроченные счета", zap.Error(err))
	} else if res.Affected > 0 {
		f.logger.Info("Отмечены просроченные счета", zap.Int64("count", res.Affected))
	}

	if res, err := f.quoteService.ExpireQuotes(ctx, asOf); err != nil {
		f.logger.Error("Не удалось просрочить сметы", zap.Error(err))
	} else if res.Affected > 0 {
		f.logger.Info("Просрочены сметы", zap.Int64("count", res.Affected))
	}

	overdue, err := f.transactionService.ListOverdueReturns(ctx, asOf)
	if err != nil {
		f.logger.Error("Не удалось получить невозвращённое оборудование", zap.Error(err))
		return
	}
	for _, o := range overdue {
		f.logger.Warn("Оборудование не возвращено после мероприятия",
			zap.Uint64("event_id", o.EventID),
			zap.String("event", o.EventName),
			zap.Time("event_end_date", o.EventEndDate),
			zap.Uint64("equipment_id", o.EquipmentID),
			zap.String("equipment", o.EquipmentName),
		)
	}
}

func (f *FinanceScheduler) Shutdown() error {
	return f.scheduler.Shutdown()
}
