package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"rental-system/internal/entities"
	"rental-system/internal/repositories"
)

// documentNumberer выдаёт номера QT-/INV- из счётчика document_counters.
// Счётчик инкрементируется внутри транзакции документа и откатывается вместе с ней.
type documentNumberer struct {
	counterRepo repositories.CounterRepositoryInterface
}

func (n documentNumberer) next(ctx context.Context, tx pgx.Tx, prefix string, at time.Time) (string, error) {
	period := entities.NumberPeriod(at)
	seq, err := n.counterRepo.Next(ctx, tx, prefix, period)
	if err != nil {
		return "", err
	}
	return entities.FormatDocumentNumber(prefix, period, seq), nil
}
