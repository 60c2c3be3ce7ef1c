package services

import (
	"errors"
	"sort"
	"time"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
)

// timeNow подменяется в тестах.
var timeNow = time.Now

// wrapNotFound заменяет голый ErrNotFound из репозитория доменной ошибкой с понятным сообщением.
// Доменные ошибки и прочие сбои возвращаются как есть.
func wrapNotFound(err error, format string, args ...interface{}) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NewNotFoundError(format, args...)
	}
	return err
}

// dateOnly отбрасывает время: даты мероприятий и сроки документов хранятся как DATE.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func lineItemsFromDTO(items []dto.LineItemDTO) []entities.LineItem {
	result := make([]entities.LineItem, 0, len(items))
	for _, it := range items {
		result = append(result, entities.LineItem{
			EquipmentID: it.EquipmentID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return result
}

// firstDuplicate возвращает первый повторяющийся id.
func firstDuplicate(ids []uint64) (uint64, bool) {
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id, true
		}
		seen[id] = true
	}
	return 0, false
}

// sortedCopy - id по возрастанию, в этом порядке берутся блокировки оборудования.
func sortedCopy(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
