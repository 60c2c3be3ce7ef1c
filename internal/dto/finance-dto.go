package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"rental-system/internal/entities"
)

type LineItemDTO struct {
	EquipmentID *uint64         `json:"equipment_id"`
	Description string          `json:"description" validate:"required,not_blank"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"decimal_nonnegative"`
}

type CreateQuoteDTO struct {
	ClientID   uint64              `json:"client_id" validate:"required"`
	EventID    *uint64             `json:"event_id"`
	Items      []LineItemDTO       `json:"items" validate:"dive"`
	Discount   decimal.NullDecimal `json:"discount" validate:"omitempty,decimal_nonnegative"`
	TaxRate    decimal.NullDecimal `json:"tax_rate" validate:"omitempty,decimal_nonnegative"`
	ValidUntil *time.Time          `json:"valid_until"`
	Notes      *string             `json:"notes"`
}

// UpdateItemsDTO заменяет строки черновика целиком и пересчитывает итоги.
type UpdateItemsDTO struct {
	Items    []LineItemDTO       `json:"items" validate:"dive"`
	Discount decimal.NullDecimal `json:"discount" validate:"omitempty,decimal_nonnegative"`
	TaxRate  decimal.NullDecimal `json:"tax_rate" validate:"omitempty,decimal_nonnegative"`
}

type CreateInvoiceDTO struct {
	ClientID uint64              `json:"client_id" validate:"required"`
	EventID  *uint64             `json:"event_id"`
	Items    []LineItemDTO       `json:"items" validate:"dive"`
	Discount decimal.NullDecimal `json:"discount" validate:"omitempty,decimal_nonnegative"`
	TaxRate  decimal.NullDecimal `json:"tax_rate" validate:"omitempty,decimal_nonnegative"`
	DueDate  *time.Time          `json:"due_date"`
	Notes    *string             `json:"notes"`
}

type CreatePaymentDTO struct {
	Amount    decimal.Decimal        `json:"amount" validate:"decimal_positive"`
	Method    entities.PaymentMethod `json:"method" validate:"required,enum"`
	Reference *string                `json:"reference"`
	PaidAt    *time.Time             `json:"paid_at"`
	Notes     *string                `json:"notes"`
}

type BatchResultDTO struct {
	Affected int64 `json:"affected"`
}
