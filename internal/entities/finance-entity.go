package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"rental-system/pkg/types"
)

const (
	QuoteNumberPrefix   = "QT"
	InvoiceNumberPrefix = "INV"
)

var hundred = decimal.NewFromInt(100)

type LineItem struct {
	ID          uint64          `json:"id" db:"id"`
	EquipmentID *uint64         `json:"equipment_id" db:"equipment_id"`
	Description string          `json:"description" db:"description"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total" db:"line_total"`
	SortOrder   int             `json:"sort_order" db:"sort_order"`
}

// Totals - производные суммы документа. Отдельно не редактируются.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
	Discount  decimal.Decimal `json:"discount" db:"discount"`
	TaxRate   decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	TaxAmount decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	Total     decimal.Decimal `json:"total" db:"total"`
}

// ComputeTotals пересчитывает суммы строк и итог документа:
// subtotal = Σ qty×price, tax = (subtotal − discount)×rate/100, total = subtotal − discount + tax.
func ComputeTotals(items []LineItem, discount, taxRate decimal.Decimal) ([]LineItem, Totals, error) {
	if discount.IsNegative() {
		return nil, Totals{}, fmt.Errorf("скидка не может быть отрицательной")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return nil, Totals{}, fmt.Errorf("ставка налога должна быть от 0 до 100, получено %s", taxRate.String())
	}

	subtotal := decimal.Zero
	computed := make([]LineItem, len(items))
	for i, item := range items {
		if item.Quantity < 1 {
			return nil, Totals{}, fmt.Errorf("строка %d: количество должно быть не меньше 1", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return nil, Totals{}, fmt.Errorf("строка %d: цена не может быть отрицательной", i+1)
		}
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		item.SortOrder = i
		subtotal = subtotal.Add(item.LineTotal)
		computed[i] = item
	}

	if discount.GreaterThan(subtotal) {
		return nil, Totals{}, fmt.Errorf("скидка %s превышает сумму строк %s", discount.StringFixed(2), subtotal.StringFixed(2))
	}

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxRate).Div(hundred).Round(2)

	return computed, Totals{
		Subtotal:  subtotal,
		Discount:  discount,
		TaxRate:   taxRate,
		TaxAmount: tax,
		Total:     taxable.Add(tax),
	}, nil
}

type Quote struct {
	ID          uint64      `json:"id" db:"id"`
	QuoteNumber string      `json:"quote_number" db:"quote_number"`
	ClientID    uint64      `json:"client_id" db:"client_id"`
	EventID     *uint64     `json:"event_id" db:"event_id"`
	Status      QuoteStatus `json:"status" db:"status"`
	Totals
	ValidUntil *time.Time `json:"valid_until" db:"valid_until"`
	Notes      *string    `json:"notes" db:"notes"`
	CreatedBy  *uint64    `json:"created_by" db:"created_by"`

	types.BaseEntity

	Items []LineItem `json:"items" db:"-"`
}

type Invoice struct {
	ID            uint64        `json:"id" db:"id"`
	InvoiceNumber string        `json:"invoice_number" db:"invoice_number"`
	ClientID      uint64        `json:"client_id" db:"client_id"`
	EventID       *uint64       `json:"event_id" db:"event_id"`
	QuoteID       *uint64       `json:"quote_id" db:"quote_id"`
	Status        InvoiceStatus `json:"status" db:"status"`
	Totals
	AmountPaid decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	IssueDate  time.Time       `json:"issue_date" db:"issue_date"`
	DueDate    time.Time       `json:"due_date" db:"due_date"`
	Notes      *string         `json:"notes" db:"notes"`
	CreatedBy  *uint64         `json:"created_by" db:"created_by"`

	types.BaseEntity

	Items []LineItem `json:"items" db:"-"`
}

// BalanceDue - остаток к оплате: total − amountPaid.
func (i *Invoice) BalanceDue() decimal.Decimal {
	return i.Total.Sub(i.AmountPaid)
}

// StatusAfterPayment - статус после зачисления платежа.
func (i *Invoice) StatusAfterPayment() InvoiceStatus {
	if !i.BalanceDue().IsPositive() {
		return InvoicePaid
	}
	if i.AmountPaid.IsPositive() {
		return InvoicePartiallyPaid
	}
	return i.Status
}

// StatusAfterPaymentRemoval - статус после удаления платежа и пересчёта amountPaid.
// Отменённый счёт остаётся отменённым.
func (i *Invoice) StatusAfterPaymentRemoval() InvoiceStatus {
	switch {
	case i.Status == InvoiceCancelled:
		return InvoiceCancelled
	case i.AmountPaid.IsZero():
		return InvoiceSent
	case i.BalanceDue().IsPositive():
		return InvoicePartiallyPaid
	default:
		return InvoicePaid
	}
}

// IsOverdueAt - отправленный и не оплаченный полностью счёт с истёкшим сроком.
func (i *Invoice) IsOverdueAt(asOf time.Time) bool {
	if i.Status != InvoiceSent && i.Status != InvoicePartiallyPaid {
		return false
	}
	return i.DueDate.Before(asOf)
}

type Payment struct {
	ID        uint64          `json:"id" db:"id"`
	InvoiceID uint64          `json:"invoice_id" db:"invoice_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Method    PaymentMethod   `json:"method" db:"method"`
	Reference *string         `json:"reference" db:"reference"`
	PaidAt    time.Time       `json:"paid_at" db:"paid_at"`
	Notes     *string         `json:"notes" db:"notes"`
	CreatedBy *uint64         `json:"created_by" db:"created_by"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// NumberPeriod - период нумерации документов, YYYYMM.
func NumberPeriod(t time.Time) string {
	return t.Format("200601")
}

// FormatDocumentNumber собирает номер вида QT-202406-0001.
func FormatDocumentNumber(prefix, period string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, period, seq)
}
