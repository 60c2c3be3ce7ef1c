package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// closedEnum - строковое перечисление с фиксированным набором значений.
// Неизвестное значение отвергается при разборе JSON и при чтении из БД.
type closedEnum interface {
	~string
	Valid() bool
}

func parseEnum[T closedEnum](raw, kind string) (T, error) {
	v := T(strings.ToUpper(strings.TrimSpace(raw)))
	if !v.Valid() {
		var zero T
		return zero, fmt.Errorf("недопустимое значение %s: %q", kind, raw)
	}
	return v, nil
}

func unmarshalEnum[T closedEnum](dst *T, data []byte, kind string) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%s должен быть строкой: %w", kind, err)
	}
	v, err := parseEnum[T](raw, kind)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func scanEnum[T closedEnum](dst *T, src interface{}, kind string) error {
	var raw string
	switch s := src.(type) {
	case string:
		raw = s
	case []byte:
		raw = string(s)
	default:
		return fmt.Errorf("не удалось прочитать %s из %T", kind, src)
	}
	v, err := parseEnum[T](raw, kind)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// ---------- Оборудование ----------

type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "AVAILABLE"
	EquipmentReserved    EquipmentStatus = "RESERVED"
	EquipmentInUse       EquipmentStatus = "IN_USE"
	EquipmentDamaged     EquipmentStatus = "DAMAGED"
	EquipmentUnderRepair EquipmentStatus = "UNDER_REPAIR"
	EquipmentLost        EquipmentStatus = "LOST"
	EquipmentRetired     EquipmentStatus = "RETIRED"
)

var EquipmentStatuses = []EquipmentStatus{
	EquipmentAvailable, EquipmentReserved, EquipmentInUse, EquipmentDamaged,
	EquipmentUnderRepair, EquipmentLost, EquipmentRetired,
}

func (s EquipmentStatus) Valid() bool {
	switch s {
	case EquipmentAvailable, EquipmentReserved, EquipmentInUse, EquipmentDamaged,
		EquipmentUnderRepair, EquipmentLost, EquipmentRetired:
		return true
	}
	return false
}

// IsBookable - оборудование в ремонте, повреждённое, потерянное или списанное бронировать нельзя.
func (s EquipmentStatus) IsBookable() bool {
	switch s {
	case EquipmentDamaged, EquipmentUnderRepair, EquipmentLost, EquipmentRetired:
		return false
	}
	return s.Valid()
}

// CanCheckOut - выдать можно только свободное или зарезервированное оборудование.
func (s EquipmentStatus) CanCheckOut() bool {
	return s == EquipmentAvailable || s == EquipmentReserved
}

func ParseEquipmentStatus(raw string) (EquipmentStatus, error) {
	return parseEnum[EquipmentStatus](raw, "статуса оборудования")
}

func (s *EquipmentStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, "статус оборудования")
}

func (s *EquipmentStatus) Scan(src interface{}) error {
	return scanEnum(s, src, "статус оборудования")
}

func (s EquipmentStatus) Value() (driver.Value, error) { return string(s), nil }

// ---------- Мероприятия ----------

type EventStatus string

const (
	EventDraft      EventStatus = "DRAFT"
	EventQuoted     EventStatus = "QUOTED"
	EventConfirmed  EventStatus = "CONFIRMED"
	EventInProgress EventStatus = "IN_PROGRESS"
	EventCompleted  EventStatus = "COMPLETED"
	EventCancelled  EventStatus = "CANCELLED"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventQuoted, EventConfirmed, EventInProgress, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// IsClosed - завершённые и отменённые мероприятия не принимают новые брони.
func (s EventStatus) IsClosed() bool {
	return s == EventCompleted || s == EventCancelled
}

func ParseEventStatus(raw string) (EventStatus, error) {
	return parseEnum[EventStatus](raw, "статуса мероприятия")
}

func (s *EventStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, "статус мероприятия")
}

func (s *EventStatus) Scan(src interface{}) error {
	return scanEnum(s, src, "статус мероприятия")
}

func (s EventStatus) Value() (driver.Value, error) { return string(s), nil }

// ---------- Брони ----------

type BookingStatus string

const (
	BookingPending    BookingStatus = "PENDING"
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingCheckedOut BookingStatus = "CHECKED_OUT"
	BookingReturned   BookingStatus = "RETURNED"
	BookingCancelled  BookingStatus = "CANCELLED"
)

// BlockingBookingStatuses - брони в этих статусах держат оборудование на даты мероприятия.
var BlockingBookingStatuses = []BookingStatus{BookingConfirmed, BookingCheckedOut}

// ActiveBookingStatuses - брони, запрещающие удаление оборудования.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCheckedOut}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCheckedOut, BookingReturned, BookingCancelled:
		return true
	}
	return false
}

// IsSettled - бронь больше не ждёт возврата оборудования.
func (s BookingStatus) IsSettled() bool {
	return s == BookingReturned || s == BookingCancelled
}

func ParseBookingStatus(raw string) (BookingStatus, error) {
	return parseEnum[BookingStatus](raw, "статуса брони")
}

func (s *BookingStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, "статус брони")
}

func (s *BookingStatus) Scan(src interface{}) error {
	return scanEnum(s, src, "статус брони")
}

func (s BookingStatus) Value() (driver.Value, error) { return string(s), nil }

// ---------- Состояние при выдаче/возврате ----------

type ItemCondition string

const (
	ConditionExcellent ItemCondition = "EXCELLENT"
	ConditionGood      ItemCondition = "GOOD"
	ConditionFair      ItemCondition = "FAIR"
	ConditionDamaged   ItemCondition = "DAMAGED"
	ConditionLost      ItemCondition = "LOST"
)

func (c ItemCondition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionDamaged, ConditionLost:
		return true
	}
	return false
}

// ReturnStatus - статус оборудования после возврата в данном состоянии.
func (c ItemCondition) ReturnStatus() EquipmentStatus {
	switch c {
	case ConditionDamaged:
		return EquipmentDamaged
	case ConditionLost:
		return EquipmentLost
	default:
		return EquipmentAvailable
	}
}

func ParseItemCondition(raw string) (ItemCondition, error) {
	return parseEnum[ItemCondition](raw, "состояния оборудования")
}

func (c *ItemCondition) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(c, data, "состояние оборудования")
}

func (c *ItemCondition) Scan(src interface{}) error {
	return scanEnum(c, src, "состояние оборудования")
}

func (c ItemCondition) Value() (driver.Value, error) { return string(c), nil }

// ---------- Обслуживание ----------

type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketCompleted  TicketStatus = "COMPLETED"
	TicketCancelled  TicketStatus = "CANCELLED"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketCompleted, TicketCancelled:
		return true
	}
	return false
}

func (s TicketStatus) IsTerminal() bool {
	return s == TicketCompleted || s == TicketCancelled
}

func ParseTicketStatus(raw string) (TicketStatus, error) {
	return parseEnum[TicketStatus](raw, "статуса заявки на ремонт")
}

func (s *TicketStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, "статус заявки на ремонт")
}

func (s *TicketStatus) Scan(src interface{}) error {
	return scanEnum(s, src, "статус заявки на ремонт")
}

func (s TicketStatus) Value() (driver.Value, error) { return string(s), nil }

type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityMedium TicketPriority = "MEDIUM"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func (p *TicketPriority) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(p, data, "приоритет")
}

func (p *TicketPriority) Scan(src interface{}) error {
	return scanEnum(p, src, "приоритет")
}

func (p TicketPriority) Value() (driver.Value, error) { return string(p), nil }

// ---------- Финансы ----------

type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "DRAFT"
	QuoteSent     QuoteStatus = "SENT"
	QuoteAccepted QuoteStatus = "ACCEPTED"
	QuoteRejected QuoteStatus = "REJECTED"
	QuoteExpired  QuoteStatus = "EXPIRED"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected, QuoteExpired:
		return true
	}
	return false
}

func (s *QuoteStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, "статус сметы")
}

func (s *QuoteStatus) Scan(src interface{}) error {
	return scanEnum(s, src, "статус сметы")
}

func (s QuoteStatus) Value() (driver.Value, error) { return string(s), nil }

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoiceSent          InvoiceStatus = "SENT"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceOverdue       InvoiceStatus = "OVERDUE"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePartiallyPaid, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

func (s *InvoiceStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(s, data, "статус счёта")
}

func (s *InvoiceStatus) Scan(src interface{}) error {
	return scanEnum(s, src, "статус счёта")
}

func (s InvoiceStatus) Value() (driver.Value, error) { return string(s), nil }

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCard         PaymentMethod = "CARD"
	PaymentOther        PaymentMethod = "OTHER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBankTransfer, PaymentCard, PaymentOther:
		return true
	}
	return false
}

func (m *PaymentMethod) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(m, data, "способ оплаты")
}

func (m *PaymentMethod) Scan(src interface{}) error {
	return scanEnum(m, src, "способ оплаты")
}

func (m PaymentMethod) Value() (driver.Value, error) { return string(m), nil }
