package entities

import (
	"time"

	"github.com/google/uuid"
)

// Журналы выдачи и возврата только дописываются.

type CheckOutTransaction struct {
	ID        uint64         `json:"id" db:"id"`
	Reference uuid.UUID      `json:"reference" db:"reference"`
	EventID   uint64         `json:"event_id" db:"event_id"`
	ActorID   *uint64        `json:"actor_id" db:"actor_id"`
	Notes     *string        `json:"notes" db:"notes"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	Items     []CheckOutItem `json:"items" db:"-"`
}

type CheckOutItem struct {
	ID            uint64        `json:"id" db:"id"`
	TransactionID uint64        `json:"transaction_id" db:"transaction_id"`
	EquipmentID   uint64        `json:"equipment_id" db:"equipment_id"`
	Quantity      int           `json:"quantity" db:"quantity"`
	Condition     ItemCondition `json:"condition" db:"condition"`
	Notes         *string       `json:"notes" db:"notes"`
}

type CheckInTransaction struct {
	ID        uint64        `json:"id" db:"id"`
	Reference uuid.UUID     `json:"reference" db:"reference"`
	EventID   uint64        `json:"event_id" db:"event_id"`
	ActorID   *uint64       `json:"actor_id" db:"actor_id"`
	Notes     *string       `json:"notes" db:"notes"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	Items     []CheckInItem `json:"items" db:"-"`
}

type CheckInItem struct {
	ID               uint64        `json:"id" db:"id"`
	TransactionID    uint64        `json:"transaction_id" db:"transaction_id"`
	EquipmentID      uint64        `json:"equipment_id" db:"equipment_id"`
	Quantity         int           `json:"quantity" db:"quantity"`
	ReturnedQuantity int           `json:"returned_quantity" db:"returned_quantity"`
	IsShortage       bool          `json:"is_shortage" db:"is_shortage"`
	Condition        ItemCondition `json:"condition" db:"condition"`
	DamageNotes      *string       `json:"damage_notes" db:"damage_notes"`
	Notes            *string       `json:"notes" db:"notes"`
}

// NewCheckInItem выставляет IsShortage по количеству возвращённых единиц.
func NewCheckInItem(equipmentID uint64, quantity, returned int, condition ItemCondition, damageNotes, notes *string) CheckInItem {
	return CheckInItem{
		EquipmentID:      equipmentID,
		Quantity:         quantity,
		ReturnedQuantity: returned,
		IsShortage:       returned < quantity,
		Condition:        condition,
		DamageNotes:      damageNotes,
		Notes:            notes,
	}
}

// OverdueReturn - оборудование, не возвращённое после окончания мероприятия.
type OverdueReturn struct {
	EventID       uint64    `json:"event_id"`
	EventName     string    `json:"event_name"`
	EventEndDate  time.Time `json:"event_end_date"`
	EquipmentID   uint64    `json:"equipment_id"`
	EquipmentName string    `json:"equipment_name"`
	BookingID     uint64    `json:"booking_id"`
}
