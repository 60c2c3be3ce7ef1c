package entities

import (
	"time"

	"github.com/shopspring/decimal"

	"rental-system/pkg/types"
)

type EquipmentCategory struct {
	ID          uint64  `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description" db:"description"`

	types.BaseEntity
}

type EquipmentItem struct {
	ID            uint64          `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	CategoryID    uint64          `json:"category_id" db:"category_id"`
	SerialNumber  *string         `json:"serial_number" db:"serial_number"`
	Barcode       *string         `json:"barcode" db:"barcode"`
	Quantity      int             `json:"quantity" db:"quantity"`
	CurrentStatus EquipmentStatus `json:"current_status" db:"current_status"`
	DailyRate     decimal.Decimal `json:"daily_rate" db:"daily_rate"`
	Notes         *string         `json:"notes" db:"notes"`

	types.BaseEntity

	CategoryName string `json:"category_name,omitempty" db:"-"`
}

// EquipmentStatusHistory - неизменяемая запись журнала смены статусов.
type EquipmentStatusHistory struct {
	ID             uint64           `json:"id" db:"id"`
	EquipmentID    uint64           `json:"equipment_id" db:"equipment_id"`
	PreviousStatus *EquipmentStatus `json:"previous_status" db:"previous_status"`
	NewStatus      EquipmentStatus  `json:"new_status" db:"new_status"`
	Reason         string           `json:"reason" db:"reason"`
	ActorID        *uint64          `json:"actor_id" db:"actor_id"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// StatusCount - количество единиц оборудования в статусе.
type StatusCount struct {
	Status EquipmentStatus `json:"status"`
	Count  int64           `json:"count"`
}
