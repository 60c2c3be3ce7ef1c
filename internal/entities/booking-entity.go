package entities

import (
	"time"

	"rental-system/pkg/types"
)

type EventEquipmentBooking struct {
	ID          uint64        `json:"id" db:"id"`
	EventID     uint64        `json:"event_id" db:"event_id"`
	EquipmentID uint64        `json:"equipment_id" db:"equipment_id"`
	Quantity    int           `json:"quantity" db:"quantity"`
	Status      BookingStatus `json:"status" db:"status"`
	Notes       *string       `json:"notes" db:"notes"`

	types.BaseEntity

	EquipmentName string `json:"equipment_name,omitempty" db:"-"`
}

// BookingConflict - бронь другого мероприятия, пересекающаяся по датам.
type BookingConflict struct {
	BookingID      uint64        `json:"booking_id"`
	EventID        uint64        `json:"event_id"`
	EventName      string        `json:"event_name"`
	EventStartDate time.Time     `json:"event_start_date"`
	EventEndDate   time.Time     `json:"event_end_date"`
	Status         BookingStatus `json:"status"`
}

func (c BookingConflict) Label() string {
	e := Event{Name: c.EventName, StartDate: c.EventStartDate, EndDate: c.EventEndDate}
	return e.Label()
}
