package dto

import (
	"time"

	"github.com/aarondl/null/v8"

	"rental-system/internal/entities"
)

type BookEquipmentDTO struct {
	EquipmentID uint64  `json:"equipment_id" validate:"required"`
	Quantity    int     `json:"quantity" validate:"omitempty,min=1"`
	Notes       *string `json:"notes"`
}

type BulkBookEquipmentDTO struct {
	Items []BookEquipmentDTO `json:"items" validate:"required,min=1,dive"`
}

type BookingFailureDTO struct {
	EquipmentID uint64 `json:"equipment_id"`
	Kind        string `json:"kind"`
	Error       string `json:"error"`
}

// BulkBookingResultDTO - каждая позиция бронируется отдельно, ошибки собираются.
type BulkBookingResultDTO struct {
	Successful []*entities.EventEquipmentBooking `json:"successful"`
	Failed     []BookingFailureDTO               `json:"failed"`
}

// UpdateBookingDTO: Quantity - указатель, чтобы отличать "не передано" от явного 0.
type UpdateBookingDTO struct {
	Quantity *int        `json:"quantity" validate:"omitnil,min=1"`
	Notes    null.String `json:"notes"`
}

type ConfirmBookingsResultDTO struct {
	ConfirmedCount int                  `json:"confirmed_count"`
	EventStatus    entities.EventStatus `json:"event_status"`
}

type AvailabilityQueryDTO struct {
	StartDate      time.Time `query:"start_date" validate:"required"`
	EndDate        time.Time `query:"end_date" validate:"required"`
	ExcludeEventID uint64    `query:"exclude_event_id"`
}

type AvailabilityDTO struct {
	EquipmentID uint64                     `json:"equipment_id"`
	Status      entities.EquipmentStatus   `json:"status"`
	Bookable    bool                       `json:"bookable"`
	Available   bool                       `json:"available"`
	Conflicts   []entities.BookingConflict `json:"conflicts"`
}
