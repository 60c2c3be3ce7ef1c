package dto

import (
	"time"

	"github.com/aarondl/null/v8"

	"rental-system/internal/entities"
)

type CreateEventDTO struct {
	ClientID  uint64    `json:"client_id" validate:"required"`
	Name      string    `json:"name" validate:"required,not_blank,max=255"`
	Venue     *string   `json:"venue"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Notes     *string   `json:"notes"`
}

type UpdateEventDTO struct {
	Name      null.String `json:"name" validate:"omitempty,not_blank,max=255"`
	Venue     null.String `json:"venue"`
	StartDate null.Time   `json:"start_date"`
	EndDate   null.Time   `json:"end_date"`
	Notes     null.String `json:"notes"`
}

type AssignStaffDTO struct {
	UserID uint64  `json:"user_id" validate:"required"`
	Role   string  `json:"role" validate:"required,not_blank,max=100"`
	Notes  *string `json:"notes"`
}

type CancelEventResultDTO struct {
	Event             *entities.Event `json:"event"`
	CancelledBookings int64           `json:"cancelled_bookings"`
}
