package dto

import (
	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"

	"rental-system/internal/entities"
)

type CreateTicketDTO struct {
	EquipmentID   uint64                  `json:"equipment_id" validate:"required"`
	Title         string                  `json:"title" validate:"required,not_blank,max=255"`
	ReportedIssue string                  `json:"reported_issue" validate:"required,not_blank"`
	Priority      entities.TicketPriority `json:"priority" validate:"omitempty,enum"`
	AssignedTo    *uint64                 `json:"assigned_to"`
}

type UpdateTicketDTO struct {
	Title         null.String             `json:"title" validate:"omitempty,not_blank,max=255"`
	ReportedIssue null.String             `json:"reported_issue" validate:"omitempty,not_blank"`
	Priority      entities.TicketPriority `json:"priority" validate:"omitempty,enum"`
	AssignedTo    null.Uint64             `json:"assigned_to"`
	RepairNotes   null.String             `json:"repair_notes"`
	Cost          decimal.NullDecimal     `json:"cost" validate:"omitempty,decimal_nonnegative"`
}

type CompleteTicketDTO struct {
	RepairNotes  *string             `json:"repair_notes"`
	SetAvailable *bool               `json:"set_available"`
	Cost         decimal.NullDecimal `json:"cost" validate:"omitempty,decimal_nonnegative"`
}

type CancelTicketDTO struct {
	Reason *string `json:"reason"`
}
