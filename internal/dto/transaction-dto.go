package dto

import (
	"rental-system/internal/entities"
)

type CheckOutItemDTO struct {
	EquipmentID uint64                 `json:"equipment_id" validate:"required"`
	Quantity    int                    `json:"quantity" validate:"omitempty,min=1"`
	Condition   entities.ItemCondition `json:"condition" validate:"omitempty,enum"`
	Notes       *string                `json:"notes"`
}

type CreateCheckOutDTO struct {
	Items []CheckOutItemDTO `json:"items" validate:"required,min=1,dive"`
	Notes *string           `json:"notes"`
}

type CheckOutResultDTO struct {
	Transaction *entities.CheckOutTransaction `json:"transaction"`
	TotalItems  int                           `json:"total_items"`
	EventStatus entities.EventStatus          `json:"event_status"`
}

type CheckInItemDTO struct {
	EquipmentID      uint64                 `json:"equipment_id" validate:"required"`
	Quantity         int                    `json:"quantity" validate:"omitempty,min=1"`
	ReturnedQuantity *int                   `json:"returned_quantity" validate:"omitempty,min=0"`
	Condition        entities.ItemCondition `json:"condition" validate:"required,enum"`
	DamageNotes      *string                `json:"damage_notes"`
	Notes            *string                `json:"notes"`
}

type CreateCheckInDTO struct {
	Items []CheckInItemDTO `json:"items" validate:"required,min=1,dive"`
	Notes *string          `json:"notes"`
}

// CheckInResultDTO - сводка возврата, по ней интерфейс решает, закрыто ли мероприятие.
type CheckInResultDTO struct {
	Transaction          *entities.CheckInTransaction `json:"transaction"`
	TotalItems           int                          `json:"total_items"`
	ItemsWithIssues      int                          `json:"items_with_issues"`
	LostItems            int                          `json:"lost_items"`
	ShortageItems        int                          `json:"shortage_items"`
	MaintenanceTicketIDs []uint64                     `json:"maintenance_ticket_ids"`
	AllReturned          bool                         `json:"all_returned"`
	EventStatus          entities.EventStatus         `json:"event_status"`
}

type EventTransactionsDTO struct {
	CheckOuts []*entities.CheckOutTransaction `json:"check_outs"`
	CheckIns  []*entities.CheckInTransaction  `json:"check_ins"`
}
