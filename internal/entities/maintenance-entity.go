package entities

import (
	"time"

	"github.com/shopspring/decimal"

	"rental-system/pkg/types"
)

const DefaultDamageIssue = "Повреждение обнаружено при возврате"

type MaintenanceTicket struct {
	ID                uint64              `json:"id" db:"id"`
	EquipmentID       uint64              `json:"equipment_id" db:"equipment_id"`
	Title             string              `json:"title" db:"title"`
	ReportedIssue     string              `json:"reported_issue" db:"reported_issue"`
	Status            TicketStatus        `json:"status" db:"status"`
	Priority          TicketPriority      `json:"priority" db:"priority"`
	ReportedBy        *uint64             `json:"reported_by" db:"reported_by"`
	AssignedTo        *uint64             `json:"assigned_to" db:"assigned_to"`
	RepairNotes       *string             `json:"repair_notes" db:"repair_notes"`
	Cost              decimal.NullDecimal `json:"cost" db:"cost"`
	SourceEventID     *uint64             `json:"source_event_id" db:"source_event_id"`
	StartedAt         *time.Time          `json:"started_at" db:"started_at"`
	CompletedAt       *time.Time          `json:"completed_at" db:"completed_at"`
	ReturnToServiceAt *time.Time          `json:"return_to_service_at" db:"return_to_service_at"`

	types.BaseEntity
}
