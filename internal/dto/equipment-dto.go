package dto

import (
	"github.com/aarondl/null/v8"
	"github.com/shopspring/decimal"

	"rental-system/internal/entities"
)

type CreateEquipmentDTO struct {
	Name         string          `json:"name" validate:"required,not_blank,max=255"`
	CategoryID   uint64          `json:"category_id" validate:"required"`
	SerialNumber *string         `json:"serial_number" validate:"omitempty,max=100"`
	Barcode      *string         `json:"barcode" validate:"omitempty,max=100"`
	Quantity     int             `json:"quantity" validate:"omitempty,min=1"`
	DailyRate    decimal.Decimal `json:"daily_rate" validate:"decimal_nonnegative"`
	Notes        *string         `json:"notes"`
}

// UpdateEquipmentDTO меняет только описательные поля. Статус меняется через SetStatus.
type UpdateEquipmentDTO struct {
	Name         null.String         `json:"name" validate:"omitempty,not_blank,max=255"`
	CategoryID   null.Uint64         `json:"category_id" validate:"omitempty,min=1"`
	SerialNumber null.String         `json:"serial_number" validate:"omitempty,max=100"`
	Barcode      null.String         `json:"barcode" validate:"omitempty,max=100"`
	Quantity     *int                `json:"quantity" validate:"omitnil,min=1"`
	DailyRate    decimal.NullDecimal `json:"daily_rate" validate:"omitempty,decimal_nonnegative"`
	Notes        null.String         `json:"notes"`
}

type SetEquipmentStatusDTO struct {
	Status entities.EquipmentStatus `json:"status" validate:"required,enum"`
	Reason string                   `json:"reason" validate:"required,not_blank"`
}

type CategoryDTO struct {
	Name        string  `json:"name" validate:"required,not_blank,max=255"`
	Description *string `json:"description"`
}

type EquipmentStatusSummaryDTO struct {
	Total    int64                  `json:"total"`
	ByStatus []entities.StatusCount `json:"by_status"`
	Cached   bool                   `json:"cached"`
}

type ImportRowErrorDTO struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type EquipmentImportResultDTO struct {
	Created int                 `json:"created"`
	Updated int                 `json:"updated"`
	Skipped int                 `json:"skipped"`
	Errors  []ImportRowErrorDTO `json:"errors"`
}
