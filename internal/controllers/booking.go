package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/services"
	"rental-system/pkg/utils"
)

type BookingController struct {
	service services.BookingServiceInterface
	logger  *zap.Logger
}

func NewBookingController(service services.BookingServiceInterface, logger *zap.Logger) *BookingController {
	return &BookingController{service: service, logger: logger}
}

func (c *BookingController) GetEventBookings(ctx echo.Context) error {
	eventID, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.GetEventBookings(ctx.Request().Context(), eventID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Брони мероприятия получены", http.StatusOK)
}

func (c *BookingController) BookEquipment(ctx echo.Context) error {
	eventID, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.BookEquipmentDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.BookEquipment(ctx.Request().Context(), eventID, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Оборудование забронировано", http.StatusCreated)
}

// BookMultipleEquipment отвечает 200 даже при частичных отказах: они перечислены в failed.
func (c *BookingController) BookMultipleEquipment(ctx echo.Context) error {
	eventID, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.BulkBookEquipmentDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.BookMultipleEquipment(ctx.Request().Context(), eventID, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Пакетное бронирование обработано", http.StatusOK)
}

func (c *BookingController) ConfirmBookings(ctx echo.Context) error {
	eventID, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.ConfirmBookings(ctx.Request().Context(), eventID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Брони подтверждены", http.StatusOK)
}

func (c *BookingController) UpdateBooking(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.UpdateBookingDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.UpdateBooking(ctx.Request().Context(), id, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Бронь обновлена", http.StatusOK)
}

func (c *BookingController) CancelBooking(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.CancelBooking(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Бронь отменена", http.StatusOK)
}

func (c *BookingController) RemoveBooking(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.service.RemoveBooking(ctx.Request().Context(), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, struct{}{}, "Бронь удалена", http.StatusOK)
}
