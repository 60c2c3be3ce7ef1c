package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/services"
	"rental-system/pkg/utils"
)

type TransactionController struct {
	service services.TransactionServiceInterface
	logger  *zap.Logger
}

func NewTransactionController(service services.TransactionServiceInterface, logger *zap.Logger) *TransactionController {
	return &TransactionController{service: service, logger: logger}
}

func (c *TransactionController) CreateCheckOut(ctx echo.Context) error {
	eventID, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.CreateCheckOutDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.CreateCheckOut(ctx.Request().Context(), eventID, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Оборудование выдано", http.StatusCreated)
}

func (c *TransactionController) CreateCheckIn(ctx echo.Context) error {
	eventID, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.CreateCheckInDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.CreateCheckIn(ctx.Request().Context(), eventID, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Оборудование принято", http.StatusCreated)
}

func (c *TransactionController) GetEventTransactions(ctx echo.Context) error {
	eventID, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.GetEventTransactions(ctx.Request().Context(), eventID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Журнал выдачи и возврата получен", http.StatusOK)
}

func (c *TransactionController) ListOverdueReturns(ctx echo.Context) error {
	asOf, err := asOfQuery(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.ListOverdueReturns(ctx.Request().Context(), asOf)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Список невозвращённого оборудования получен", http.StatusOK)
}
