package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/services"
	"rental-system/pkg/utils"
)

type InvoiceController struct {
	service services.InvoiceServiceInterface
	logger  *zap.Logger
}

func NewInvoiceController(service services.InvoiceServiceInterface, logger *zap.Logger) *InvoiceController {
	return &InvoiceController{service: service, logger: logger}
}

func (c *InvoiceController) GetInvoices(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())

	res, total, err := c.service.GetInvoices(ctx.Request().Context(), filter)
	if err != nil {
		c.logger.Error("GetInvoices: ошибка при получении счетов", zap.Error(err))
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Список счетов получен", http.StatusOK, total)
}

func (c *InvoiceController) FindInvoice(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.FindInvoice(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Счёт найден", http.StatusOK)
}

func (c *InvoiceController) CreateInvoice(ctx echo.Context) error {
	var d dto.CreateInvoiceDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.CreateInvoice(ctx.Request().Context(), d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Счёт создан", http.StatusCreated)
}

func (c *InvoiceController) UpdateInvoiceItems(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.UpdateItemsDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.UpdateInvoiceItems(ctx.Request().Context(), id, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Позиции счёта обновлены", http.StatusOK)
}

func (c *InvoiceController) DeleteInvoice(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.service.DeleteInvoice(ctx.Request().Context(), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, struct{}{}, "Черновик счёта удалён", http.StatusOK)
}

func (c *InvoiceController) SendInvoice(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.SendInvoice(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Счёт отправлен", http.StatusOK)
}

func (c *InvoiceController) CancelInvoice(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.CancelInvoice(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Счёт аннулирован", http.StatusOK)
}

func (c *InvoiceController) MarkOverdue(ctx echo.Context) error {
	asOf, err := asOfQuery(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.MarkOverdueInvoices(ctx.Request().Context(), asOf)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Просроченные счета отмечены", http.StatusOK)
}

func (c *InvoiceController) GetPayments(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.GetPayments(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Платежи по счёту получены", http.StatusOK)
}

func (c *InvoiceController) CreatePayment(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.CreatePaymentDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.CreatePayment(ctx.Request().Context(), id, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Платёж зарегистрирован", http.StatusCreated)
}

func (c *InvoiceController) DeletePayment(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	paymentID, err := parseIDParam(ctx, "paymentId", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.DeletePayment(ctx.Request().Context(), id, paymentID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Платёж удалён", http.StatusOK)
}
