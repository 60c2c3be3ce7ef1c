package controllers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/entities"
	"rental-system/internal/services"
	"rental-system/pkg/utils"
)

type QuoteController struct {
	service services.QuoteServiceInterface
	logger  *zap.Logger
}

func NewQuoteController(service services.QuoteServiceInterface, logger *zap.Logger) *QuoteController {
	return &QuoteController{service: service, logger: logger}
}

func (c *QuoteController) GetQuotes(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())

	res, total, err := c.service.GetQuotes(ctx.Request().Context(), filter)
	if err != nil {
		c.logger.Error("GetQuotes: ошибка при получении смет", zap.Error(err))
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Список смет получен", http.StatusOK, total)
}

func (c *QuoteController) FindQuote(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.FindQuote(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Смета найдена", http.StatusOK)
}

func (c *QuoteController) CreateQuote(ctx echo.Context) error {
	var d dto.CreateQuoteDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.CreateQuote(ctx.Request().Context(), d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Смета создана", http.StatusCreated)
}

func (c *QuoteController) UpdateQuoteItems(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.UpdateItemsDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.UpdateQuoteItems(ctx.Request().Context(), id, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Позиции сметы обновлены", http.StatusOK)
}

func (c *QuoteController) SendQuote(ctx echo.Context) error {
	return c.transition(ctx, c.service.SendQuote, "Смета отправлена")
}

func (c *QuoteController) AcceptQuote(ctx echo.Context) error {
	return c.transition(ctx, c.service.AcceptQuote, "Смета принята")
}

func (c *QuoteController) RejectQuote(ctx echo.Context) error {
	return c.transition(ctx, c.service.RejectQuote, "Смета отклонена")
}

func (c *QuoteController) ConvertToInvoice(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.ConvertQuoteToInvoice(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Счёт выставлен по смете", http.StatusCreated)
}

func (c *QuoteController) ExpireQuotes(ctx echo.Context) error {
	asOf, err := asOfQuery(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.ExpireQuotes(ctx.Request().Context(), asOf)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Просроченные сметы обработаны", http.StatusOK)
}

func (c *QuoteController) transition(ctx echo.Context, action func(ctx context.Context, id uint64) (*entities.Quote, error), message string) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := action(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, message, http.StatusOK)
}
