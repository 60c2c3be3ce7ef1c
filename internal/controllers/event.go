package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/services"
	"rental-system/pkg/utils"
)

type EventController struct {
	service services.EventServiceInterface
	logger  *zap.Logger
}

func NewEventController(service services.EventServiceInterface, logger *zap.Logger) *EventController {
	return &EventController{service: service, logger: logger}
}

func (c *EventController) GetEvents(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())

	res, total, err := c.service.GetEvents(ctx.Request().Context(), filter)
	if err != nil {
		c.logger.Error("GetEvents: ошибка при получении списка мероприятий", zap.Error(err))
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Список мероприятий получен", http.StatusOK, total)
}

func (c *EventController) FindEvent(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.FindEvent(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Мероприятие найдено", http.StatusOK)
}

func (c *EventController) CreateEvent(ctx echo.Context) error {
	var d dto.CreateEventDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.CreateEvent(ctx.Request().Context(), d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Мероприятие создано", http.StatusCreated)
}

func (c *EventController) UpdateEvent(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.UpdateEventDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.UpdateEvent(ctx.Request().Context(), id, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Мероприятие обновлено", http.StatusOK)
}

func (c *EventController) CancelEvent(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.CancelEvent(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Мероприятие отменено", http.StatusOK)
}

func (c *EventController) GetStaff(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.GetStaff(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Персонал мероприятия получен", http.StatusOK)
}

func (c *EventController) AssignStaff(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.AssignStaffDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.service.AssignStaff(ctx.Request().Context(), id, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Сотрудник назначен", http.StatusCreated)
}

func (c *EventController) RemoveStaff(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	userID, err := parseIDParam(ctx, "userId", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.service.RemoveStaff(ctx.Request().Context(), id, userID); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, struct{}{}, "Сотрудник снят с мероприятия", http.StatusOK)
}
