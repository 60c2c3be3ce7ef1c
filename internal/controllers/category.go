package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/services"
	"rental-system/pkg/utils"
)

type CategoryController struct {
	service services.CategoryServiceInterface
	logger  *zap.Logger
}

func NewCategoryController(service services.CategoryServiceInterface, logger *zap.Logger) *CategoryController {
	return &CategoryController{service: service, logger: logger}
}

func (c *CategoryController) Create(ctx echo.Context) error {
	var d dto.CategoryDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	result, err := c.service.CreateCategory(ctx.Request().Context(), d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, result, "Категория создана", http.StatusCreated)
}

func (c *CategoryController) Update(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.CategoryDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	result, err := c.service.UpdateCategory(ctx.Request().Context(), id, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, result, "Категория обновлена", http.StatusOK)
}

func (c *CategoryController) Delete(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.service.DeleteCategory(ctx.Request().Context(), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, struct{}{}, "Категория удалена", http.StatusOK)
}

func (c *CategoryController) GetByID(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	result, err := c.service.FindCategory(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, result, "Категория найдена", http.StatusOK)
}

func (c *CategoryController) GetAll(ctx echo.Context) error {
	result, err := c.service.GetCategories(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, result, "Список категорий получен", http.StatusOK)
}
