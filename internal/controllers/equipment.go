package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/dto"
	"rental-system/internal/services"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type EquipmentController struct {
	equipmentService services.EquipmentServiceInterface
	importService    services.EquipmentImportServiceInterface
	bookingService   services.BookingServiceInterface
	logger           *zap.Logger
}

func NewEquipmentController(
	equipmentService services.EquipmentServiceInterface,
	importService services.EquipmentImportServiceInterface,
	bookingService services.BookingServiceInterface,
	logger *zap.Logger,
) *EquipmentController {
	return &EquipmentController{
		equipmentService: equipmentService,
		importService:    importService,
		bookingService:   bookingService,
		logger:           logger,
	}
}

func (c *EquipmentController) GetEquipments(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())

	res, total, err := c.equipmentService.GetEquipments(ctx.Request().Context(), filter)
	if err != nil {
		c.logger.Error("GetEquipments: ошибка при получении списка оборудования", zap.Error(err))
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, res, "Список оборудования успешно получен", http.StatusOK, total)
}

func (c *EquipmentController) FindEquipment(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.equipmentService.FindEquipment(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Оборудование найдено", http.StatusOK)
}

func (c *EquipmentController) CreateEquipment(ctx echo.Context) error {
	var d dto.CreateEquipmentDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.equipmentService.CreateEquipment(ctx.Request().Context(), d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Оборудование поставлено на учёт", http.StatusCreated)
}

func (c *EquipmentController) UpdateEquipment(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.UpdateEquipmentDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.equipmentService.UpdateEquipment(ctx.Request().Context(), id, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Оборудование обновлено", http.StatusOK)
}

func (c *EquipmentController) SetStatus(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var d dto.SetEquipmentStatusDTO
	if err := bindAndValidate(ctx, &d); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.equipmentService.SetStatus(ctx.Request().Context(), id, d)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Статус оборудования изменён", http.StatusOK)
}

func (c *EquipmentController) DeleteEquipment(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.equipmentService.DeleteEquipment(ctx.Request().Context(), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, struct{}{}, "Оборудование удалено", http.StatusOK)
}

func (c *EquipmentController) GetStatusHistory(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.equipmentService.GetStatusHistory(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "История статусов получена", http.StatusOK)
}

func (c *EquipmentController) GetStatusSummary(ctx echo.Context) error {
	res, err := c.equipmentService.GetStatusSummary(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Сводка по статусам получена", http.StatusOK)
}

// CheckAvailability: GET /equipment/:id/availability?start_date=...&end_date=...&exclude_event_id=...
func (c *EquipmentController) CheckAvailability(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id", c.logger)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var query dto.AvailabilityQueryDTO
	if query.StartDate, err = parseDateQuery(ctx, "start_date"); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if query.EndDate, err = parseDateQuery(ctx, "end_date"); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if raw := ctx.QueryParam("exclude_event_id"); raw != "" {
		if query.ExcludeEventID, err = utils.ParseID(raw); err != nil {
			return utils.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, "Неверный exclude_event_id", err, nil), c.logger)
		}
	}

	res, err := c.bookingService.CheckAvailability(ctx.Request().Context(), id, query)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Доступность проверена", http.StatusOK)
}

func (c *EquipmentController) ImportEquipment(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Файл не был передан", apperrors.ErrBadRequest, nil),
			c.logger,
		)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusInternalServerError, "Ошибка обработки файла", err, nil),
			c.logger,
		)
	}
	defer src.Close()

	res, err := c.importService.ImportEquipment(ctx.Request().Context(), src)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	c.logger.Info("Импорт оборудования завершён",
		zap.String("file", fileHeader.Filename),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("errors", len(res.Errors)),
	)
	return utils.SuccessResponse(ctx, res, "Импорт завершён", http.StatusOK)
}

func (c *EquipmentController) ExportEquipment(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())

	buf, err := c.importService.ExportEquipment(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	fileName := fmt.Sprintf("equipment_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
