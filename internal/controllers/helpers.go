package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/entities"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/utils"
)

func parseIDParam(ctx echo.Context, name string, logger *zap.Logger) (uint64, error) {
	id, err := utils.ParseID(ctx.Param(name))
	if err != nil {
		logger.Warn("неверный формат ID", zap.String("param", name), zap.String("value", ctx.Param(name)))
		return 0, apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат ID", nil, map[string]interface{}{"param": name})
	}
	return id, nil
}

func bindAndValidate(ctx echo.Context, payload interface{}) error {
	if err := ctx.Bind(payload); err != nil {
		return apperrors.NewHttpError(http.StatusBadRequest, "Неверные данные", err, nil)
	}
	if err := ctx.Validate(payload); err != nil {
		return err
	}
	return nil
}

// parseDateQuery принимает дату как 2006-01-02 или в RFC3339.
func parseDateQuery(ctx echo.Context, name string) (time.Time, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return time.Time{}, apperrors.NewHttpError(http.StatusBadRequest, "Не указан параметр "+name, nil, nil)
	}
	if t, err := time.Parse(entities.DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат даты в параметре "+name, nil,
			map[string]interface{}{"value": raw})
	}
	return t, nil
}

// asOfQuery возвращает дату отсечки из ?as_of=, по умолчанию текущий момент.
func asOfQuery(ctx echo.Context) (time.Time, error) {
	if ctx.QueryParam("as_of") == "" {
		return time.Now().UTC(), nil
	}
	return parseDateQuery(ctx, "as_of")
}
