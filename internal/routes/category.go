package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/controllers"
	"rental-system/internal/services"
)

func runCategoryRouter(secureGroup *echo.Group, categoryService services.CategoryServiceInterface, logger *zap.Logger) {
	categoryCtrl := controllers.NewCategoryController(categoryService, logger)

	secureGroup.GET("/categories", categoryCtrl.GetAll)
	secureGroup.GET("/categories/:id", categoryCtrl.GetByID)
	secureGroup.POST("/categories", categoryCtrl.Create)
	secureGroup.PUT("/categories/:id", categoryCtrl.Update)
	secureGroup.DELETE("/categories/:id", categoryCtrl.Delete)
}
