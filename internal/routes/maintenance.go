package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/controllers"
	"rental-system/internal/services"
)

func runMaintenanceRouter(secureGroup *echo.Group, maintenanceService services.MaintenanceServiceInterface, logger *zap.Logger) {
	maintenanceCtrl := controllers.NewMaintenanceController(maintenanceService, logger)

	secureGroup.GET("/maintenance", maintenanceCtrl.GetTickets)
	secureGroup.GET("/maintenance/:id", maintenanceCtrl.FindTicket)
	secureGroup.POST("/maintenance", maintenanceCtrl.CreateTicket)
	secureGroup.PUT("/maintenance/:id", maintenanceCtrl.UpdateTicket)
	secureGroup.POST("/maintenance/:id/start", maintenanceCtrl.StartTicket)
	secureGroup.POST("/maintenance/:id/complete", maintenanceCtrl.CompleteTicket)
	secureGroup.POST("/maintenance/:id/cancel", maintenanceCtrl.CancelTicket)
}
