package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/controllers"
	"rental-system/internal/services"
)

func runEquipmentRouter(
	secureGroup *echo.Group,
	equipmentService services.EquipmentServiceInterface,
	importService services.EquipmentImportServiceInterface,
	bookingService services.BookingServiceInterface,
	logger *zap.Logger,
) {
	equipmentCtrl := controllers.NewEquipmentController(equipmentService, importService, bookingService, logger)

	secureGroup.GET("/equipment", equipmentCtrl.GetEquipments)
	secureGroup.GET("/equipment/status-summary", equipmentCtrl.GetStatusSummary)
	secureGroup.GET("/equipment/export", equipmentCtrl.ExportEquipment)
	secureGroup.POST("/equipment/import", equipmentCtrl.ImportEquipment)
	secureGroup.GET("/equipment/:id", equipmentCtrl.FindEquipment)
	secureGroup.POST("/equipment", equipmentCtrl.CreateEquipment)
	secureGroup.PUT("/equipment/:id", equipmentCtrl.UpdateEquipment)
	secureGroup.PUT("/equipment/:id/status", equipmentCtrl.SetStatus)
	secureGroup.DELETE("/equipment/:id", equipmentCtrl.DeleteEquipment)
	secureGroup.GET("/equipment/:id/history", equipmentCtrl.GetStatusHistory)
	secureGroup.GET("/equipment/:id/availability", equipmentCtrl.CheckAvailability)
}
