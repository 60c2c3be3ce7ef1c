package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/controllers"
	"rental-system/internal/services"
)

// runEventRouter: мероприятия и всё, что висит на /events/:id.
func runEventRouter(
	secureGroup *echo.Group,
	eventService services.EventServiceInterface,
	bookingService services.BookingServiceInterface,
	transactionService services.TransactionServiceInterface,
	logger *zap.Logger,
) {
	eventCtrl := controllers.NewEventController(eventService, logger)
	bookingCtrl := controllers.NewBookingController(bookingService, logger)
	transactionCtrl := controllers.NewTransactionController(transactionService, logger)

	events := secureGroup.Group("/events")
	events.GET("", eventCtrl.GetEvents)
	events.GET("/:id", eventCtrl.FindEvent)
	events.POST("", eventCtrl.CreateEvent)
	events.PUT("/:id", eventCtrl.UpdateEvent)
	events.POST("/:id/cancel", eventCtrl.CancelEvent)

	events.GET("/:id/staff", eventCtrl.GetStaff)
	events.POST("/:id/staff", eventCtrl.AssignStaff)
	events.DELETE("/:id/staff/:userId", eventCtrl.RemoveStaff)

	events.GET("/:id/bookings", bookingCtrl.GetEventBookings)
	events.POST("/:id/bookings", bookingCtrl.BookEquipment)
	events.POST("/:id/bookings/bulk", bookingCtrl.BookMultipleEquipment)
	events.POST("/:id/bookings/confirm", bookingCtrl.ConfirmBookings)

	events.GET("/:id/transactions", transactionCtrl.GetEventTransactions)
	events.POST("/:id/check-out", transactionCtrl.CreateCheckOut)
	events.POST("/:id/check-in", transactionCtrl.CreateCheckIn)
}
