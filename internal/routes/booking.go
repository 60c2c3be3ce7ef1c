package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/controllers"
	"rental-system/internal/services"
)

func runBookingRouter(secureGroup *echo.Group, bookingService services.BookingServiceInterface, logger *zap.Logger) {
	bookingCtrl := controllers.NewBookingController(bookingService, logger)

	secureGroup.PUT("/bookings/:id", bookingCtrl.UpdateBooking)
	secureGroup.POST("/bookings/:id/cancel", bookingCtrl.CancelBooking)
	secureGroup.DELETE("/bookings/:id", bookingCtrl.RemoveBooking)
}
