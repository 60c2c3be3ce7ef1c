package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/controllers"
	"rental-system/internal/services"
)

func runTransactionRouter(secureGroup *echo.Group, transactionService services.TransactionServiceInterface, logger *zap.Logger) {
	transactionCtrl := controllers.NewTransactionController(transactionService, logger)

	secureGroup.GET("/transactions/overdue", transactionCtrl.ListOverdueReturns)
}
