package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/controllers"
	"rental-system/internal/services"
)

func runQuoteRouter(secureGroup *echo.Group, quoteService services.QuoteServiceInterface, logger *zap.Logger) {
	quoteCtrl := controllers.NewQuoteController(quoteService, logger)

	secureGroup.GET("/quotes", quoteCtrl.GetQuotes)
	secureGroup.GET("/quotes/:id", quoteCtrl.FindQuote)
	secureGroup.POST("/quotes", quoteCtrl.CreateQuote)
	secureGroup.PUT("/quotes/:id/items", quoteCtrl.UpdateQuoteItems)
	secureGroup.POST("/quotes/:id/send", quoteCtrl.SendQuote)
	secureGroup.POST("/quotes/:id/accept", quoteCtrl.AcceptQuote)
	secureGroup.POST("/quotes/:id/reject", quoteCtrl.RejectQuote)
	secureGroup.POST("/quotes/:id/invoice", quoteCtrl.ConvertToInvoice)
	secureGroup.POST("/quotes/expire", quoteCtrl.ExpireQuotes)
}
