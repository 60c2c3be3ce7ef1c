package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/controllers"
	"rental-system/internal/services"
)

func runInvoiceRouter(secureGroup *echo.Group, invoiceService services.InvoiceServiceInterface, logger *zap.Logger) {
	invoiceCtrl := controllers.NewInvoiceController(invoiceService, logger)

	secureGroup.GET("/invoices", invoiceCtrl.GetInvoices)
	secureGroup.GET("/invoices/:id", invoiceCtrl.FindInvoice)
	secureGroup.POST("/invoices", invoiceCtrl.CreateInvoice)
	secureGroup.PUT("/invoices/:id/items", invoiceCtrl.UpdateInvoiceItems)
	secureGroup.DELETE("/invoices/:id", invoiceCtrl.DeleteInvoice)
	secureGroup.POST("/invoices/:id/send", invoiceCtrl.SendInvoice)
	secureGroup.POST("/invoices/:id/cancel", invoiceCtrl.CancelInvoice)
	secureGroup.POST("/invoices/mark-overdue", invoiceCtrl.MarkOverdue)

	secureGroup.GET("/invoices/:id/payments", invoiceCtrl.GetPayments)
	secureGroup.POST("/invoices/:id/payments", invoiceCtrl.CreatePayment)
	secureGroup.DELETE("/invoices/:id/payments/:paymentId", invoiceCtrl.DeletePayment)
}
