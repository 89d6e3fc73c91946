package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siamfx/backoffice/internal/handlers"
	"github.com/siamfx/backoffice/internal/middleware"
)

// RegisterExchangeRoutes registers counter settlement and balance routes
func RegisterExchangeRoutes(router *gin.Engine, exchangeHandler *handlers.ExchangeHandler) {
	exchangeGroup := router.Group("/api/exchange")
	exchangeGroup.Use(middleware.AuthMiddleware())
	{
		exchangeGroup.POST("/transactions", exchangeHandler.CreateTransaction)
		exchangeGroup.GET("/transactions", exchangeHandler.ListTransactions)
		exchangeGroup.GET("/groups/:group_id", exchangeHandler.GetGroup)
		exchangeGroup.POST("/groups/:group_id/reverse", exchangeHandler.ReverseTransaction)
		exchangeGroup.GET("/balances", exchangeHandler.ListBalances)
		exchangeGroup.POST("/balances/adjust", exchangeHandler.AdjustBalance)
	}
}

// RegisterAMLORoutes registers reservation lifecycle and report routes
func RegisterAMLORoutes(router *gin.Engine, amloHandler *handlers.AMLOHandler) {
	amloGroup := router.Group("/api/amlo")
	amloGroup.Use(middleware.AuthMiddleware())
	{
		amloGroup.POST("/reservations", amloHandler.CreateReservation)
		amloGroup.GET("/reservations", amloHandler.ListReservations)
		amloGroup.GET("/reservations/:id", amloHandler.GetReservation)
		amloGroup.PUT("/reservations/:id/form-data", amloHandler.UpdateFormData)
		amloGroup.POST("/reservations/:id/audit", amloHandler.AuditReservation)
		amloGroup.POST("/reservations/:id/reverse-audit", amloHandler.ReverseAudit)
		amloGroup.POST("/reservations/:id/complete", amloHandler.CompleteReservation)
		amloGroup.POST("/reservations/:id/signatures", amloHandler.SaveSignatures)
		amloGroup.GET("/reservations/:id/signatures", amloHandler.GetSignatures)
		amloGroup.DELETE("/reservations/:id/signatures/:type", amloHandler.DeleteSignature)
		amloGroup.POST("/reservations/:id/generate-pdf", amloHandler.GeneratePDF)
		amloGroup.GET("/reservations/:id/pdf", amloHandler.DownloadPDF)
		amloGroup.GET("/reports/:id/generate-pdf", amloHandler.StreamPDF)
		amloGroup.POST("/reports/mark-reported", amloHandler.MarkReported)
		amloGroup.POST("/groups/:group_id/cancel", amloHandler.CancelGroup)
		amloGroup.GET("/fields/:report_type", amloHandler.GetFields)
	}
}

// RegisterBOTRoutes registers BOT trigger and reporting routes
func RegisterBOTRoutes(router *gin.Engine, botHandler *handlers.BOTHandler) {
	botGroup := router.Group("/api/bot")
	botGroup.Use(middleware.AuthMiddleware())
	{
		botGroup.POST("/check-trigger", botHandler.CheckTrigger)
		botGroup.GET("/t1-buy-fx", botHandler.T1BuyFX)
		botGroup.GET("/t1-sell-fx", botHandler.T1SellFX)
		botGroup.POST("/export", botHandler.ExportMonthly)
		botGroup.GET("/export-buy-fx", botHandler.DownloadMonthly)
		botGroup.POST("/mark-reported", botHandler.MarkReported)
	}
}

// RegisterHealthRoutes registers liveness routes
func RegisterHealthRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
