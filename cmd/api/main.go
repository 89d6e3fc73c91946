package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/catalog"
	"github.com/siamfx/backoffice/internal/config"
	"github.com/siamfx/backoffice/internal/database"
	"github.com/siamfx/backoffice/internal/database/migrations"
	"github.com/siamfx/backoffice/internal/events"
	"github.com/siamfx/backoffice/internal/handlers"
	"github.com/siamfx/backoffice/internal/jobs"
	"github.com/siamfx/backoffice/internal/routes"
	"github.com/siamfx/backoffice/internal/services/cancellation"
	"github.com/siamfx/backoffice/internal/services/exchange"
	"github.com/siamfx/backoffice/internal/services/ledger"
	"github.com/siamfx/backoffice/internal/services/report"
	"github.com/siamfx/backoffice/internal/services/reservation"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	_ = godotenv.Load(".env.local")

	// Initialize configuration
	cfg := config.New()

	// Setup database connection
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := migrations.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Report artifact preflight. Missing fonts or templates degrade the
	// PDF endpoints, not the rest of the service, so warn and continue.
	fonts := report.NewFontSelector(cfg.Report.FontDir)
	if err := fonts.Verify(); err != nil {
		logrus.WithError(err).Warn("report fonts incomplete; PDF text falls back to Helvetica")
	}
	if _, err := os.Stat(cfg.Report.TemplateDir); err != nil {
		logrus.WithField("dir", cfg.Report.TemplateDir).
			Warn("AMLO template directory missing; PDF generation will be refused")
	}

	usdRate := decimal.NewFromInt(34)
	if raw := os.Getenv("USD_REFERENCE_RATE"); raw != "" {
		if parsed, err := decimal.NewFromString(raw); err == nil && parsed.IsPositive() {
			usdRate = parsed
		}
	}

	// Wire services
	registry := report.NewRegistry(db, cfg.Report.ArtifactDir)
	registry.SetDefaultInstitution(cfg.Report.InstitutionCode)
	ledgerSvc := ledger.NewLedgerService(db)
	bus := events.NewBus(db, registry, usdRate)
	guard := reservation.NewGuard(db)
	splitter := exchange.NewSplitterService(db, ledgerSvc, bus, guard)
	reservations := reservation.NewService(db, registry)
	cancelSvc := cancellation.NewService(db, splitter, reservations)
	cat := catalog.NewCatalog(db)
	filler := report.NewPDFFiller(db, registry, fonts, cfg.Report.TemplateDir)
	querySvc := report.NewQueryService(db)
	excel := report.NewExcelBuilder(db, registry)

	// Initialize router
	router := gin.Default()

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Server.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Register routes
	routes.RegisterHealthRoutes(router)
	routes.RegisterExchangeRoutes(router, handlers.NewExchangeHandler(splitter, ledgerSvc, cfg.Report.ReceiptDir))
	routes.RegisterAMLORoutes(router, handlers.NewAMLOHandler(reservations, cancelSvc, cat, filler))
	routes.RegisterBOTRoutes(router, handlers.NewBOTHandler(db, bus, querySvc, excel))

	// Schedule the daily monthly-workbook export
	scheduler := gocron.NewScheduler(time.Local)
	exportJob := jobs.NewBOTExportJob(db, excel)
	if err := exportJob.Schedule(scheduler, cfg.Report.ExportHour); err != nil {
		log.Fatalf("Failed to schedule BOT export job: %v", err)
	}
	scheduler.StartAsync()

	// Start server
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
