package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rental-system/internal/listeners"
	"rental-system/internal/repositories"
	"rental-system/internal/services"
	"rental-system/pkg/config"
	"rental-system/pkg/eventbus"
	"rental-system/pkg/middleware"
	"rental-system/pkg/service"
)

type Loggers struct {
	Main        *zap.Logger
	Auth        *zap.Logger
	Equipment   *zap.Logger
	Booking     *zap.Logger
	Maintenance *zap.Logger
	Finance     *zap.Logger
	Audit       *zap.Logger
}

// Services - собранные сервисы, которые нужны вне HTTP-слоя (планировщику).
type Services struct {
	Equipment   services.EquipmentServiceInterface
	Invoice     services.InvoiceServiceInterface
	Quote       services.QuoteServiceInterface
	Transaction services.TransactionServiceInterface
}

func InitRouter(
	e *echo.Echo,
	dbConn *pgxpool.Pool,
	redisClient *redis.Client,
	bus *eventbus.Bus,
	jwtSvc service.JWTService,
	loggers *Loggers,
	cfg *config.Config,
) *Services {
	loggers.Main.Info("InitRouter: Начало создания маршрутов")

	// --- 0. ОБЩИЕ КОМПОНЕНТЫ ---
	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, loggers.Auth)
	txManager := repositories.NewTxManager(dbConn, cfg.Postgres.LockTimeout)
	publisher := services.NewEventPublisher(bus)

	// --- 1. РЕПОЗИТОРИИ ---
	equipmentRepo := repositories.NewEquipmentRepository(dbConn, loggers.Equipment)
	categoryRepo := repositories.NewCategoryRepository(dbConn, loggers.Equipment)
	historyRepo := repositories.NewStatusHistoryRepository(dbConn, loggers.Equipment)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)
	eventRepo := repositories.NewEventRepository(dbConn, loggers.Booking)
	bookingRepo := repositories.NewBookingRepository(dbConn, loggers.Booking)
	staffRepo := repositories.NewStaffRepository(dbConn, loggers.Booking)
	transactionLogRepo := repositories.NewTransactionLogRepository(dbConn, loggers.Booking)
	directoryRepo := repositories.NewDirectoryRepository(dbConn, loggers.Main)
	ticketRepo := repositories.NewMaintenanceRepository(dbConn, loggers.Maintenance)
	quoteRepo := repositories.NewQuoteRepository(dbConn, loggers.Finance)
	invoiceRepo := repositories.NewInvoiceRepository(dbConn, loggers.Finance)
	paymentRepo := repositories.NewPaymentRepository(dbConn, loggers.Finance)
	counterRepo := repositories.NewCounterRepository(dbConn, loggers.Finance)
	actionLogRepo := repositories.NewActionLogRepository(dbConn, loggers.Audit)

	// --- 2. СЕРВИСЫ ---
	equipmentService := services.NewEquipmentService(
		equipmentRepo, categoryRepo, historyRepo, bookingRepo, cacheRepo,
		txManager, publisher, cfg.Cache.StatusSummaryTTL, loggers.Equipment,
	)
	categoryService := services.NewCategoryService(categoryRepo, equipmentRepo, txManager, publisher, loggers.Equipment)
	importService := services.NewEquipmentImportService(equipmentRepo, categoryRepo, historyRepo, txManager, publisher, loggers.Equipment)
	eventService := services.NewEventService(eventRepo, bookingRepo, equipmentRepo, staffRepo, directoryRepo, txManager, publisher, loggers.Booking)
	bookingService := services.NewBookingService(bookingRepo, eventRepo, equipmentRepo, txManager, publisher, loggers.Booking)
	maintenanceService := services.NewMaintenanceService(
		ticketRepo, equipmentRepo, historyRepo, directoryRepo, txManager, publisher, loggers.Maintenance,
	)
	transactionService := services.NewTransactionService(
		transactionLogRepo, eventRepo, bookingRepo, equipmentRepo, historyRepo,
		maintenanceService, txManager, publisher, loggers.Booking,
	)
	quoteService := services.NewQuoteService(
		quoteRepo, invoiceRepo, eventRepo, directoryRepo, counterRepo,
		txManager, publisher, cfg.Finance, loggers.Finance,
	)
	invoiceService := services.NewInvoiceService(
		invoiceRepo, paymentRepo, eventRepo, directoryRepo, counterRepo,
		txManager, publisher, cfg.Finance, loggers.Finance,
	)

	// --- 3. СЛУШАТЕЛИ ШИНЫ ---
	listeners.NewAuditListener(actionLogRepo, loggers.Audit).Register(bus)
	listeners.NewEquipmentCacheListener(equipmentService, loggers.Equipment).Register(bus)

	// --- 4. РОУТЕРЫ ---
	secureGroup := api.Group("", authMW.Auth)

	runEquipmentRouter(secureGroup, equipmentService, importService, bookingService, loggers.Equipment)
	runCategoryRouter(secureGroup, categoryService, loggers.Equipment)
	runEventRouter(secureGroup, eventService, bookingService, transactionService, loggers.Booking)
	runBookingRouter(secureGroup, bookingService, loggers.Booking)
	runTransactionRouter(secureGroup, transactionService, loggers.Booking)
	runMaintenanceRouter(secureGroup, maintenanceService, loggers.Maintenance)
	runQuoteRouter(secureGroup, quoteService, loggers.Finance)
	runInvoiceRouter(secureGroup, invoiceService, loggers.Finance)

	loggers.Main.Info("INIT_ROUTER: Создание маршрутов завершено")

	return &Services{
		Equipment:   equipmentService,
		Invoice:     invoiceService,
		Quote:       quoteService,
		Transaction: transactionService,
	}
}
