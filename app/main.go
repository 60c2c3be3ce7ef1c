package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"rental-system/internal/routes"
	"rental-system/internal/scheduler"
	"rental-system/pkg/config"
	"rental-system/pkg/database/postgresql"
	apperrors "rental-system/pkg/errors"
	"rental-system/pkg/eventbus"
	applogger "rental-system/pkg/logger"
	appmiddleware "rental-system/pkg/middleware"
	"rental-system/pkg/service"
	"rental-system/pkg/utils"
	"rental-system/pkg/validation"
)

func main() {
	// 1. Конфиг и логгер
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.FilePath, cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Echo и общие middleware
	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()

	e.Use(appmiddleware.RequestID(logger))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXRequestID},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Disposition", echo.HeaderXRequestID},
	}))

	// 3. Postgres и миграции
	dbConn := postgresql.ConnectDB(cfg.Postgres)
	defer dbConn.Close()

	if cfg.Postgres.MigrateOnStart {
		if err := postgresql.Migrate(dbConn); err != nil {
			logger.Fatal("не удалось применить миграции", zap.Error(err))
		}
		logger.Info("Миграции применены")
	}

	// 4. Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
	}
	defer redisClient.Close()

	// 5. Шина событий, сервисы и маршруты
	bus := eventbus.New(logger.Named("eventbus"))
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, logger.Named("auth"))

	appLoggers := &routes.Loggers{
		Main:        logger,
		Auth:        logger.Named("auth"),
		Equipment:   logger.Named("equipment"),
		Booking:     logger.Named("booking"),
		Maintenance: logger.Named("maintenance"),
		Finance:     logger.Named("finance"),
		Audit:       logger.Named("audit"),
	}
	svcs := routes.InitRouter(e, dbConn, redisClient, bus, jwtSvc, appLoggers, cfg)

	// 6. Фоновые задачи
	var financeScheduler *scheduler.FinanceScheduler
	if cfg.Finance.OverdueJobEnabled {
		var err error
		financeScheduler, err = scheduler.NewFinanceScheduler(
			svcs.Invoice, svcs.Quote, svcs.Transaction, cfg.Finance.OverdueJobInterval, logger.Named("scheduler"),
		)
		if err != nil {
			logger.Fatal("не удалось создать планировщик", zap.Error(err))
		}
		if err := financeScheduler.Start(ctx); err != nil {
			logger.Fatal("не удалось запустить планировщик", zap.Error(err))
		}
	}

	// 7. Сервер
	go func() {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Получен сигнал остановки, завершаем работу")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки HTTP-сервера", zap.Error(err))
	}
	if financeScheduler != nil {
		if err := financeScheduler.Shutdown(); err != nil {
			logger.Error("Ошибка остановки планировщика", zap.Error(err))
		}
	}
	bus.Wait()
	logger.Info("Сервер остановлен")
}
