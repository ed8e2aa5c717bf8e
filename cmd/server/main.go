package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appproc "github.com/popr/backend/internal/application/procurement"
	"github.com/popr/backend/internal/infrastructure/config"
	"github.com/popr/backend/internal/infrastructure/erp"
	"github.com/popr/backend/internal/infrastructure/logger"
	"github.com/popr/backend/internal/infrastructure/notification"
	"github.com/popr/backend/internal/infrastructure/persistence"
	"github.com/popr/backend/internal/interfaces/http/handler"
	"github.com/popr/backend/internal/interfaces/http/middleware"
	"github.com/popr/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting purchase order processor",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	purchaseOrderRepo := persistence.NewGormPurchaseOrderRepository(db.DB)

	// Only the file-backed demo gateway ships with this build; live mode
	// expects an external gateway binary on the same interface.
	if cfg.ERP.Mode != "demo" {
		log.Fatal("ERP mode not supported by this build", zap.String("mode", cfg.ERP.Mode))
	}
	gateway := erp.NewDemoGateway(cfg.ERP.DataFile, log)

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), cfg.ERP.ConnectTimeout)
	if err := gateway.Connect(connectCtx); err != nil {
		cancelConnect()
		log.Fatal("Failed to connect to ERP gateway", zap.Error(err))
	}
	cancelConnect()
	defer func() {
		if err := gateway.Disconnect(context.Background()); err != nil {
			log.Error("Error disconnecting ERP gateway", zap.Error(err))
		}
	}()

	notifier := notification.NewLogNotifier(log, cfg.Notification.Recipients, cfg.Notification.Enabled)

	processService := appproc.NewProcessService(purchaseOrderRepo, gateway, notifier, log)
	processService.SetLockDuration(cfg.Processing.LockDuration)
	processService.SetSkipExternalLock(cfg.Processing.SkipExternalLock)
	approvalService := appproc.NewApprovalService(purchaseOrderRepo, gateway, notifier, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.RequestLogger(log))

	purchaseOrderHandler := handler.NewPurchaseOrderHandler(processService, approvalService)

	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithHealthHandler(healthHandler(db)),
	)
	r.Register(purchaseOrderHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports server and database health
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
