package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sevene/garayi-carwash-v2-sub001/carsync"
	"github.com/sevene/garayi-carwash-v2-sub001/config"
	"github.com/sevene/garayi-carwash-v2-sub001/models"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("POS_SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	config.ConnectDatabase()
	models.MigrateTable()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	// Startup repair: clear product references that would wedge uploads
	// before the driver takes its first pass.
	if fixed, err := carsync.SanitizeItemRefs(sigCtx); err != nil {
		config.LogError(logger, "main", "main", "startup sanitize", nil, err)
	} else if fixed > 0 {
		logger.WithFields(logrus.Fields{"field": "sanitize", "rowsFixed": fixed}).Info("startup sanitize repaired ticket items")
	}

	remote, err := carsync.NewRemoteStore()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "remote"}).Warn(err.Error())
	}

	var driver *carsync.Driver
	if remote != nil {
		driver = carsync.NewDriver(remote, carsync.NewQueue())
		go func() {
			if err := driver.Run(sigCtx); err != nil && err != context.Canceled {
				config.LogError(logger, "main", "main", "sync driver run", nil, err)
			}
		}()
	} else {
		// Register still works offline-only; queued changes drain once
		// remote credentials are configured and the service restarts.
		driver = carsync.NewDriver(nil, carsync.NewQueue())
		logger.WithFields(logrus.Fields{"field": "remote"}).Warn("remote store not configured; uploads disabled")
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(identityMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/api/sync/status", carsync.SyncStatusHandler(driver))
	r.POST("/api/sync/now", carsync.SyncNowHandler(driver))
	r.GET("/api/sync/outcomes", carsync.SyncOutcomesHandler())
	r.POST("/api/sync/sanitize", carsync.SanitizeHandler())

	r.GET("/api/tickets/number/next", carsync.TicketNumberNextHandler())
	r.GET("/api/tickets/number/:number", carsync.TicketNumberParseHandler())
	r.POST("/api/tickets/hold", carsync.HoldTicketHandler())
	r.GET("/api/tickets/held", carsync.HeldTicketsHandler())
	r.GET("/api/tickets/:id/reopen", carsync.ReopenTicketHandler())
	r.PATCH("/api/tickets/:id/status", carsync.TicketStatusHandler())
	r.DELETE("/api/tickets/:id", carsync.DeleteTicketHandler())

	r.GET("/api/catalog/products", carsync.ProductsHandler())
	r.GET("/api/catalog/services", carsync.ServicesHandler())
	r.GET("/api/employees", carsync.EmployeesHandler())
	r.GET("/api/customers", carsync.CustomersHandler())
	r.POST("/api/customers", carsync.CreateCustomerHandler())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{"field": "server", "port": port}).Info("pos sync service listening")

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

// identityMiddleware carries the register UI's identity headers into the
// request context. The device id falls back to the configured value so
// one-register installs need no headers at all.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		deviceId := strings.TrimSpace(c.GetHeader("x-device-id"))
		if deviceId == "" {
			deviceId = strings.TrimSpace(os.Getenv("POS_DEVICE_ID"))
		}
		if deviceId != "" {
			ctx = utils.SetDeviceIdInContext(ctx, deviceId)
		}
		if registerId := strings.TrimSpace(c.GetHeader("x-register-id")); registerId != "" {
			ctx = utils.SetRegisterIdInContext(ctx, registerId)
		}
		if operatorId := strings.TrimSpace(c.GetHeader("x-operator-id")); operatorId != "" {
			ctx = utils.SetOperatorIdInContext(ctx, operatorId)
		}
		if operatorName := strings.TrimSpace(c.GetHeader("x-operator-name")); operatorName != "" {
			ctx = utils.SetOperatorNameInContext(ctx, operatorName)
		}
		if token := bearerToken(c); token != "" {
			ctx = utils.SetTokenInContext(ctx, token)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader("token")); token != "" {
		return token
	}
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		deviceId, _ := utils.GetDeviceIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
			"device_id":      deviceId,
		}).Info("request")
	}
}
