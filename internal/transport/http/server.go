package http

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"fruitfresh/internal/bootstrap"
	"fruitfresh/internal/transport/http/handler"
	"fruitfresh/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.AccessLog(app.Logger), gin.Recovery())
	router.MaxMultipartMemory = app.Config.Upload.MaxBytes

	healthHandler := handler.NewHealthHandler(
		app.Config.App.Name,
		app.Config.App.Env,
		app.StartedAt,
		app.Models,
		app.Config.Model.Path,
		dependencyChecks(app),
	)
	router.StaticFile("/", filepath.Join(app.Config.App.WebDir, "index.html"))
	router.GET("/healthz", healthHandler.Check)

	classifyHandler := handler.NewClassifyHandler(app.Classification, app.Config.Upload.MaxBytes)
	historyHandler := handler.NewHistoryHandler(app.History)

	v1 := router.Group("/api/v1")
	v1.GET("/labels", handler.Labels)
	v1.POST("/classify", classifyHandler.Classify)

	predictions := v1.Group("/predictions")
	predictions.GET("/recent", historyHandler.Recent)
	predictions.GET("/stats", historyHandler.Stats)

	return router
}

func dependencyChecks(app *bootstrap.App) map[string]handler.DependencyCheck {
	checks := map[string]handler.DependencyCheck{}
	if app.DB != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := app.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}
	}
	if app.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if app.MQConn.IsClosed() {
				return errConnectionClosed
			}
			return nil
		}
	}
	return checks
}

var errConnectionClosed = errors.New("connection closed")
