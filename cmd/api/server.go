package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/api"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/config"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/db"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// startServer runs the query API for the application's lifetime.
func startServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, engine *gin.Engine) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting query API", zap.Int("port", cfg.API.Port))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("query API server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideServer creates the query API server
func ProvideServer(repo *repository.Repository, cfg *config.Config, logger *zap.Logger) (*api.Server, error) {
	return api.NewServer(repo, cfg.API.Token, logger)
}

// ProvideEngine builds the gin engine with all routes registered
func ProvideEngine(s *api.Server) *gin.Engine {
	return api.NewEngine(s)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}
