package app

import (
	"context"
	"errors"

	httpHandler "drunc.client/internal/adapters/handler/http"
	"drunc.client/internal/config"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/services"
	"drunc.client/internal/core/tracing"
)

const Version = "0.1.0"

// Runtime holds the ambient services shared by the shells.
type Runtime struct {
	Config *config.Config
	Health *services.HealthService

	shutdown []func(context.Context) error
}

// Start loads the environment configuration, initializes logging and,
// when enabled, tracing and the metrics server.
func Start(component string) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Debug("Starting "+component, "version", Version, "user", cfg.User)

	rt := &Runtime{
		Config: cfg,
		Health: services.NewHealthService(Version),
	}

	if cfg.EnableTracing {
		shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			logger.Debug("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
			rt.OnShutdown(shutdownTracing)
		}
	}

	if cfg.EnableMetrics && cfg.MetricsAddr != "" {
		srv := httpHandler.NewServer(rt.Health)
		srv.Start(cfg.MetricsAddr)
		rt.OnShutdown(srv.Shutdown)
	}

	return rt, nil
}

// OnShutdown registers fn to run on Shutdown, latest first.
func (r *Runtime) OnShutdown(fn func(context.Context) error) {
	r.shutdown = append(r.shutdown, fn)
}

func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(r.shutdown) - 1; i >= 0; i-- {
		if err := r.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.shutdown = nil
	return errors.Join(errs...)
}
