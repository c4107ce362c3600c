package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/searchktools/tiny-server/config"
	"github.com/searchktools/tiny-server/core"
	"github.com/searchktools/tiny-server/core/middleware"
)

// App wires configuration, logging and the engine together
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	engine  *core.Engine
	metrics *middleware.Metrics
}

// New creates an application instance. The engine comes with request ids,
// access logging and metrics installed; routes and further plugins are
// registered on Engine before Run.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	engine := core.NewEngine(core.WithConfig(cfg), core.WithLogger(logger))

	metrics, err := middleware.NewMetrics(nil, logger)
	if err != nil {
		return nil, err
	}
	engine.Use(
		middleware.NewRequestID(),
		middleware.NewAccessLog(logger),
		metrics,
	)

	return &App{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		metrics: metrics,
	}, nil
}

// Engine returns the underlying engine for route registration
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Metrics returns the metrics plugin
func (a *App) Metrics() *middleware.Metrics {
	return a.metrics
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves until ctx is cancelled.
func (a *App) RunContext(ctx context.Context) error {
	a.logger.Info("server starting",
		zap.String("addr", a.cfg.Addr()),
		zap.String("env", a.cfg.Env),
	)

	if err := a.engine.Run(ctx, a.cfg.Addr()); err != nil {
		return errors.Wrap(err, "server failed")
	}
	a.logger.Info("server stopped", zap.Uint64("responses_sent", a.engine.Stats().ResponsesSent))
	return nil
}

// NewLogger builds a JSON production logger in production and a console
// development logger otherwise, at the configured level.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger, nil
}
