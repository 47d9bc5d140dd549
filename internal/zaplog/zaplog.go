// Package zaplog writes request and projection events to a zap logger.
package zaplog

import (
	"context"
	"fmt"

	eventbus "github.com/hanpama/protofetch/internal/eventbus"
	events "github.com/hanpama/protofetch/internal/events"
	reqid "github.com/hanpama/protofetch/internal/reqid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a development logger at level ("debug", "info", "warn",
// "error"). An empty level returns a no-op logger.
func New(level string) (*zap.Logger, error) {
	if level == "" {
		return zap.NewNop(), nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("zaplog: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// Register logs request and projection events from the global bus to logger
// and returns a function that removes the subscriptions.
func Register(logger *zap.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Duration("duration", e.Duration),
			}
			if e.Status >= 400 {
				logger.Warn("request failed", fields...)
				return
			}
			logger.Info("request served", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ProjectionStart) {
			logger.Debug("projection started",
				requestID(ctx),
				zap.String("message", e.Message),
				zap.String("operation", e.OperationName),
				zap.String("operationType", e.OperationType))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ProjectionFinish) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("message", e.Message),
				zap.String("operation", e.OperationName),
				zap.Duration("duration", e.Duration),
				zap.Int("errors", len(e.Errors)),
			}
			if len(e.Errors) > 0 {
				logger.Warn("projection finished with errors", append(fields, zap.Errors("causes", e.Errors))...)
				return
			}
			logger.Info("projection finished", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.FieldResolved) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("path", e.Path),
				zap.String("field", e.Message+"."+e.Field),
				zap.Bool("deferred", e.Deferred),
				zap.Duration("duration", e.Duration),
			}
			if e.Err != nil {
				logger.Warn("field failed", append(fields, zap.Error(e.Err))...)
				return
			}
			logger.Debug("field resolved", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.AccessorDiscovered) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("field", e.Field),
				zap.String("accessor", e.Accessor),
				zap.String("sourceType", e.SourceType),
			}
			if e.Err != nil {
				logger.Warn("accessor not found", append(fields, zap.Error(e.Err))...)
				return
			}
			logger.Debug("accessor discovered", fields...)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func requestID(ctx context.Context) zap.Field {
	if rid, ok := reqid.FromContext(ctx); ok {
		return zap.Int64("rid", rid)
	}
	return zap.Skip()
}
