package extensions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/phlex-run/phlex"
)

// LoggingExtension logs every node dispatch at debug/warn level via
// zap, the scheduler's own logging library, timing each Operation from
// Wrap entry to completion.
type LoggingExtension struct {
	phlex.BaseExtension
	logger *zap.Logger
}

// NewLoggingExtension returns a LoggingExtension writing through logger.
func NewLoggingExtension(logger *zap.Logger) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: phlex.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() error, op *phlex.Operation) error {
	start := time.Now()
	e.logger.Debug("dispatch starting",
		zap.String("node", op.Node.FullName.String()),
		zap.String("kind", string(op.Kind)),
		zap.String("level", op.Store.Level.String()))

	err := next()

	fields := []zap.Field{
		zap.String("node", op.Node.FullName.String()),
		zap.String("kind", string(op.Kind)),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		e.logger.Warn("dispatch failed", append(fields, zap.Error(err))...)
	} else {
		e.logger.Debug("dispatch completed", fields...)
	}
	return err
}
