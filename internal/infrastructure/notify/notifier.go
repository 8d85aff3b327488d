// Package notify delivers stocktaking notifications to operators.
package notify

import (
	"context"
	"errors"

	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	_ stocktakingapp.Notifier = (*LogNotifier)(nil)
	_ stocktakingapp.Notifier = Fanout(nil)
)

// LogNotifier writes every notification to the structured log. It is always
// part of the fan-out so a notification is never silently lost.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify logs n at a level derived from its severity
func (l *LogNotifier) Notify(_ context.Context, n stocktakingapp.Notification) error {
	level := zapcore.InfoLevel
	switch n.Level {
	case stocktakingapp.LevelWarning:
		level = zapcore.WarnLevel
	case stocktakingapp.LevelError:
		level = zapcore.ErrorLevel
	}
	l.logger.Log(level, n.Title,
		zap.String("recipient", n.Recipient),
		zap.String("message", n.Message),
		zap.Stringer("sheet_id", n.SheetID),
	)
	return nil
}

// Fanout delivers to every notifier and joins their errors
type Fanout []stocktakingapp.Notifier

// Notify calls each notifier in order, continuing past failures
func (f Fanout) Notify(ctx context.Context, n stocktakingapp.Notification) error {
	var errs []error
	for _, notifier := range f {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
