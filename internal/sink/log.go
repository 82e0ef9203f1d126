package sink

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// Log writes reports and beacons to a logger instead of the network.
type Log struct {
	logger *zap.Logger
}

var _ Sink = (*Log)(nil)

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("sink")}
}

func (l *Log) Upload(_ context.Context, endpoint string, r telemetry.Report) error {
	fields := []zap.Field{
		zap.String("endpoint", endpoint),
		zap.Int("errors", len(r.Errors)),
		zap.Int("resources", r.Resources.Len()),
		zap.String("platform", r.User.Platform),
	}
	if r.Performance != nil {
		fields = append(fields, zap.Int64("load_ms", r.Performance.Load))
	}
	l.logger.Info("report", fields...)
	return nil
}

func (l *Log) Send(_ context.Context, endpoint, method string, data url.Values) error {
	l.logger.Info("beacon",
		zap.String("endpoint", endpoint),
		zap.String("method", method),
		zap.String("data", data.Encode()))
	return nil
}

func (l *Log) Close() error {
	_ = l.logger.Sync()
	return nil
}
