package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/tably/order-engine/internal/domain/order"
)

var _ order.NotificationSink = (*LogSink)(nil)

// LogSink records order events in the application log. Used when no broker is
// configured.
type LogSink struct {
	lg *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

func (s *LogSink) NotifyNewOrder(_ context.Context, o *order.Order) error {
	s.lg.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("tenant_id", o.TenantID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return nil
}

func (s *LogSink) NotifyStatusChanged(_ context.Context, orderID string, from, to order.Status, notes string) error {
	s.lg.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("notes", notes),
	)
	return nil
}

func (s *LogSink) NotifyOrderReady(_ context.Context, orderID string) error {
	s.lg.Info("order ready", zap.String("order_id", orderID))
	return nil
}

func (s *LogSink) NotifyOrderCompleted(_ context.Context, orderID string) error {
	s.lg.Info("order completed", zap.String("order_id", orderID))
	return nil
}
