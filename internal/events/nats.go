package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// natsConn часть *nats.Conn, нужная издателю
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	IsConnected() bool
	Close()
}

type NatsPublisher struct {
	nc         natsConn
	log        *zap.Logger
	attempts   int
	retryDelay time.Duration
}

// Connect подключается к NATS за несколько попыток
func Connect(ctx context.Context, url string, log *zap.Logger) (*NatsPublisher, error) {
	var err error
	for i := 0; i < 3; i++ {
		var nc *nats.Conn
		nc, err = nats.Connect(url,
			nats.Name("storefront"),
			nats.MaxReconnects(5),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err == nil {
			log.Info("connected to nats", zap.String("url", url))
			return newNatsPublisher(nc, log), nil
		}
		log.Warn("nats connect failed", zap.Int("attempt", i+1), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to nats: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to nats after retries: %w", err)
}

func newNatsPublisher(nc natsConn, log *zap.Logger) *NatsPublisher {
	return &NatsPublisher{nc: nc, log: log, attempts: 3, retryDelay: time.Second}
}

func (p *NatsPublisher) Publish(ctx context.Context, e OrderEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := e.Subject()

	for i := 0; i < p.attempts; i++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = p.nc.Publish(subject, data); err != nil {
			p.log.Warn("nats publish failed", zap.String("subject", subject), zap.Int("attempt", i+1), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryDelay):
			}
			continue
		}
		if err = p.nc.FlushTimeout(2 * time.Second); err != nil {
			p.log.Warn("nats flush failed", zap.String("subject", subject), zap.Error(err))
			continue
		}
		p.log.Debug("event published", zap.String("subject", subject), zap.Int64("order_id", e.OrderID))
		return nil
	}
	p.log.Error("event not published", zap.String("subject", subject), zap.Int64("order_id", e.OrderID), zap.Error(err))
	return fmt.Errorf("publish %s: %w", subject, err)
}

func (p *NatsPublisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
		p.log.Info("nats connection closed")
	}
}
