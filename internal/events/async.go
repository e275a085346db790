package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("events: queue full")
	ErrClosed    = errors.New("events: publisher closed")
)

// AsyncPublisher отдаёт события фоновой горутине, запрос не ждёт брокер
type AsyncPublisher struct {
	next  Publisher
	log   *zap.Logger
	queue chan OrderEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Publisher, size int, log *zap.Logger) *AsyncPublisher {
	p := &AsyncPublisher{
		next:  next,
		log:   log,
		queue: make(chan OrderEvent, size),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for e := range p.queue {
		if err := p.next.Publish(context.Background(), e); err != nil {
			p.log.Error("event not delivered",
				zap.String("type", string(e.Type)),
				zap.Int64("order_id", e.OrderID),
				zap.Error(err))
		}
	}
}

// Publish не блокируется: при переполненной очереди событие отбрасывается
func (p *AsyncPublisher) Publish(_ context.Context, e OrderEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- e:
		return nil
	default:
		p.log.Warn("event queue full, event dropped",
			zap.String("type", string(e.Type)),
			zap.Int64("order_id", e.OrderID))
		return ErrQueueFull
	}
}

// Close дожидается отправки очереди и закрывает нижний издатель
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	p.next.Close()
}
