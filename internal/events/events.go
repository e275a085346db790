// Package events публикует события жизненного цикла заказа.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type Type string

const (
	TypeCheckedOut       Type = "order.checked_out"
	TypeStatusUpdated    Type = "order.status_updated"
	TypePaymentConfirmed Type = "order.payment_confirmed"
	TypeDeleted          Type = "order.deleted"
)

// OrderEvent полезная нагрузка события, уходит в JSON
type OrderEvent struct {
	EventID       uuid.UUID            `json:"event_id"`
	Type          Type                 `json:"type"`
	OrderID       int64                `json:"order_id"`
	CustomerID    int64                `json:"customer_id"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	PaymentStatus bool                 `json:"payment_status"`
	TotalPrice    decimal.Decimal      `json:"total_price"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// FromView собирает событие по снимку заказа
func FromView(t Type, v *domain.OrderView) OrderEvent {
	return OrderEvent{
		EventID:       uuid.New(),
		Type:          t,
		OrderID:       v.ID,
		CustomerID:    v.CustomerID,
		Status:        v.Status,
		PaymentMethod: v.PaymentMethod,
		PaymentStatus: v.PaymentStatus,
		TotalPrice:    v.TotalPrice,
		OccurredAt:    time.Now().UTC(),
	}
}

// Deleted несёт только идентификаторы: заказа уже нет
func Deleted(o domain.Order) OrderEvent {
	return OrderEvent{
		EventID:       uuid.New(),
		Type:          TypeDeleted,
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		TotalPrice:    decimal.Zero,
		OccurredAt:    time.Now().UTC(),
	}
}

// Subject тема NATS для события
func (e OrderEvent) Subject() string { return "orders." + string(e.Type) }

type Publisher interface {
	Publish(ctx context.Context, e OrderEvent) error
	Close()
}

// Noop используется, когда NATS не настроен
type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) error { return nil }
func (Noop) Close()                                    {}
