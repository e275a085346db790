package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/repository"
)

// storeErr оставляет доменные ошибки как есть, остальное считает внутренней ошибкой
func storeErr(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Internal(op, err)
}

// viewBuilder собирает снимок заказа по текущим ценам каталога
type viewBuilder struct {
	catalog   Catalog
	items     repository.LineItemRepository
	addresses repository.ShippingAddressRepository
	log       *zap.Logger
}

func (b viewBuilder) build(ctx context.Context, o domain.Order) (*domain.OrderView, error) {
	items, err := b.items.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, domain.Internal("list line items", err)
	}
	views := make([]domain.LineItemView, 0, len(items))
	for _, it := range items {
		p, err := b.catalog.ResolveProduct(ctx, it.ProductID)
		if domain.KindOf(err) == domain.KindNotFound {
			// товар удалён из каталога между чтениями
			b.log.Warn("line item references missing product",
				zap.Int64("order_id", o.ID), zap.Int64("product_id", it.ProductID))
			continue
		}
		if err != nil {
			return nil, storeErr("resolve product", err)
		}
		views = append(views, domain.NewLineItemView(it, *p))
	}

	var addr *domain.ShippingAddress
	if o.IsCheckedOut {
		addr, err = b.addresses.LatestForOrder(ctx, o.ID)
		if errors.Is(err, repository.ErrNotFound) {
			addr, err = nil, nil
		}
		if err != nil {
			return nil, domain.Internal("load shipping address", err)
		}
	}
	return domain.NewOrderView(o, views, addr), nil
}

func (b viewBuilder) buildAll(ctx context.Context, orders []domain.Order) ([]*domain.OrderView, error) {
	out := make([]*domain.OrderView, 0, len(orders))
	for _, o := range orders {
		v, err := b.build(ctx, o)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// publish не влияет на результат операции: событие уже после коммита
func publish(ctx context.Context, pub events.Publisher, log *zap.Logger, e events.OrderEvent) {
	if err := pub.Publish(ctx, e); err != nil {
		log.Error("publish order event", zap.String("type", string(e.Type)), zap.Int64("order_id", e.OrderID), zap.Error(err))
	}
}
