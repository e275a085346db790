package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/policy"
	"storefront/internal/repository"
)

// OrderService реализует логику оформленных заказов: статус, оплата, удаление, чтение
type OrderService struct {
	orders    repository.OrderRepository
	items     repository.LineItemRepository
	addresses repository.ShippingAddressRepository
	tx        repository.TxManager
	authz     policy.Authorizer
	events    events.Publisher
	views     viewBuilder
	log       *zap.Logger
	strict    bool
}

type OrderOption func(*OrderService)

// WithStrictTransitions включает проверку переходов по domain.CanTransition
func WithStrictTransitions(strict bool) OrderOption {
	return func(s *OrderService) { s.strict = strict }
}

func NewOrderService(repos repository.Repositories, catalog Catalog, authz policy.Authorizer, pub events.Publisher, log *zap.Logger, opts ...OrderOption) *OrderService {
	if pub == nil {
		pub = events.Noop{}
	}
	s := &OrderService{
		orders:    repos.Orders,
		items:     repos.Items,
		addresses: repos.Addresses,
		tx:        repos.Tx,
		authz:     authz,
		events:    pub,
		views:     viewBuilder{catalog: catalog, items: repos.Items, addresses: repos.Addresses, log: log},
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkedOut загружает заказ; открытая корзина заказом не считается
func (s *OrderService) checkedOut(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.IsCheckedOut {
		return nil, domain.NotFound(domain.ErrMsgOrderNotFound)
	}
	return o, nil
}

func (s *OrderService) load(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, domain.NotFound(domain.ErrMsgOrderNotFound)
	}
	o, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound(domain.ErrMsgOrderNotFound)
	}
	if err != nil {
		return nil, domain.Internal("load order", err)
	}
	return o, nil
}

// UpdateStatus только для администратора. По умолчанию любой статус может
// смениться на любой; в строгом режиме действует таблица переходов.
func (s *OrderService) UpdateStatus(ctx context.Context, actor domain.Actor, id int64, status string) (*domain.OrderView, error) {
	if !s.authz.Authorize(actor, policy.ActionUpdateStatus, policy.Resource{}) {
		return nil, domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	next, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, domain.InvalidInput(domain.ErrMsgInvalidStatus)
	}

	var (
		view *domain.OrderView
		prev domain.OrderStatus
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.checkedOut(ctx, id)
		if err != nil {
			return err
		}
		prev = o.Status
		if s.strict && !domain.CanTransition(o.Status, next) {
			return domain.InvalidState(domain.ErrMsgIllegalTransition)
		}
		o.Status = next
		if err := s.orders.Update(ctx, o); err != nil {
			return domain.Internal("update order", err)
		}
		view, err = s.views.build(ctx, *o)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order status updated",
		zap.Int64("order_id", id),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.Int64("by", actor.CustomerID))
	publish(ctx, s.events, s.log, events.FromView(events.TypeStatusUpdated, view))
	return view, nil
}

// ConfirmPayment вызывается после успешной оплаты: заказ оплачен, доставлен и завершён
// независимо от текущего статуса.
func (s *OrderService) ConfirmPayment(ctx context.Context, actor domain.Actor, id int64) (*domain.OrderView, error) {
	var view *domain.OrderView
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.checkedOut(ctx, id)
		if err != nil {
			return err
		}
		if !s.authz.Authorize(actor, policy.ActionConfirmPayment, policy.Resource{OwnerID: o.CustomerID}) {
			return domain.Forbidden(domain.ErrMsgPermissionDenied)
		}
		o.PaymentStatus = true
		o.Status = domain.OrderStatusDelivered
		o.Completed = true
		if err := s.orders.Update(ctx, o); err != nil {
			return domain.Internal("update order", err)
		}
		view, err = s.views.build(ctx, *o)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order payment confirmed", zap.Int64("order_id", id), zap.Int64("by", actor.CustomerID))
	publish(ctx, s.events, s.log, events.FromView(events.TypePaymentConfirmed, view))
	return view, nil
}

// DeleteOrder удаляет заказ и все зависимые записи одной транзакцией
func (s *OrderService) DeleteOrder(ctx context.Context, actor domain.Actor, id int64) error {
	if !s.authz.Authorize(actor, policy.ActionDeleteOrder, policy.Resource{}) {
		return domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	var deleted domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := s.items.DeleteByOrder(ctx, o.ID); err != nil {
			return domain.Internal("delete line items", err)
		}
		if err := s.addresses.DeleteByOrder(ctx, o.ID); err != nil {
			return domain.Internal("delete shipping addresses", err)
		}
		if err := s.orders.Delete(ctx, o.ID); err != nil {
			return domain.Internal("delete order", err)
		}
		deleted = *o
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("order deleted", zap.Int64("order_id", id), zap.Int64("by", actor.CustomerID))
	publish(ctx, s.events, s.log, events.Deleted(deleted))
	return nil
}

// GetOrder возвращает заказ владельцу, администратору или сотруднику
func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id int64) (*domain.OrderView, error) {
	var v *domain.OrderView
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if !s.authz.Authorize(actor, policy.ActionViewOrder, policy.Resource{OwnerID: o.CustomerID}) {
			return domain.Forbidden(domain.ErrMsgPermissionDenied)
		}
		v, err = s.views.build(ctx, *o)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListOrders оформленные заказы текущего покупателя, новые первыми
func (s *OrderService) ListOrders(ctx context.Context, actor domain.Actor) ([]*domain.OrderView, error) {
	if !s.authz.Authorize(actor, policy.ActionViewOrder, policy.Own(actor)) {
		return nil, domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	return s.readAll(ctx, func(ctx context.Context) ([]domain.Order, error) {
		return s.orders.ListByCustomer(ctx, actor.CustomerID)
	})
}

// ListAllOrders все записи, включая открытые корзины
func (s *OrderService) ListAllOrders(ctx context.Context, actor domain.Actor) ([]*domain.OrderView, error) {
	if !s.authz.Authorize(actor, policy.ActionListAllOrders, policy.Resource{}) {
		return nil, domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	return s.readAll(ctx, func(ctx context.Context) ([]domain.Order, error) {
		return s.orders.List(ctx)
	})
}

// readAll читает заказы и их позиции в одной транзакции
func (s *OrderService) readAll(ctx context.Context, list func(context.Context) ([]domain.Order, error)) ([]*domain.OrderView, error) {
	var views []*domain.OrderView
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		orders, err := list(ctx)
		if err != nil {
			return domain.Internal("list orders", err)
		}
		views, err = s.views.buildAll(ctx, orders)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}
