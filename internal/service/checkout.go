package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/policy"
	"storefront/internal/repository"
)

// CheckoutInput адрес доставки и способ оплаты
type CheckoutInput struct {
	Address       string `json:"address" validate:"required"`
	City          string `json:"city" validate:"required"`
	ZipCode       string `json:"zip_code" validate:"required"`
	PaymentMethod string `json:"payment_method"`
}

func (in CheckoutInput) trimmed() CheckoutInput {
	return CheckoutInput{
		Address:       strings.TrimSpace(in.Address),
		City:          strings.TrimSpace(in.City),
		ZipCode:       strings.TrimSpace(in.ZipCode),
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
	}
}

// Checkout превращает открытую корзину в заказ. Переход однонаправленный:
// повторное оформление той же корзины невозможно.
func (s *CartService) Checkout(ctx context.Context, actor domain.Actor, in CheckoutInput) (*domain.OrderView, error) {
	if err := s.allow(actor, policy.ActionCheckout); err != nil {
		return nil, err
	}
	// второе параллельное оформление не ждёт первое
	if _, busy := s.inFlight.LoadOrStore(actor.CustomerID, struct{}{}); busy {
		return nil, domain.Conflict(domain.ErrMsgCheckoutInFlight)
	}
	defer s.inFlight.Delete(actor.CustomerID)

	unlock := s.lockFor(actor.CustomerID)
	defer unlock()

	in = in.trimmed()
	var view *domain.OrderView
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cart, err := s.orders.GetOpenCart(ctx, actor.CustomerID)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFound(domain.ErrMsgCartNotFound)
		}
		if err != nil {
			return domain.Internal("load open cart", err)
		}
		if err := validateStruct(in); err != nil {
			return err
		}
		method, ok := domain.ParsePaymentMethod(in.PaymentMethod)
		if !ok {
			return domain.InvalidInput(domain.ErrMsgPaymentMethod)
		}
		items, err := s.items.ListByOrder(ctx, cart.ID)
		if err != nil {
			return domain.Internal("list line items", err)
		}
		if len(items) == 0 {
			return domain.InvalidState(domain.ErrMsgCartEmpty)
		}

		addr := domain.ShippingAddress{
			CustomerID: actor.CustomerID,
			OrderID:    cart.ID,
			Address:    in.Address,
			City:       in.City,
			ZipCode:    in.ZipCode,
		}
		if err := s.addresses.Create(ctx, &addr); err != nil {
			return domain.Internal("save shipping address", err)
		}
		err = s.orders.MarkCheckedOut(ctx, cart.ID, method, method.SettledAtCheckout())
		if errors.Is(err, repository.ErrConflict) {
			return domain.Conflict(domain.ErrMsgCartCheckedOut)
		}
		if err != nil {
			return domain.Internal("check out cart", err)
		}

		order, err := s.orders.GetByID(ctx, cart.ID)
		if err != nil {
			return domain.Internal("reload order", err)
		}
		view, err = s.views.build(ctx, *order)
		return err
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			s.log.Error("checkout failed", zap.Int64("customer_id", actor.CustomerID), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("order checked out",
		zap.Int64("customer_id", actor.CustomerID),
		zap.Int64("order_id", view.ID),
		zap.String("payment_method", string(view.PaymentMethod)),
		zap.Bool("paid", view.PaymentStatus),
		zap.String("total", view.TotalPrice.StringFixed(2)))
	publish(ctx, s.events, s.log, events.FromView(events.TypeCheckedOut, view))
	return view, nil
}
