package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/policy"
	"storefront/internal/repository"
)

// maxCartAttempts ограничивает число попыток получить-или-создать корзину при гонке
const maxCartAttempts = 3

// CartService корзина покупателя и её оформление в заказ.
// Все изменения корзины одного покупателя выполняются последовательно.
type CartService struct {
	orders    repository.OrderRepository
	items     repository.LineItemRepository
	addresses repository.ShippingAddressRepository
	tx        repository.TxManager
	catalog   Catalog
	authz     policy.Authorizer
	events    events.Publisher
	views     viewBuilder
	log       *zap.Logger

	locks    sync.Map // customerID -> *sync.Mutex
	inFlight sync.Map // customerID -> struct{}, checkouts in progress
}

func NewCartService(repos repository.Repositories, catalog Catalog, authz policy.Authorizer, pub events.Publisher, log *zap.Logger) *CartService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &CartService{
		orders:    repos.Orders,
		items:     repos.Items,
		addresses: repos.Addresses,
		tx:        repos.Tx,
		catalog:   catalog,
		authz:     authz,
		events:    pub,
		views:     viewBuilder{catalog: catalog, items: repos.Items, addresses: repos.Addresses, log: log},
		log:       log,
	}
}

// lockFor захватывает мьютекс покупателя и возвращает функцию освобождения
func (s *CartService) lockFor(customerID int64) func() {
	v, _ := s.locks.LoadOrStore(customerID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (s *CartService) allow(actor domain.Actor, action policy.Action) error {
	if !s.authz.Authorize(actor, action, policy.Own(actor)) {
		return domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	return nil
}

// openCart возвращает открытую корзину, создавая её при необходимости.
// Проигравший гонку за создание получает ErrConflict и перечитывает корзину.
func (s *CartService) openCart(ctx context.Context, customerID int64) (*domain.Order, error) {
	for attempt := 0; attempt < maxCartAttempts; attempt++ {
		cart, err := s.orders.GetOpenCart(ctx, customerID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Internal("load open cart", err)
		}
		cart, err = s.orders.CreateCart(ctx, customerID)
		if err == nil {
			s.log.Info("cart created", zap.Int64("customer_id", customerID), zap.Int64("order_id", cart.ID))
			return cart, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, domain.Internal("create cart", err)
		}
		s.log.Debug("cart creation raced, retrying", zap.Int64("customer_id", customerID), zap.Int("attempt", attempt+1))
	}
	return nil, domain.Conflict("could not obtain open cart")
}

// GetOrCreateCart идемпотентна: повторный вызов возвращает ту же корзину
func (s *CartService) GetOrCreateCart(ctx context.Context, actor domain.Actor) (*domain.OrderView, error) {
	if err := s.allow(actor, policy.ActionViewCart); err != nil {
		return nil, err
	}
	unlock := s.lockFor(actor.CustomerID)
	defer unlock()

	var view *domain.OrderView
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cart, err := s.openCart(ctx, actor.CustomerID)
		if err != nil {
			return err
		}
		view, err = s.views.build(ctx, *cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// AddItem увеличивает количество существующей позиции или добавляет новую
func (s *CartService) AddItem(ctx context.Context, actor domain.Actor, productID, quantity int64) (*domain.OrderView, error) {
	if err := s.allow(actor, policy.ActionMutateCart); err != nil {
		return nil, err
	}
	if productID <= 0 {
		return nil, domain.InvalidInput(domain.ErrMsgProductIDRequired)
	}
	if quantity <= 0 {
		return nil, domain.InvalidInput(domain.ErrMsgQuantityPositive)
	}
	unlock := s.lockFor(actor.CustomerID)
	defer unlock()

	var view *domain.OrderView
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.catalog.ResolveProduct(ctx, productID)
		if err != nil {
			return storeErr("resolve product", err)
		}
		cart, err := s.openCart(ctx, actor.CustomerID)
		if err != nil {
			return err
		}
		it, err := s.items.Upsert(ctx, cart.ID, p.ID, quantity)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFound(domain.ErrMsgProductNotFound)
		}
		if err != nil {
			return domain.Internal("add line item", err)
		}
		s.log.Info("cart item added",
			zap.Int64("customer_id", actor.CustomerID),
			zap.Int64("order_id", cart.ID),
			zap.Int64("product_id", p.ID),
			zap.Int64("quantity", it.Quantity))
		view, err = s.views.build(ctx, *cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// editItem находит позицию в открытой корзине покупателя и применяет к ней fn
func (s *CartService) editItem(ctx context.Context, actor domain.Actor, itemID int64, fn func(ctx context.Context, it *domain.LineItem) error) (*domain.OrderView, error) {
	unlock := s.lockFor(actor.CustomerID)
	defer unlock()

	var view *domain.OrderView
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		it, err := s.items.GetInOpenCart(ctx, itemID, actor.CustomerID)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFound(domain.ErrMsgItemNotInCart)
		}
		if err != nil {
			return domain.Internal("load line item", err)
		}
		if err := fn(ctx, it); err != nil {
			return err
		}
		cart, err := s.orders.GetByID(ctx, it.OrderID)
		if err != nil {
			return domain.Internal("load cart", err)
		}
		view, err = s.views.build(ctx, *cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateItem задаёт количество позиции (не прибавляет)
func (s *CartService) UpdateItem(ctx context.Context, actor domain.Actor, itemID, quantity int64) (*domain.OrderView, error) {
	if err := s.allow(actor, policy.ActionMutateCart); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, domain.InvalidInput(domain.ErrMsgQuantityPositive)
	}
	return s.editItem(ctx, actor, itemID, func(ctx context.Context, it *domain.LineItem) error {
		if err := s.items.SetQuantity(ctx, it.ID, quantity); err != nil {
			return domain.Internal("update line item", err)
		}
		s.log.Info("cart item updated",
			zap.Int64("customer_id", actor.CustomerID),
			zap.Int64("item_id", it.ID),
			zap.Int64("quantity", quantity))
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, actor domain.Actor, itemID int64) (*domain.OrderView, error) {
	if err := s.allow(actor, policy.ActionMutateCart); err != nil {
		return nil, err
	}
	return s.editItem(ctx, actor, itemID, func(ctx context.Context, it *domain.LineItem) error {
		if err := s.items.Delete(ctx, it.ID); err != nil {
			return domain.Internal("remove line item", err)
		}
		s.log.Info("cart item removed",
			zap.Int64("customer_id", actor.CustomerID),
			zap.Int64("item_id", it.ID))
		return nil
	})
}
