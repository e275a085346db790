package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/policy"
	"storefront/internal/repository"
)

// RegisterInput данные для регистрации покупателя
type RegisterInput struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
}

// CustomerService справочник покупателей и их ролей
type CustomerService struct {
	repo      repository.CustomerRepository
	orders    repository.OrderRepository
	items     repository.LineItemRepository
	addresses repository.ShippingAddressRepository
	tx        repository.TxManager
	authz     policy.Authorizer
	log       *zap.Logger
}

func NewCustomerService(repos repository.Repositories, authz policy.Authorizer, log *zap.Logger) *CustomerService {
	return &CustomerService{
		repo:      repos.Customers,
		orders:    repos.Orders,
		items:     repos.Items,
		addresses: repos.Addresses,
		tx:        repos.Tx,
		authz:     authz,
		log:       log,
	}
}

// Register создаёт покупателя с ролью customer
func (s *CustomerService) Register(ctx context.Context, in RegisterInput) (*domain.Customer, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	c := domain.Customer{Username: in.Username, Email: in.Email}
	c.SetRole(domain.RoleCustomer)
	err := s.repo.Create(ctx, &c)
	if errors.Is(err, repository.ErrConflict) {
		return nil, domain.Conflict(domain.ErrMsgCustomerTaken)
	}
	if err != nil {
		return nil, domain.Internal("create customer", err)
	}
	s.log.Info("customer registered", zap.Int64("customer_id", c.ID), zap.String("username", c.Username))
	return &c, nil
}

func (s *CustomerService) load(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound(domain.ErrMsgCustomerNotFound)
	}
	if err != nil {
		return nil, domain.Internal("load customer", err)
	}
	return c, nil
}

// ResolveActor находит, от чьего имени пришёл запрос
func (s *CustomerService) ResolveActor(ctx context.Context, id int64) (domain.Actor, error) {
	if id <= 0 {
		return domain.Actor{}, domain.NotFound(domain.ErrMsgCustomerNotFound)
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return domain.Actor{}, err
	}
	return c.Actor(), nil
}

func (s *CustomerService) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Customer, error) {
	if !s.authz.Authorize(actor, policy.ActionViewCustomer, policy.Resource{OwnerID: id}) {
		return nil, domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	return s.load(ctx, id)
}

// ChangeRole только администратор; флаги привилегий меняются вместе с ролью
func (s *CustomerService) ChangeRole(ctx context.Context, actor domain.Actor, id int64, role string) (*domain.Customer, error) {
	if !s.authz.Authorize(actor, policy.ActionChangeRole, policy.Resource{OwnerID: id}) {
		return nil, domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	r, ok := domain.ParseRole(role)
	if !ok {
		return nil, domain.InvalidInput(domain.ErrMsgInvalidRole)
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := c.Role
	c.SetRole(r)
	err = s.repo.Update(ctx, c)
	if errors.Is(err, repository.ErrConflict) {
		return nil, domain.Conflict(domain.ErrMsgCustomerTaken)
	}
	if err != nil {
		return nil, domain.Internal("update customer", err)
	}
	s.log.Info("customer role changed",
		zap.Int64("customer_id", c.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(r)),
		zap.Int64("by", actor.CustomerID))
	return c, nil
}

// List все покупатели; только администратор
func (s *CustomerService) List(ctx context.Context, actor domain.Actor) ([]domain.Customer, error) {
	if !s.authz.Authorize(actor, policy.ActionListCustomers, policy.Resource{}) {
		return nil, domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.Internal("list customers", err)
	}
	return list, nil
}

// Delete удаляет покупателя со всеми его записями одной транзакцией.
// Хранилище не каскадирует: сначала позиции, затем адреса, затем заказы и корзина.
func (s *CustomerService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if !s.authz.Authorize(actor, policy.ActionDeleteCustomer, policy.Resource{OwnerID: id}) {
		return domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	var removed int
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.load(ctx, id); err != nil {
			return err
		}
		orders, err := s.orders.ListAllByCustomer(ctx, id)
		if err != nil {
			return domain.Internal("list customer orders", err)
		}
		for _, o := range orders {
			if err := s.items.DeleteByOrder(ctx, o.ID); err != nil {
				return domain.Internal("delete line items", err)
			}
			if err := s.addresses.DeleteByOrder(ctx, o.ID); err != nil {
				return domain.Internal("delete shipping addresses", err)
			}
			if err := s.orders.Delete(ctx, o.ID); err != nil {
				return domain.Internal("delete order", err)
			}
		}
		removed = len(orders)
		if err := s.repo.Delete(ctx, id); err != nil {
			return storeErr("delete customer", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("customer deleted",
		zap.Int64("customer_id", id),
		zap.Int("orders_removed", removed),
		zap.Int64("by", actor.CustomerID))
	return nil
}

// EnsureAdmin создаёт или повышает до администратора учётную запись при старте
func (s *CustomerService) EnsureAdmin(ctx context.Context, username, email string) (*domain.Customer, error) {
	c, err := s.repo.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c = &domain.Customer{Username: username, Email: email}
		c.SetRole(domain.RoleAdmin)
		if err := s.repo.Create(ctx, c); err != nil {
			return nil, domain.Internal("create admin", err)
		}
		s.log.Info("bootstrap admin created", zap.Int64("customer_id", c.ID), zap.String("username", username))
		return c, nil
	case err != nil:
		return nil, domain.Internal("load admin", err)
	}
	if c.Role != domain.RoleAdmin {
		c.SetRole(domain.RoleAdmin)
		if err := s.repo.Update(ctx, c); err != nil {
			return nil, domain.Internal("promote admin", err)
		}
		s.log.Info("bootstrap admin promoted", zap.Int64("customer_id", c.ID))
	}
	return c, nil
}
