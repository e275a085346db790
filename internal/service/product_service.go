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

// Catalog источник актуальных данных о товаре для корзины и заказов
type Catalog interface {
	ResolveProduct(ctx context.Context, id int64) (*domain.Product, error)
}

// ProductService инкапсулирует бизнес-логику вокруг товаров
type ProductService struct {
	repo  repository.ProductRepository
	authz policy.Authorizer
	log   *zap.Logger
}

var _ Catalog = (*ProductService)(nil)

func NewProductService(repo repository.ProductRepository, authz policy.Authorizer, log *zap.Logger) *ProductService {
	return &ProductService{repo: repo, authz: authz, log: log}
}

func validProduct(p domain.Product) bool {
	return strings.TrimSpace(p.Title) != "" && !p.Price.IsNegative() && p.Stock >= 0
}

func (s *ProductService) Create(ctx context.Context, actor domain.Actor, p domain.Product) (*domain.Product, error) {
	if !s.authz.Authorize(actor, policy.ActionManageCatalog, policy.Resource{}) {
		return nil, domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	if !validProduct(p) {
		return nil, domain.InvalidInput("title is required, price and stock must not be negative")
	}
	cp := p
	cp.Title = strings.TrimSpace(cp.Title)
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, domain.Internal("create product", err)
	}
	s.log.Info("product created", zap.Int64("product_id", cp.ID), zap.String("title", cp.Title))
	return &cp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, domain.InvalidInput(domain.ErrMsgProductIDRequired)
	}
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound(domain.ErrMsgProductNotFound)
	}
	if err != nil {
		return nil, domain.Internal("load product", err)
	}
	return p, nil
}

// ResolveProduct NotFound, если товара нет в каталоге
func (s *ProductService) ResolveProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.GetByID(ctx, id)
}

func (s *ProductService) Update(ctx context.Context, actor domain.Actor, p domain.Product) (*domain.Product, error) {
	if !s.authz.Authorize(actor, policy.ActionManageCatalog, policy.Resource{}) {
		return nil, domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	if p.ID <= 0 {
		return nil, domain.InvalidInput(domain.ErrMsgProductIDRequired)
	}
	if !validProduct(p) {
		return nil, domain.InvalidInput("title is required, price and stock must not be negative")
	}
	cp := p
	cp.Title = strings.TrimSpace(cp.Title)
	err := s.repo.Update(ctx, &cp)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFound(domain.ErrMsgProductNotFound)
	}
	if err != nil {
		return nil, domain.Internal("update product", err)
	}
	return &cp, nil
}

// Delete удаляет товар; позиции корзин и заказов с ним удаляются каскадом
func (s *ProductService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if !s.authz.Authorize(actor, policy.ActionManageCatalog, policy.Resource{}) {
		return domain.Forbidden(domain.ErrMsgPermissionDenied)
	}
	if id <= 0 {
		return domain.InvalidInput(domain.ErrMsgProductIDRequired)
	}
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(domain.ErrMsgProductNotFound)
	}
	if err != nil {
		return domain.Internal("delete product", err)
	}
	s.log.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.Internal("list products", err)
	}
	return list, nil
}
