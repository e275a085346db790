package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/policy"
	"storefront/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	repos     repository.Repositories
	products  *ProductService
	customers *CustomerService
	carts     *CartService
	orders    *OrderService
	pub       *recordingPublisher
	admin     domain.Actor
	staff     domain.Actor
}

func newFixture(t *testing.T, opts ...OrderOption) *fixture {
	t.Helper()
	log := zap.NewNop()
	authz := policy.NewRolePolicy()
	repos := repository.NewMemoryRepositories()
	pub := &recordingPublisher{}

	f := &fixture{repos: repos, pub: pub}
	f.products = NewProductService(repos.Products, authz, log)
	f.customers = NewCustomerService(repos, authz, log)
	f.carts = NewCartService(repos, f.products, authz, pub, log)
	f.orders = NewOrderService(repos, f.products, authz, pub, log, opts...)

	admin, err := f.customers.EnsureAdmin(context.Background(), "root", "root@example.com")
	require.NoError(t, err)
	f.admin = admin.Actor()
	f.staff = f.customer(t, "clerk")
	staff, err := f.customers.ChangeRole(context.Background(), f.admin, f.staff.CustomerID, "staff")
	require.NoError(t, err)
	f.staff = staff.Actor()
	return f
}

func (f *fixture) customer(t *testing.T, name string) domain.Actor {
	t.Helper()
	c, err := f.customers.Register(context.Background(), RegisterInput{Username: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return c.Actor()
}

func (f *fixture) product(t *testing.T, title, price string) *domain.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), f.admin, domain.Product{Title: title, Price: decimal.RequireFromString(price), Stock: 10})
	require.NoError(t, err)
	return p
}

var address = CheckoutInput{Address: "12 Lake Road", City: "Dhaka", ZipCode: "1207"}

func checkoutWith(method string) CheckoutInput {
	in := address
	in.PaymentMethod = method
	return in
}

// checkedOutOrder builds a cart with one product and checks it out
func (f *fixture) checkedOutOrder(t *testing.T, actor domain.Actor, method string) *domain.OrderView {
	t.Helper()
	ctx := context.Background()
	p := f.product(t, "Item", "4.00")
	_, err := f.carts.AddItem(ctx, actor, p.ID, 1)
	require.NoError(t, err)
	v, err := f.carts.Checkout(ctx, actor, checkoutWith(method))
	require.NoError(t, err)
	return v
}

func requireKind(t *testing.T, want domain.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, domain.KindOf(err), "error: %v", err)
}
