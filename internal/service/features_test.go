package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/policy"
	"storefront/internal/repository"
)

type lifecycleContext struct {
	products  *ProductService
	customers *CustomerService
	carts     *CartService
	orders    *OrderService

	admin     domain.Actor
	actors    map[string]domain.Actor
	catalog   map[string]int64
	lastOrder int64
	err       error
}

func (c *lifecycleContext) reset(ctx context.Context) error {
	log := zap.NewNop()
	authz := policy.NewRolePolicy()
	repos := repository.NewMemoryRepositories()
	c.products = NewProductService(repos.Products, authz, log)
	c.customers = NewCustomerService(repos, authz, log)
	c.carts = NewCartService(repos, c.products, authz, events.Noop{}, log)
	c.orders = NewOrderService(repos, c.products, authz, events.Noop{}, log)
	c.actors = map[string]domain.Actor{}
	c.catalog = map[string]int64{}
	c.lastOrder = 0
	c.err = nil

	admin, err := c.customers.EnsureAdmin(ctx, "root", "root@example.com")
	if err != nil {
		return err
	}
	c.admin = admin.Actor()
	return nil
}

func (c *lifecycleContext) actor(name string) (domain.Actor, error) {
	a, ok := c.actors[name]
	if !ok {
		return domain.Actor{}, fmt.Errorf("unknown customer %q", name)
	}
	return a, nil
}

func (c *lifecycleContext) theCatalogHasProduct(ctx context.Context, title, price string) error {
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	p, err := c.products.Create(ctx, c.admin, domain.Product{Title: title, Price: amount, Stock: 100})
	if err != nil {
		return err
	}
	c.catalog[title] = p.ID
	return nil
}

func (c *lifecycleContext) customerIsRegistered(ctx context.Context, name string) error {
	cust, err := c.customers.Register(ctx, RegisterInput{Username: name, Email: name + "@example.com"})
	if err != nil {
		return err
	}
	c.actors[name] = cust.Actor()
	return nil
}

func (c *lifecycleContext) addsToTheCart(ctx context.Context, name string, qty int, title string) error {
	a, err := c.actor(name)
	if err != nil {
		return err
	}
	_, c.err = c.carts.AddItem(ctx, a, c.catalog[title], int64(qty))
	return c.err
}

func (c *lifecycleContext) lineFor(ctx context.Context, a domain.Actor, title string) (int64, error) {
	v, err := c.carts.GetOrCreateCart(ctx, a)
	if err != nil {
		return 0, err
	}
	for _, it := range v.Items {
		if it.ProductID == c.catalog[title] {
			return it.ID, nil
		}
	}
	return 0, fmt.Errorf("no %q in cart", title)
}

func (c *lifecycleContext) setsTheQuantity(ctx context.Context, name, title string, qty int) error {
	a, err := c.actor(name)
	if err != nil {
		return err
	}
	id, err := c.lineFor(ctx, a, title)
	if err != nil {
		return err
	}
	_, c.err = c.carts.UpdateItem(ctx, a, id, int64(qty))
	return c.err
}

func (c *lifecycleContext) removesFromTheCart(ctx context.Context, name, title string) error {
	a, err := c.actor(name)
	if err != nil {
		return err
	}
	id, err := c.lineFor(ctx, a, title)
	if err != nil {
		return err
	}
	_, c.err = c.carts.RemoveItem(ctx, a, id)
	return c.err
}

func (c *lifecycleContext) checksOutPaying(ctx context.Context, name, method string) error {
	a, err := c.actor(name)
	if err != nil {
		return err
	}
	v, err := c.carts.Checkout(ctx, a, CheckoutInput{Address: "1 Main St", City: "Dhaka", ZipCode: "1207", PaymentMethod: method})
	c.err = err
	if err == nil {
		c.lastOrder = v.ID
	}
	return nil
}

func (c *lifecycleContext) confirmsPayment(ctx context.Context, name string) error {
	a, err := c.actor(name)
	if err != nil {
		return err
	}
	_, c.err = c.orders.ConfirmPayment(ctx, a, c.lastOrder)
	return nil
}

// gatewayConfirmsPayment платёжный callback работает от имени администратора
func (c *lifecycleContext) gatewayConfirmsPayment(ctx context.Context) error {
	_, c.err = c.orders.ConfirmPayment(ctx, c.admin, c.lastOrder)
	return c.err
}

func (c *lifecycleContext) setsTheStatus(ctx context.Context, name, status string) error {
	a, err := c.actor(name)
	if err != nil {
		return err
	}
	_, c.err = c.orders.UpdateStatus(ctx, a, c.lastOrder, status)
	return nil
}

func (c *lifecycleContext) adminSetsTheStatus(ctx context.Context, status string) error {
	_, c.err = c.orders.UpdateStatus(ctx, c.admin, c.lastOrder, status)
	return c.err
}

func (c *lifecycleContext) cartHasLines(ctx context.Context, name string, n int) error {
	a, err := c.actor(name)
	if err != nil {
		return err
	}
	v, err := c.carts.GetOrCreateCart(ctx, a)
	if err != nil {
		return err
	}
	if len(v.Items) != n {
		return fmt.Errorf("expected %d lines, got %d", n, len(v.Items))
	}
	return nil
}

func (c *lifecycleContext) cartTotals(ctx context.Context, name, total string, items int) error {
	a, err := c.actor(name)
	if err != nil {
		return err
	}
	v, err := c.carts.GetOrCreateCart(ctx, a)
	if err != nil {
		return err
	}
	if got := v.TotalPrice.StringFixed(2); got != total {
		return fmt.Errorf("expected total %s, got %s", total, got)
	}
	if v.TotalItems != int64(items) {
		return fmt.Errorf("expected %d items, got %d", items, v.TotalItems)
	}
	return nil
}

func (c *lifecycleContext) last(ctx context.Context) (*domain.OrderView, error) {
	if c.lastOrder == 0 {
		return nil, errors.New("no order was checked out")
	}
	return c.orders.GetOrder(ctx, c.admin, c.lastOrder)
}

func (c *lifecycleContext) lastOrderIsCheckedOut(ctx context.Context) error {
	v, err := c.last(ctx)
	if err != nil {
		return err
	}
	if !v.IsCheckedOut {
		return errors.New("order is still an open cart")
	}
	return nil
}

func (c *lifecycleContext) lastOrderPaid(want bool) func(context.Context) error {
	return func(ctx context.Context) error {
		v, err := c.last(ctx)
		if err != nil {
			return err
		}
		if v.PaymentStatus != want {
			return fmt.Errorf("expected payment_status %v, got %v", want, v.PaymentStatus)
		}
		return nil
	}
}

func (c *lifecycleContext) lastOrderIsCompleted(ctx context.Context) error {
	v, err := c.last(ctx)
	if err != nil {
		return err
	}
	if !v.Completed {
		return errors.New("order is not completed")
	}
	return nil
}

func (c *lifecycleContext) lastOrderHasStatus(ctx context.Context, status string) error {
	v, err := c.last(ctx)
	if err != nil {
		return err
	}
	if string(v.Status) != status {
		return fmt.Errorf("expected status %q, got %q", status, v.Status)
	}
	return nil
}

func (c *lifecycleContext) theOperationFailsWith(kind string) error {
	if c.err == nil {
		return errors.New("expected the operation to fail but it succeeded")
	}
	if got := domain.KindOf(c.err); string(got) != kind {
		return fmt.Errorf("expected %s, got %s (%v)", kind, got, c.err)
	}
	return nil
}

func InitializeLifecycleScenario(ctx *godog.ScenarioContext) {
	tc := &lifecycleContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset(ctx)
	})

	// Given steps
	ctx.Step(`^the catalog has product "([^"]*)" priced "([^"]*)"$`, tc.theCatalogHasProduct)
	ctx.Step(`^customer "([^"]*)" is registered$`, tc.customerIsRegistered)

	// When steps
	ctx.Step(`^"([^"]*)" adds (\d+) of "([^"]*)" to the cart$`, tc.addsToTheCart)
	ctx.Step(`^"([^"]*)" sets the quantity of "([^"]*)" to (\d+)$`, tc.setsTheQuantity)
	ctx.Step(`^"([^"]*)" removes "([^"]*)" from the cart$`, tc.removesFromTheCart)
	ctx.Step(`^"([^"]*)" checks out paying "([^"]*)"$`, tc.checksOutPaying)
	ctx.Step(`^"([^"]*)" confirms payment of the last order$`, tc.confirmsPayment)
	ctx.Step(`^the payment gateway confirms payment of the last order$`, tc.gatewayConfirmsPayment)
	ctx.Step(`^"([^"]*)" sets the status of the last order to "([^"]*)"$`, tc.setsTheStatus)
	ctx.Step(`^the administrator sets the status of the last order to "([^"]*)"$`, tc.adminSetsTheStatus)

	// Then steps
	ctx.Step(`^the cart of "([^"]*)" has (\d+) lines$`, tc.cartHasLines)
	ctx.Step(`^the cart of "([^"]*)" totals "([^"]*)" for (\d+) items$`, tc.cartTotals)
	ctx.Step(`^the last order is checked out$`, tc.lastOrderIsCheckedOut)
	ctx.Step(`^the last order is paid$`, tc.lastOrderPaid(true))
	ctx.Step(`^the last order is not paid$`, tc.lastOrderPaid(false))
	ctx.Step(`^the last order is completed$`, tc.lastOrderIsCompleted)
	ctx.Step(`^the last order has status "([^"]*)"$`, tc.lastOrderHasStatus)
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
}

func TestLifecycleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart_lifecycle.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
