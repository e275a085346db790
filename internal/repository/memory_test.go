package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

func seedProduct(t *testing.T, r Repositories, title, price string) domain.Product {
	t.Helper()
	p := domain.Product{Title: title, Price: decimal.RequireFromString(price), Stock: 5}
	if err := r.Products.Create(context.Background(), &p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func TestMemoryStore_ProductCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := domain.Product{Title: "A", Price: decimal.NewFromInt(10), Stock: 5}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == 0 {
		t.Fatalf("no id")
	}

	got, err := store.GetByID(ctx, p.ID)
	if err != nil || got.ID != p.ID {
		t.Fatalf("get: %v", err)
	}

	p.Price = decimal.NewFromInt(12)
	if err := store.Update(ctx, &p); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryOrders_OneOpenCartPerCustomer(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, conflicts := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Orders.CreateCart(ctx, 42)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || conflicts != workers-1 {
		t.Fatalf("created=%d conflicts=%d", created, conflicts)
	}

	cart, err := r.Orders.GetOpenCart(ctx, 42)
	if err != nil {
		t.Fatalf("open cart: %v", err)
	}
	if err := r.Orders.MarkCheckedOut(ctx, cart.ID, domain.PaymentMethodCOD, true); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if err := r.Orders.MarkCheckedOut(ctx, cart.ID, domain.PaymentMethodCOD, true); !errors.Is(err, ErrConflict) {
		t.Fatalf("second checkout: expected conflict, got %v", err)
	}
	if _, err := r.Orders.GetOpenCart(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no open cart after checkout, got %v", err)
	}
	// a fresh cart is allowed once the previous one is checked out
	if _, err := r.Orders.CreateCart(ctx, 42); err != nil {
		t.Fatalf("new cart: %v", err)
	}
}

func TestMemoryLineItems_UpsertMerges(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()
	p := seedProduct(t, r, "Mug", "3.00")
	cart, _ := r.Orders.CreateCart(ctx, 1)

	first, err := r.Items.Upsert(ctx, cart.ID, p.ID, 2)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := r.Items.Upsert(ctx, cart.ID, p.ID, 3)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.ID != second.ID || second.Quantity != 5 {
		t.Fatalf("expected merged line, got %+v", second)
	}
	items, _ := r.Items.ListByOrder(ctx, cart.ID)
	if len(items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(items))
	}

	if _, err := r.Items.GetInOpenCart(ctx, first.ID, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign customer must not see item, got %v", err)
	}
	if _, err := r.Items.GetInOpenCart(ctx, first.ID, 1); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	_ = r.Orders.MarkCheckedOut(ctx, cart.ID, domain.PaymentMethodOnline, false)
	if _, err := r.Items.GetInOpenCart(ctx, first.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("checked-out item must not be editable, got %v", err)
	}
}

func TestMemoryStore_ProductDeleteCascades(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()
	p := seedProduct(t, r, "Mug", "3.00")
	cart, _ := r.Orders.CreateCart(ctx, 1)
	if _, err := r.Items.Upsert(ctx, cart.ID, p.ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := r.Products.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	items, _ := r.Items.ListByOrder(ctx, cart.ID)
	if len(items) != 0 {
		t.Fatalf("expected cascade, %d items left", len(items))
	}
}

func TestMemoryOrders_DeleteRequiresNoDependents(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()
	p := seedProduct(t, r, "Mug", "3.00")
	cart, _ := r.Orders.CreateCart(ctx, 1)
	_, _ = r.Items.Upsert(ctx, cart.ID, p.ID, 1)
	if err := r.Addresses.Create(ctx, &domain.ShippingAddress{CustomerID: 1, OrderID: cart.ID, Address: "x", City: "y", ZipCode: "z"}); err != nil {
		t.Fatal(err)
	}

	if err := r.Orders.Delete(ctx, cart.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict while items remain, got %v", err)
	}
	_ = r.Items.DeleteByOrder(ctx, cart.ID)
	_ = r.Addresses.DeleteByOrder(ctx, cart.ID)
	if err := r.Orders.Delete(ctx, cart.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Orders.GetOpenCart(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("open cart index not cleared: %v", err)
	}
}

func TestMemoryAddresses_Latest(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()
	cart, _ := r.Orders.CreateCart(ctx, 1)
	for _, city := range []string{"Dhaka", "Chittagong"} {
		a := domain.ShippingAddress{CustomerID: 1, OrderID: cart.ID, Address: "1 Main", City: city, ZipCode: "1000"}
		if err := r.Addresses.Create(ctx, &a); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.Addresses.LatestForOrder(ctx, cart.ID)
	if err != nil || got.City != "Chittagong" {
		t.Fatalf("latest: %+v %v", got, err)
	}
}

func TestMemoryTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()
	p := seedProduct(t, r, "Mug", "3.00")
	cart, _ := r.Orders.CreateCart(ctx, 1)

	boom := errors.New("boom")
	err := r.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.Items.Upsert(ctx, cart.ID, p.ID, 2); err != nil {
			return err
		}
		if err := r.Orders.MarkCheckedOut(ctx, cart.ID, domain.PaymentMethodCOD, true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	items, _ := r.Items.ListByOrder(ctx, cart.ID)
	if len(items) != 0 {
		t.Fatalf("items not rolled back: %d", len(items))
	}
	open, err := r.Orders.GetOpenCart(ctx, 1)
	if err != nil || open.IsCheckedOut {
		t.Fatalf("cart not rolled back: %+v %v", open, err)
	}
}

func TestMemoryTx_Nested(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()
	err := r.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		return r.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := r.Orders.CreateCart(ctx, 7)
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}
	if _, err := r.Orders.GetOpenCart(ctx, 7); err != nil {
		t.Fatalf("cart missing: %v", err)
	}
}

func TestMemoryOrders_ListByCustomerNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()
	var ids []int64
	for i := 0; i < 3; i++ {
		c, _ := r.Orders.CreateCart(ctx, 5)
		_ = r.Orders.MarkCheckedOut(ctx, c.ID, domain.PaymentMethodCOD, true)
		ids = append(ids, c.ID)
	}
	_, _ = r.Orders.CreateCart(ctx, 5) // open cart is not listed

	list, _ := r.Orders.ListByCustomer(ctx, 5)
	if len(list) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(list))
	}
	if list[0].ID != ids[2] || list[2].ID != ids[0] {
		t.Fatalf("wrong order: %v", list)
	}
}

func TestMemoryOrders_ListAllByCustomerIncludesCart(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()
	done, _ := r.Orders.CreateCart(ctx, 5)
	_ = r.Orders.MarkCheckedOut(ctx, done.ID, domain.PaymentMethodCOD, true)
	open, _ := r.Orders.CreateCart(ctx, 5)
	_, _ = r.Orders.CreateCart(ctx, 6)

	list, err := r.Orders.ListAllByCustomer(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != open.ID || list[1].ID != done.ID {
		t.Fatalf("unexpected records: %v", list)
	}
}

func TestMemoryCustomers_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepositories()
	alice := domain.Customer{Username: "alice", Email: "alice@example.com", Role: domain.RoleCustomer}
	bob := domain.Customer{Username: "bob", Email: "bob@example.com", Role: domain.RoleCustomer}
	for _, c := range []*domain.Customer{&alice, &bob} {
		if err := r.Customers.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	cart, _ := r.Orders.CreateCart(ctx, alice.ID)

	if err := r.Customers.Delete(ctx, alice.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict while orders remain, got %v", err)
	}
	_ = r.Orders.Delete(ctx, cart.ID)
	if err := r.Customers.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.Customers.Delete(ctx, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, _ := r.Customers.List(ctx)
	if len(list) != 1 || list[0].ID != bob.ID {
		t.Fatalf("unexpected customers: %v", list)
	}
}
