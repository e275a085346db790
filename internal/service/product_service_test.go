package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestProduct_Create_Valid(t *testing.T) {
	f := newFixture(t)
	p, err := f.products.Create(context.Background(), f.admin, domain.Product{Title: " Aspirin ", Price: decimal.RequireFromString("1.99"), Stock: 10})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "Aspirin", p.Title)
}

func TestProduct_Create_Invalid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bad := []domain.Product{
		{Title: "", Price: decimal.NewFromInt(1), Stock: 1},
		{Title: "   ", Price: decimal.NewFromInt(1), Stock: 1},
		{Title: "N", Price: decimal.NewFromInt(-1), Stock: 1},
		{Title: "N", Price: decimal.NewFromInt(1), Stock: -1},
	}
	for _, p := range bad {
		_, err := f.products.Create(ctx, f.admin, p)
		requireKind(t, domain.KindInvalidInput, err)
	}
}

func TestProduct_WritesAreAdminOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.customer(t, "alice")
	p := f.product(t, "Mug", "3.00")

	_, err := f.products.Create(ctx, alice, domain.Product{Title: "X", Price: decimal.NewFromInt(1)})
	requireKind(t, domain.KindForbidden, err)
	_, err = f.products.Update(ctx, f.staff, *p)
	requireKind(t, domain.KindForbidden, err)
	requireKind(t, domain.KindForbidden, f.products.Delete(ctx, alice, p.ID))
}

func TestProduct_Update_Get_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "A", "10")

	got, err := f.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	p.Title = "A+"
	p.Price = decimal.NewFromInt(12)
	p.Stock = 7
	up, err := f.products.Update(ctx, f.admin, *p)
	require.NoError(t, err)
	assert.Equal(t, "A+", up.Title)
	assert.True(t, up.Price.Equal(decimal.NewFromInt(12)))

	require.NoError(t, f.products.Delete(ctx, f.admin, p.ID))
	_, err = f.products.GetByID(ctx, p.ID)
	requireKind(t, domain.KindNotFound, err)
	requireKind(t, domain.KindNotFound, f.products.Delete(ctx, f.admin, p.ID))
}

func TestProduct_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "Aspirin", "100")
	f.product(t, "Paracetamol", "50")

	list, err := f.products.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Aspirin", list[0].Title)
}

func TestProduct_DeleteDropsCartLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.customer(t, "alice")
	mug := f.product(t, "Mug", "3.00")
	tea := f.product(t, "Tea", "2.00")
	_, err := f.carts.AddItem(ctx, alice, mug.ID, 1)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, alice, tea.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.products.Delete(ctx, f.admin, mug.ID))

	cart, err := f.carts.GetOrCreateCart(ctx, alice)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, tea.ID, cart.Items[0].ProductID)
	assert.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("4.00")))
}
