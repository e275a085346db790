package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotals(t *testing.T) {
	a := Product{ID: 1, Title: "A", Price: decimal.RequireFromString("10.00")}
	b := Product{ID: 2, Title: "B", Price: decimal.RequireFromString("5.50")}
	items := []LineItemView{
		NewLineItemView(LineItem{ID: 1, ProductID: a.ID, Quantity: 2}, a),
		NewLineItemView(LineItem{ID: 2, ProductID: b.ID, Quantity: 1}, b),
	}

	total, count := Totals(items)
	assert.True(t, total.Equal(decimal.RequireFromString("25.50")), "total %s", total)
	assert.Equal(t, int64(3), count)
	assert.True(t, items[0].LineTotal.Equal(decimal.RequireFromString("20.00")))
}

func TestTotals_Empty(t *testing.T) {
	total, count := Totals(nil)
	assert.True(t, total.IsZero())
	assert.Zero(t, count)
}

func TestNewOrderView(t *testing.T) {
	p := Product{ID: 7, Title: "Mug", Price: decimal.RequireFromString("3.25")}
	o := Order{ID: 3, CustomerID: 9, Status: OrderStatusPending}

	v := NewOrderView(o, nil, nil)
	require.NotNil(t, v.Items)
	assert.Empty(t, v.Items)
	assert.Nil(t, v.ShippingAddress)

	addr := &ShippingAddress{Address: "1 Main St", City: "Dhaka", ZipCode: "1207"}
	v = NewOrderView(o, []LineItemView{NewLineItemView(LineItem{ID: 1, ProductID: 7, Quantity: 4}, p)}, addr)
	assert.True(t, v.TotalPrice.Equal(decimal.RequireFromString("13")))
	assert.Equal(t, int64(4), v.TotalItems)
	require.NotNil(t, v.ShippingAddress)
	assert.Equal(t, "Dhaka", v.ShippingAddress.City)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusShipped, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusPending, OrderStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestParseEnums(t *testing.T) {
	_, ok := ParseRole("satff")
	assert.False(t, ok)
	r, ok := ParseRole("staff")
	assert.True(t, ok)
	assert.Equal(t, RoleStaff, r)

	_, ok = ParseOrderStatus("Delivered")
	assert.False(t, ok)
	_, ok = ParsePaymentMethod("")
	assert.False(t, ok)
	m, ok := ParsePaymentMethod("COD")
	assert.True(t, ok)
	assert.True(t, m.SettledAtCheckout())
	assert.False(t, PaymentMethodOnline.SettledAtCheckout())
}

func TestCustomer_SetRole(t *testing.T) {
	c := Customer{Role: RoleCustomer}
	c.SetRole(RoleAdmin)
	assert.True(t, c.Privileged)
	assert.True(t, c.Superuser)

	c.SetRole(RoleStaff)
	assert.False(t, c.Privileged)
	assert.False(t, c.Superuser)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("x")))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, Kind(""), KindOf(nil))

	err := Internal("load cart", assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "load cart")
}
