package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderView сериализуемый снимок корзины или заказа
type OrderView struct {
	ID              int64           `json:"id"`
	CustomerID      int64           `json:"customer_id"`
	CreatedAt       time.Time       `json:"created_at"`
	Status          OrderStatus     `json:"status"`
	IsCheckedOut    bool            `json:"is_checked_out"`
	Completed       bool            `json:"completed"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   bool            `json:"payment_status"`
	Items           []LineItemView  `json:"items"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	TotalItems      int64           `json:"total_items"`
	ShippingAddress *AddressView    `json:"shipping_address,omitempty"`
}

type LineItemView struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type AddressView struct {
	Address string `json:"address"`
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
}

// NewLineItemView собирает строку снимка по текущей цене товара
func NewLineItemView(it LineItem, p Product) LineItemView {
	return LineItemView{
		ID:        it.ID,
		ProductID: it.ProductID,
		Title:     p.Title,
		UnitPrice: p.Price,
		Quantity:  it.Quantity,
		LineTotal: p.Price.Mul(decimal.NewFromInt(it.Quantity)),
	}
}

// NewOrderView считает итоги заново при каждом вызове
func NewOrderView(o Order, items []LineItemView, addr *ShippingAddress) *OrderView {
	if items == nil {
		items = []LineItemView{}
	}
	total, count := Totals(items)
	v := &OrderView{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		CreatedAt:     o.CreatedAt,
		Status:        o.Status,
		IsCheckedOut:  o.IsCheckedOut,
		Completed:     o.Completed,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Items:         items,
		TotalPrice:    total,
		TotalItems:    count,
	}
	if addr != nil {
		v.ShippingAddress = &AddressView{Address: addr.Address, City: addr.City, ZipCode: addr.ZipCode}
	}
	return v
}
