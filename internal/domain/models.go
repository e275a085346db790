package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role роль пользователя магазина
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// ParseRole принимает только известные роли
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return r, true
	default:
		return "", false
	}
}

// Actor тот, от чьего имени выполняется операция
type Actor struct {
	CustomerID int64
	Role       Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Customer покупатель (или сотрудник) магазина
type Customer struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Privileged bool      `json:"privileged"`
	Superuser  bool      `json:"superuser"`
	CreatedAt  time.Time `json:"created_at"`
}

// SetRole меняет роль и синхронно переключает флаги повышенных привилегий
func (c *Customer) SetRole(r Role) {
	c.Role = r
	elevated := r == RoleAdmin
	c.Privileged = elevated
	c.Superuser = elevated
}

func (c *Customer) Actor() Actor {
	return Actor{CustomerID: c.ID, Role: c.Role}
}

// Product товар каталога
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PaymentMethod способ оплаты заказа
type PaymentMethod string

const (
	PaymentMethodNone   PaymentMethod = ""
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodOnline PaymentMethod = "ONLINE"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(s); m {
	case PaymentMethodCOD, PaymentMethodOnline:
		return m, true
	default:
		return "", false
	}
}

// SettledAtCheckout: наложенный платёж считается оплаченным сразу при оформлении
func (m PaymentMethod) SettledAtCheckout() bool {
	return m == PaymentMethodCOD
}

// Order одна запись и для корзины (IsCheckedOut=false), и для оформленного заказа
type Order struct {
	ID            int64         `json:"id"`
	CustomerID    int64         `json:"customer_id"`
	CreatedAt     time.Time     `json:"created_at"`
	Status        OrderStatus   `json:"status"`
	IsCheckedOut  bool          `json:"is_checked_out"`
	Completed     bool          `json:"completed"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus bool          `json:"payment_status"`
}

// NewCart пустая корзина покупателя
func NewCart(customerID int64) Order {
	return Order{CustomerID: customerID, Status: OrderStatusPending}
}

// LineItem позиция корзины/заказа
type LineItem struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// ShippingAddress адрес доставки, создаётся один раз при оформлении
type ShippingAddress struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	OrderID    int64     `json:"order_id"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	ZipCode    string    `json:"zip_code"`
	CreatedAt  time.Time `json:"created_at"`
}
