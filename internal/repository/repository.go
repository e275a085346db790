package repository

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

// ErrNotFound возвращается, когда сущность не найдена
var ErrNotFound = errors.New("not found")

// ErrConflict возвращается при нарушении ограничения уникальности или проигранном CAS
var ErrConflict = errors.New("conflict")

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	// Delete удаляет товар вместе с позициями корзин, которые на него ссылаются
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]domain.Product, error)
}

// CustomerRepository интерфейс репозитория покупателей
type CustomerRepository interface {
	Create(ctx context.Context, c *domain.Customer) error
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	GetByUsername(ctx context.Context, username string) (*domain.Customer, error)
	Update(ctx context.Context, c *domain.Customer) error
	// Delete ErrConflict, пока на покупателя ссылаются заказы или адреса
	Delete(ctx context.Context, id int64) error
	// List все покупатели по возрастанию id
	List(ctx context.Context) ([]domain.Customer, error)
}

// OrderRepository интерфейс репозитория корзин/заказов
type OrderRepository interface {
	// CreateCart возвращает ErrConflict, если у покупателя уже есть открытая корзина
	CreateCart(ctx context.Context, customerID int64) (*domain.Order, error)
	// GetOpenCart внутри транзакции блокирует запись корзины
	GetOpenCart(ctx context.Context, customerID int64) (*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// MarkCheckedOut переводит корзину в заказ; ErrConflict, если она уже оформлена
	MarkCheckedOut(ctx context.Context, id int64, method domain.PaymentMethod, paid bool) error
	// Update сохраняет только изменяемые после оформления поля: status, payment_status, completed
	Update(ctx context.Context, o *domain.Order) error
	Delete(ctx context.Context, id int64) error
	// ListByCustomer оформленные заказы покупателя, новые первыми
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error)
	// ListAllByCustomer все записи покупателя, включая открытую корзину
	ListAllByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

// LineItemRepository интерфейс репозитория позиций
type LineItemRepository interface {
	// Upsert увеличивает количество существующей позиции или создаёт новую
	Upsert(ctx context.Context, orderID, productID, quantity int64) (*domain.LineItem, error)
	// GetInOpenCart находит позицию только в открытой корзине данного покупателя
	GetInOpenCart(ctx context.Context, itemID, customerID int64) (*domain.LineItem, error)
	SetQuantity(ctx context.Context, id, quantity int64) error
	Delete(ctx context.Context, id int64) error
	ListByOrder(ctx context.Context, orderID int64) ([]domain.LineItem, error)
	DeleteByOrder(ctx context.Context, orderID int64) error
}

// ShippingAddressRepository интерфейс репозитория адресов доставки
type ShippingAddressRepository interface {
	Create(ctx context.Context, a *domain.ShippingAddress) error
	// LatestForOrder последний добавленный адрес заказа
	LatestForOrder(ctx context.Context, orderID int64) (*domain.ShippingAddress, error)
	DeleteByOrder(ctx context.Context, orderID int64) error
}

// TxManager абстракция транзакции; для in-memory это глобальная блокировка записи.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories набор репозиториев одного хранилища
type Repositories struct {
	Products  ProductRepository
	Customers CustomerRepository
	Orders    OrderRepository
	Items     LineItemRepository
	Addresses ShippingAddressRepository
	Tx        TxManager
}
