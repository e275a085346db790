package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
)

type itemKey struct{ orderID, productID int64 }

// memState всё содержимое хранилища; копируется целиком для отката транзакции
type memState struct {
	nextProductID  int64
	nextCustomerID int64
	nextOrderID    int64
	nextItemID     int64
	nextAddressID  int64

	products  map[int64]domain.Product
	customers map[int64]domain.Customer
	orders    map[int64]domain.Order
	items     map[int64]domain.LineItem
	addresses map[int64]domain.ShippingAddress

	// unique indexes
	openCarts map[int64]int64 // customerID -> orderID
	itemIndex map[itemKey]int64
}

func newMemState() memState {
	return memState{
		nextProductID:  1,
		nextCustomerID: 1,
		nextOrderID:    1,
		nextItemID:     1,
		nextAddressID:  1,
		products:       make(map[int64]domain.Product),
		customers:      make(map[int64]domain.Customer),
		orders:         make(map[int64]domain.Order),
		items:          make(map[int64]domain.LineItem),
		addresses:      make(map[int64]domain.ShippingAddress),
		openCarts:      make(map[int64]int64),
		itemIndex:      make(map[itemKey]int64),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s memState) clone() memState {
	cp := s
	cp.products = cloneMap(s.products)
	cp.customers = cloneMap(s.customers)
	cp.orders = cloneMap(s.orders)
	cp.items = cloneMap(s.items)
	cp.addresses = cloneMap(s.addresses)
	cp.openCarts = cloneMap(s.openCarts)
	cp.itemIndex = cloneMap(s.itemIndex)
	return cp
}

// MemoryStore объединённое in-memory хранилище и простой генератор ID
type MemoryStore struct {
	mu sync.RWMutex
	st memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newMemState()}
}

// NewMemoryRepositories собирает все репозитории поверх одного MemoryStore
func NewMemoryRepositories() Repositories {
	store := NewMemoryStore()
	return Repositories{
		Products:  store,
		Customers: &MemoryCustomers{store: store},
		Orders:    &MemoryOrders{store: store},
		Items:     &MemoryLineItems{store: store},
		Addresses: &MemoryAddresses{store: store},
		Tx:        NewMemoryTx(store),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

func now() time.Time { return time.Now().UTC() }

// Ensure interfaces
var (
	_ ProductRepository         = (*MemoryStore)(nil)
	_ CustomerRepository        = (*MemoryCustomers)(nil)
	_ OrderRepository           = (*MemoryOrders)(nil)
	_ LineItemRepository        = (*MemoryLineItems)(nil)
	_ ShippingAddressRepository = (*MemoryAddresses)(nil)
	_ TxManager                 = (*MemoryTx)(nil)
)

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p.ID = m.st.nextProductID
	m.st.nextProductID++
	p.CreatedAt = now()
	m.st.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.st.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := p
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	old, ok := m.st.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	m.st.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.st.products[id]; !ok {
		return ErrNotFound
	}
	for itemID, it := range m.st.items {
		if it.ProductID == id {
			delete(m.st.items, itemID)
			delete(m.st.itemIndex, itemKey{it.OrderID, it.ProductID})
		}
	}
	delete(m.st.products, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0, len(m.st.products))
	for _, p := range m.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CustomerRepository implementation on wrapper type
type MemoryCustomers struct{ store *MemoryStore }

func (mc *MemoryCustomers) Create(ctx context.Context, c *domain.Customer) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	for _, ex := range mc.store.st.customers {
		if ex.Username == c.Username || ex.Email == c.Email {
			return ErrConflict
		}
	}
	c.ID = mc.store.st.nextCustomerID
	mc.store.st.nextCustomerID++
	c.CreatedAt = now()
	mc.store.st.customers[c.ID] = *c
	return nil
}

func (mc *MemoryCustomers) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	c, ok := mc.store.st.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (mc *MemoryCustomers) GetByUsername(ctx context.Context, username string) (*domain.Customer, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	for _, c := range mc.store.st.customers {
		if c.Username == username {
			cp := c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mc *MemoryCustomers) Update(ctx context.Context, c *domain.Customer) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	old, ok := mc.store.st.customers[c.ID]
	if !ok {
		return ErrNotFound
	}
	for id, ex := range mc.store.st.customers {
		if id != c.ID && (ex.Username == c.Username || ex.Email == c.Email) {
			return ErrConflict
		}
	}
	c.CreatedAt = old.CreatedAt
	mc.store.st.customers[c.ID] = *c
	return nil
}

func (mc *MemoryCustomers) Delete(ctx context.Context, id int64) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	if _, ok := mc.store.st.customers[id]; !ok {
		return ErrNotFound
	}
	for _, o := range mc.store.st.orders {
		if o.CustomerID == id {
			return ErrConflict
		}
	}
	for _, a := range mc.store.st.addresses {
		if a.CustomerID == id {
			return ErrConflict
		}
	}
	delete(mc.store.st.customers, id)
	return nil
}

func (mc *MemoryCustomers) List(ctx context.Context) ([]domain.Customer, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	out := make([]domain.Customer, 0, len(mc.store.st.customers))
	for _, c := range mc.store.st.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func (mo *MemoryOrders) CreateCart(ctx context.Context, customerID int64) (*domain.Order, error) {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, exists := mo.store.st.openCarts[customerID]; exists {
		return nil, ErrConflict
	}
	o := domain.NewCart(customerID)
	o.ID = mo.store.st.nextOrderID
	mo.store.st.nextOrderID++
	o.CreatedAt = now()
	mo.store.st.orders[o.ID] = o
	mo.store.st.openCarts[customerID] = o.ID
	return &o, nil
}

func (mo *MemoryOrders) GetOpenCart(ctx context.Context, customerID int64) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	id, ok := mo.store.st.openCarts[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	o := mo.store.st.orders[id]
	return &o, nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.st.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (mo *MemoryOrders) MarkCheckedOut(ctx context.Context, id int64, method domain.PaymentMethod, paid bool) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.st.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.IsCheckedOut {
		return ErrConflict
	}
	o.IsCheckedOut = true
	o.PaymentMethod = method
	o.PaymentStatus = paid
	mo.store.st.orders[id] = o
	delete(mo.store.st.openCarts, o.CustomerID)
	return nil
}

func (mo *MemoryOrders) Update(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	cur, ok := mo.store.st.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.Completed = o.Completed
	mo.store.st.orders[o.ID] = cur
	*o = cur
	return nil
}

// Delete удаляет только саму запись; зависимые строки должны быть удалены раньше
func (mo *MemoryOrders) Delete(ctx context.Context, id int64) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.st.orders[id]
	if !ok {
		return ErrNotFound
	}
	for _, it := range mo.store.st.items {
		if it.OrderID == id {
			return ErrConflict
		}
	}
	for _, a := range mo.store.st.addresses {
		if a.OrderID == id {
			return ErrConflict
		}
	}
	if !o.IsCheckedOut {
		delete(mo.store.st.openCarts, o.CustomerID)
	}
	delete(mo.store.st.orders, id)
	return nil
}

func newestFirst(out []domain.Order) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
}

func (mo *MemoryOrders) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, o := range mo.store.st.orders {
		if o.CustomerID == customerID && o.IsCheckedOut {
			out = append(out, o)
		}
	}
	newestFirst(out)
	return out, nil
}

func (mo *MemoryOrders) ListAllByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, o := range mo.store.st.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	newestFirst(out)
	return out, nil
}

func (mo *MemoryOrders) List(ctx context.Context) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0, len(mo.store.st.orders))
	for _, o := range mo.store.st.orders {
		out = append(out, o)
	}
	newestFirst(out)
	return out, nil
}

// LineItemRepository implementation on wrapper type
type MemoryLineItems struct{ store *MemoryStore }

func (ml *MemoryLineItems) Upsert(ctx context.Context, orderID, productID, quantity int64) (*domain.LineItem, error) {
	ml.store.wlock(ctx)
	defer ml.store.wunlock(ctx)
	if _, ok := ml.store.st.orders[orderID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := ml.store.st.products[productID]; !ok {
		return nil, ErrNotFound
	}
	key := itemKey{orderID, productID}
	if id, ok := ml.store.st.itemIndex[key]; ok {
		it := ml.store.st.items[id]
		it.Quantity += quantity
		ml.store.st.items[id] = it
		return &it, nil
	}
	it := domain.LineItem{ID: ml.store.st.nextItemID, OrderID: orderID, ProductID: productID, Quantity: quantity}
	ml.store.st.nextItemID++
	ml.store.st.items[it.ID] = it
	ml.store.st.itemIndex[key] = it.ID
	return &it, nil
}

func (ml *MemoryLineItems) GetInOpenCart(ctx context.Context, itemID, customerID int64) (*domain.LineItem, error) {
	ml.store.rlock(ctx)
	defer ml.store.runlock(ctx)
	it, ok := ml.store.st.items[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	o, ok := ml.store.st.orders[it.OrderID]
	if !ok || o.CustomerID != customerID || o.IsCheckedOut {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (ml *MemoryLineItems) SetQuantity(ctx context.Context, id, quantity int64) error {
	ml.store.wlock(ctx)
	defer ml.store.wunlock(ctx)
	it, ok := ml.store.st.items[id]
	if !ok {
		return ErrNotFound
	}
	it.Quantity = quantity
	ml.store.st.items[id] = it
	return nil
}

func (ml *MemoryLineItems) Delete(ctx context.Context, id int64) error {
	ml.store.wlock(ctx)
	defer ml.store.wunlock(ctx)
	it, ok := ml.store.st.items[id]
	if !ok {
		return ErrNotFound
	}
	delete(ml.store.st.items, id)
	delete(ml.store.st.itemIndex, itemKey{it.OrderID, it.ProductID})
	return nil
}

func (ml *MemoryLineItems) ListByOrder(ctx context.Context, orderID int64) ([]domain.LineItem, error) {
	ml.store.rlock(ctx)
	defer ml.store.runlock(ctx)
	out := make([]domain.LineItem, 0)
	for _, it := range ml.store.st.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (ml *MemoryLineItems) DeleteByOrder(ctx context.Context, orderID int64) error {
	ml.store.wlock(ctx)
	defer ml.store.wunlock(ctx)
	for id, it := range ml.store.st.items {
		if it.OrderID == orderID {
			delete(ml.store.st.items, id)
			delete(ml.store.st.itemIndex, itemKey{it.OrderID, it.ProductID})
		}
	}
	return nil
}

// ShippingAddressRepository implementation on wrapper type
type MemoryAddresses struct{ store *MemoryStore }

func (ma *MemoryAddresses) Create(ctx context.Context, a *domain.ShippingAddress) error {
	ma.store.wlock(ctx)
	defer ma.store.wunlock(ctx)
	if _, ok := ma.store.st.orders[a.OrderID]; !ok {
		return ErrNotFound
	}
	a.ID = ma.store.st.nextAddressID
	ma.store.st.nextAddressID++
	a.CreatedAt = now()
	ma.store.st.addresses[a.ID] = *a
	return nil
}

func (ma *MemoryAddresses) LatestForOrder(ctx context.Context, orderID int64) (*domain.ShippingAddress, error) {
	ma.store.rlock(ctx)
	defer ma.store.runlock(ctx)
	var latest *domain.ShippingAddress
	for _, a := range ma.store.st.addresses {
		if a.OrderID != orderID {
			continue
		}
		if latest == nil || a.ID > latest.ID {
			cp := a
			latest = &cp
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (ma *MemoryAddresses) DeleteByOrder(ctx context.Context, orderID int64) error {
	ma.store.wlock(ctx)
	defer ma.store.wunlock(ctx)
	for id, a := range ma.store.st.addresses {
		if a.OrderID == orderID {
			delete(ma.store.st.addresses, id)
		}
	}
	return nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if isTx(ctx) {
		return fn(ctx)
	}
	// блокировка записи на всё время транзакции; при ошибке состояние откатывается к снимку
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snapshot := tx.store.st.clone()
	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.st = snapshot
		return err
	}
	return nil
}
