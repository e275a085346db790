package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"storefront/internal/domain"
)

//go:embed migrations.sql
var schema string

// OpenPostgres открывает пул соединений и проверяет доступность базы
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate применяет схему; все выражения идемпотентны
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// NewPostgresRepositories собирает все репозитории поверх одного пула
func NewPostgresRepositories(db *sql.DB) Repositories {
	return Repositories{
		Products:  &PostgresProducts{db: db},
		Customers: &PostgresCustomers{db: db},
		Orders:    &PostgresOrders{db: db},
		Items:     &PostgresLineItems{db: db},
		Addresses: &PostgresAddresses{db: db},
		Tx:        &PostgresTx{db: db},
	}
}

var (
	_ ProductRepository         = (*PostgresProducts)(nil)
	_ CustomerRepository        = (*PostgresCustomers)(nil)
	_ OrderRepository           = (*PostgresOrders)(nil)
	_ LineItemRepository        = (*PostgresLineItems)(nil)
	_ ShippingAddressRepository = (*PostgresAddresses)(nil)
	_ TxManager                 = (*PostgresTx)(nil)
)

// querier общее подмножество *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgTxKey struct{}

func txFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(pgTxKey{}).(*sql.Tx)
	return tx, ok
}

// conn возвращает транзакцию из контекста, если она открыта
func conn(ctx context.Context, db *sql.DB) querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// mapErr переводит ошибки драйвера в ошибки репозитория
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	}
	switch pgCode(err) {
	case pgUniqueViolation, pgForeignKeyViolation:
		return ErrConflict
	}
	return err
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresTx открывает транзакцию и кладёт её в контекст
type PostgresTx struct{ db *sql.DB }

func NewPostgresTx(db *sql.DB) *PostgresTx { return &PostgresTx{db: db} }

func (t *PostgresTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// PostgresProducts ProductRepository на Postgres
type PostgresProducts struct{ db *sql.DB }

const productCols = `id, title, description, price, stock, created_at`

func scanProduct(r rowScanner) (*domain.Product, error) {
	var p domain.Product
	if err := r.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Stock, &p.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *PostgresProducts) Create(ctx context.Context, p *domain.Product) error {
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`INSERT INTO products (title, description, price, stock) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		p.Title, p.Description, p.Price, p.Stock,
	).Scan(&p.ID, &p.CreatedAt)
	return mapErr(err)
}

func (s *PostgresProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return scanProduct(conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE id = $1`, id))
}

func (s *PostgresProducts) Update(ctx context.Context, p *domain.Product) error {
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`UPDATE products SET title = $1, description = $2, price = $3, stock = $4 WHERE id = $5 RETURNING created_at`,
		p.Title, p.Description, p.Price, p.Stock, p.ID,
	).Scan(&p.CreatedAt)
	return mapErr(err)
}

// Delete: позиции удаляются каскадом по внешнему ключу
func (s *PostgresProducts) Delete(ctx context.Context, id int64) error {
	return expectOne(conn(ctx, s.db).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id))
}

func (s *PostgresProducts) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx, `SELECT `+productCols+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PostgresCustomers CustomerRepository на Postgres
type PostgresCustomers struct{ db *sql.DB }

const customerCols = `id, username, email, role, privileged, superuser, created_at`

func scanCustomer(r rowScanner) (*domain.Customer, error) {
	var (
		c    domain.Customer
		role string
	)
	if err := r.Scan(&c.ID, &c.Username, &c.Email, &role, &c.Privileged, &c.Superuser, &c.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	c.Role = domain.Role(role)
	return &c, nil
}

func (s *PostgresCustomers) Create(ctx context.Context, c *domain.Customer) error {
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`INSERT INTO customers (username, email, role, privileged, superuser) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		c.Username, c.Email, string(c.Role), c.Privileged, c.Superuser,
	).Scan(&c.ID, &c.CreatedAt)
	return mapErr(err)
}

func (s *PostgresCustomers) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	return scanCustomer(conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+customerCols+` FROM customers WHERE id = $1`, id))
}

func (s *PostgresCustomers) GetByUsername(ctx context.Context, username string) (*domain.Customer, error) {
	return scanCustomer(conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+customerCols+` FROM customers WHERE username = $1`, username))
}

func (s *PostgresCustomers) Update(ctx context.Context, c *domain.Customer) error {
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`UPDATE customers SET username = $1, email = $2, role = $3, privileged = $4, superuser = $5 WHERE id = $6 RETURNING created_at`,
		c.Username, c.Email, string(c.Role), c.Privileged, c.Superuser, c.ID,
	).Scan(&c.CreatedAt)
	return mapErr(err)
}

// Delete без каскада: заказы и адреса покупателя удаляются раньше, иначе FK даст ErrConflict
func (s *PostgresCustomers) Delete(ctx context.Context, id int64) error {
	return expectOne(conn(ctx, s.db).ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id))
}

func (s *PostgresCustomers) List(ctx context.Context) ([]domain.Customer, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx, `SELECT `+customerCols+` FROM customers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// PostgresOrders OrderRepository на Postgres
type PostgresOrders struct{ db *sql.DB }

const orderCols = `id, customer_id, created_at, status, is_checked_out, completed, payment_method, payment_status`

func scanOrder(r rowScanner) (*domain.Order, error) {
	var (
		o              domain.Order
		status, method string
	)
	if err := r.Scan(&o.ID, &o.CustomerID, &o.CreatedAt, &status, &o.IsCheckedOut, &o.Completed, &method, &o.PaymentStatus); err != nil {
		return nil, mapErr(err)
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(method)
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()
	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// CreateCart опирается на частичный уникальный индекс orders_one_open_cart
func (s *PostgresOrders) CreateCart(ctx context.Context, customerID int64) (*domain.Order, error) {
	o, err := scanOrder(conn(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, status) VALUES ($1, $2)
		ON CONFLICT (customer_id) WHERE NOT is_checked_out DO NOTHING
		RETURNING `+orderCols,
		customerID, string(domain.OrderStatusPending)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConflict
	}
	return o, err
}

func (s *PostgresOrders) GetOpenCart(ctx context.Context, customerID int64) (*domain.Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE customer_id = $1 AND NOT is_checked_out`
	if _, ok := txFrom(ctx); ok {
		q += ` FOR UPDATE`
	}
	return scanOrder(conn(ctx, s.db).QueryRowContext(ctx, q, customerID))
}

func (s *PostgresOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return scanOrder(conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
}

func (s *PostgresOrders) MarkCheckedOut(ctx context.Context, id int64, method domain.PaymentMethod, paid bool) error {
	q := conn(ctx, s.db)
	res, err := q.ExecContext(ctx,
		`UPDATE orders SET is_checked_out = TRUE, payment_method = $2, payment_status = $3 WHERE id = $1 AND NOT is_checked_out`,
		id, string(method), paid)
	if err := expectOne(res, err); !errors.Is(err, ErrNotFound) {
		return err
	}
	// 0 строк: либо заказа нет, либо его уже оформили
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func (s *PostgresOrders) Update(ctx context.Context, o *domain.Order) error {
	got, err := scanOrder(conn(ctx, s.db).QueryRowContext(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, completed = $3 WHERE id = $4 RETURNING `+orderCols,
		string(o.Status), o.PaymentStatus, o.Completed, o.ID))
	if err != nil {
		return err
	}
	*o = *got
	return nil
}

func (s *PostgresOrders) Delete(ctx context.Context, id int64) error {
	return expectOne(conn(ctx, s.db).ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id))
}

func (s *PostgresOrders) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE customer_id = $1 AND is_checked_out ORDER BY created_at DESC, id DESC`,
		customerID)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

func (s *PostgresOrders) ListAllByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC, id DESC`,
		customerID)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

func (s *PostgresOrders) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+orderCols+` FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

// PostgresLineItems LineItemRepository на Postgres
type PostgresLineItems struct{ db *sql.DB }

func scanItem(r rowScanner) (*domain.LineItem, error) {
	var it domain.LineItem
	if err := r.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity); err != nil {
		return nil, mapErr(err)
	}
	return &it, nil
}

func (s *PostgresLineItems) Upsert(ctx context.Context, orderID, productID, quantity int64) (*domain.LineItem, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (order_id, product_id)
		DO UPDATE SET quantity = order_items.quantity + EXCLUDED.quantity
		RETURNING id, order_id, product_id, quantity`,
		orderID, productID, quantity)
	var it domain.LineItem
	if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity); err != nil {
		// заказ или товар исчез
		if pgCode(err) == pgForeignKeyViolation {
			return nil, ErrNotFound
		}
		return nil, mapErr(err)
	}
	return &it, nil
}

func (s *PostgresLineItems) GetInOpenCart(ctx context.Context, itemID, customerID int64) (*domain.LineItem, error) {
	return scanItem(conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT i.id, i.order_id, i.product_id, i.quantity
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE i.id = $1 AND o.customer_id = $2 AND NOT o.is_checked_out`,
		itemID, customerID))
}

func (s *PostgresLineItems) SetQuantity(ctx context.Context, id, quantity int64) error {
	return expectOne(conn(ctx, s.db).ExecContext(ctx, `UPDATE order_items SET quantity = $1 WHERE id = $2`, quantity, id))
}

func (s *PostgresLineItems) Delete(ctx context.Context, id int64) error {
	return expectOne(conn(ctx, s.db).ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, id))
}

func (s *PostgresLineItems) ListByOrder(ctx context.Context, orderID int64) ([]domain.LineItem, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.LineItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (s *PostgresLineItems) DeleteByOrder(ctx context.Context, orderID int64) error {
	_, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	return err
}

// PostgresAddresses ShippingAddressRepository на Postgres
type PostgresAddresses struct{ db *sql.DB }

func (s *PostgresAddresses) Create(ctx context.Context, a *domain.ShippingAddress) error {
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`INSERT INTO shipping_addresses (customer_id, order_id, address, city, zip_code) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		a.CustomerID, a.OrderID, a.Address, a.City, a.ZipCode,
	).Scan(&a.ID, &a.CreatedAt)
	if pgCode(err) == pgForeignKeyViolation {
		return ErrNotFound
	}
	return mapErr(err)
}

func (s *PostgresAddresses) LatestForOrder(ctx context.Context, orderID int64) (*domain.ShippingAddress, error) {
	var a domain.ShippingAddress
	err := conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, customer_id, order_id, address, city, zip_code, created_at FROM shipping_addresses WHERE order_id = $1 ORDER BY id DESC LIMIT 1`,
		orderID,
	).Scan(&a.ID, &a.CustomerID, &a.OrderID, &a.Address, &a.City, &a.ZipCode, &a.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (s *PostgresAddresses) DeleteByOrder(ctx context.Context, orderID int64) error {
	_, err := conn(ctx, s.db).ExecContext(ctx, `DELETE FROM shipping_addresses WHERE order_id = $1`, orderID)
	return err
}
