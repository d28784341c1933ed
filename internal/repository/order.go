package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flicky/storefront-api/internal/model"
)

type OrderRepository interface {
	// InTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx OrderTx) error) error
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
	GetOwned(ctx context.Context, id, userID int64) (*model.Order, error)
}

// OrderTx is the set of operations available inside an order transaction.
type OrderTx interface {
	// Products reads catalog rows locked for the lifetime of the transaction.
	Products() ProductLookup
	Insert(ctx context.Context, order *model.Order) error
	// LockOwned returns the order only if it belongs to userID, or nil, nil.
	LockOwned(ctx context.Context, id, userID int64) (*model.Order, error)
	Lock(ctx context.Context, id int64) (*model.Order, error)
	// UpdateStatus moves the order from one status to another and reports
	// whether a row matched the expected current status.
	UpdateStatus(ctx context.Context, id int64, from, to model.OrderStatus) (bool, error)
}

type pgOrderRepo struct{ db DB }

func NewOrderRepository(db DB) OrderRepository {
	return &pgOrderRepo{db: db}
}

func (r *pgOrderRepo) InTx(ctx context.Context, fn func(tx OrderTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgOrderTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, status, paid, stripe_id, first_name, last_name, email, address, postal_code, city, created_at, updated_at`

func scanOrder(row pgx.Row, o *model.Order) error {
	return row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.Paid, &o.StripeID, &o.FirstName, &o.LastName,
		&o.Email, &o.Address, &o.PostalCode, &o.City, &o.CreatedAt, &o.UpdatedAt,
	)
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	index := make(map[int64]int)
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := queryItems(ctx, r.db,
		`SELECT oi.id, oi.order_id, oi.product_id, p.name, p.image, oi.price, oi.quantity
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 JOIN products p ON p.id = oi.product_id
		 WHERE o.user_id = $1
		 ORDER BY oi.id`, userID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return orders, nil
}

func (r *pgOrderRepo) GetOwned(ctx context.Context, id, userID int64) (*model.Order, error) {
	o := &model.Order{}
	err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID,
	), o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.Items, err = orderItems(ctx, r.db, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func orderItems(ctx context.Context, q Querier, orderID int64) ([]model.OrderItem, error) {
	return queryItems(ctx, q,
		`SELECT oi.id, oi.order_id, oi.product_id, p.name, p.image, oi.price, oi.quantity
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = $1
		 ORDER BY oi.id`, orderID)
}

func queryItems(ctx context.Context, q Querier, query string, arg any) ([]model.OrderItem, error) {
	rows, err := q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductImage,
			&item.Price, &item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	return items, nil
}

type pgOrderTx struct{ tx pgx.Tx }

func (t *pgOrderTx) Products() ProductLookup {
	return &pgProductRepo{db: t.tx, forShare: true}
}

func (t *pgOrderTx) Insert(ctx context.Context, order *model.Order) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, status, paid, stripe_id, first_name, last_name, email, address, postal_code, city, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		order.UserID, order.Status, order.Paid, order.StripeID, order.FirstName, order.LastName,
		order.Email, order.Address, order.PostalCode, order.City,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		err = t.tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, price, quantity)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			order.ID, order.Items[i].ProductID, order.Items[i].Price, order.Items[i].Quantity,
		).Scan(&order.Items[i].ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *pgOrderTx) LockOwned(ctx context.Context, id, userID int64) (*model.Order, error) {
	return t.lock(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID)
}

func (t *pgOrderTx) Lock(ctx context.Context, id int64) (*model.Order, error) {
	return t.lock(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgOrderTx) lock(ctx context.Context, query string, args ...any) (*model.Order, error) {
	o := &model.Order{}
	if err := scanOrder(t.tx.QueryRow(ctx, query, args...), o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	items, err := orderItems(ctx, t.tx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (t *pgOrderTx) UpdateStatus(ctx context.Context, id int64, from, to model.OrderStatus) (bool, error) {
	ct, err := t.tx.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
