package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

const (
	// Conditional decrement: zero rows affected means the product has less
	// stock than requested, which fails the whole commit.
	decrementStockSQL = `UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = now()
		WHERE id = $2 AND stock_quantity >= $1`

	// Conditional increment: zero rows affected means the coupon vanished,
	// was deactivated, or hit its usage limit since validation.
	incrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE UPPER(code) = UPPER($1) AND is_active
		AND (usage_limit = 0 OR used_count < usage_limit)`

	insertOrderSQL = `INSERT INTO orders (id, order_number, user_id, guest_email, status, payment_status,
		subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
		coupon_code, shipping_address, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, product_name, product_sku,
		quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderSQL = `SELECT id, order_number, user_id, guest_email, status, payment_status,
		subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
		coupon_code, shipping_address, idempotency_key, created_at
		FROM orders`

	getOrderItemsSQL = `SELECT product_id, product_name, product_sku, quantity, unit_price, total_price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	uniqueViolationCode = "23505"
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. CommitOrder is the
// single atomic write boundary of settlement: stock decrements, the coupon
// usage increment, and the order rows commit together or not at all.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// CommitOrder persists the order in one transaction. Stock rows are updated
// in sorted product order so concurrent settlements cannot deadlock. A failed
// conditional update or an order-number collision maps to
// order.ErrCommitConflict; a duplicate idempotency key maps to
// order.ErrAlreadySettled.
func (s *OrderStore) CommitOrder(ctx context.Context, o *order.Order, decrements map[string]int, couponCode string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning settlement transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(decrements))
	for id := range decrements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ct, err := tx.Exec(ctx, decrementStockSQL, decrements[id], id)
		if err != nil {
			return fmt.Errorf("decrementing stock for %q: %w", id, err)
		}
		if ct.RowsAffected() == 0 {
			return order.ErrCommitConflict
		}
	}

	if couponCode != "" {
		ct, err := tx.Exec(ctx, incrementCouponUsesSQL, couponCode)
		if err != nil {
			return fmt.Errorf("incrementing uses for coupon %q: %w", couponCode, err)
		}
		if ct.RowsAffected() == 0 {
			return order.ErrCommitConflict
		}
	}

	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, nullString(o.UserID), nullString(o.GuestEmail),
		string(o.Status), string(o.PaymentStatus),
		o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total,
		nullString(o.CouponCode), addressJSON, nullString(o.IdempotencyKey), o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			if pgErr.ConstraintName == "idx_orders_idempotency_key" {
				return order.ErrAlreadySettled
			}
			// Order-number collision; the coordinator retries with a new one.
			return order.ErrCommitConflict
		}
		return fmt.Errorf("inserting order %q: %w", o.Number, err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(insertOrderItemSQL,
			o.ID, item.ProductID, item.Name, item.SKU,
			item.Quantity, item.UnitPrice, item.TotalPrice,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting order items for %q: %w", o.Number, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing settlement for %q: %w", o.Number, err)
	}
	return nil
}

// FindByIdempotencyKey returns the order previously committed under the given
// key, or nil when none exists.
func (s *OrderStore) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	o, err := s.findOne(ctx, getOrderSQL+` WHERE idempotency_key = $1`, key)
	if errors.Is(err, order.ErrNotFound) {
		return nil, nil
	}
	return o, err
}

// GetByNumber returns the order with the given human-readable order number.
// Returns order.ErrNotFound when no such order exists.
func (s *OrderStore) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return s.findOne(ctx, getOrderSQL+` WHERE order_number = $1`, number)
}

func (s *OrderStore) findOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("querying order: %w", err)
	}

	itemRows, err := s.pool.Query(ctx, getOrderItemsSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}

	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		userID         *string
		guestEmail     *string
		status         string
		paymentStatus  string
		couponCode     *string
		addressJSON    []byte
		idempotencyKey *string
	)
	err := row.Scan(
		&o.ID, &o.Number, &userID, &guestEmail, &status, &paymentStatus,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total,
		&couponCode, &addressJSON, &idempotencyKey, &o.CreatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	o.UserID = deref(userID)
	o.GuestEmail = deref(guestEmail)
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.CouponCode = deref(couponCode)
	o.IdempotencyKey = deref(idempotencyKey)
	return o, nil
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		item order.Item
		qty  int32
	)
	err := row.Scan(&item.ProductID, &item.Name, &item.SKU, &qty, &item.UnitPrice, &item.TotalPrice)
	item.Quantity = int(qty)
	return item, err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
