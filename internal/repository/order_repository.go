package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// OrderRepository is the PostgreSQL order store.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(64) PRIMARY KEY,
			total NUMERIC(14,2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			customer_id VARCHAR(64),
			customer_email VARCHAR(255),
			first_name VARCHAR(255),
			last_name VARCHAR(255),
			phone VARCHAR(64),
			address VARCHAR(512),
			city VARCHAR(255),
			state VARCHAR(255),
			postcode VARCHAR(32),
			country VARCHAR(2),
			status VARCHAR(50) NOT NULL DEFAULT 'created',
			payment_reference VARCHAR(128),
			transaction_id VARCHAR(128),
			paid_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id VARCHAR(64) NOT NULL REFERENCES orders(id),
			product_id VARCHAR(64) NOT NULL,
			name VARCHAR(512) NOT NULL,
			price NUMERIC(14,2) NOT NULL,
			total NUMERIC(14,2) NOT NULL,
			quantity INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_notes (
			id SERIAL PRIMARY KEY,
			order_id VARCHAR(64) NOT NULL REFERENCES orders(id),
			note TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			customer_id VARCHAR(64) NOT NULL,
			product_id VARCHAR(64) NOT NULL,
			quantity INTEGER NOT NULL,
			PRIMARY KEY (customer_id, product_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_payment_reference ON orders(payment_reference)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_notes_order_id ON order_notes(order_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// GetOrder returns (nil, nil) when the order does not exist.
func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var (
		o      models.Order
		paidAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, total, currency, COALESCE(customer_id, ''), COALESCE(customer_email, ''),
			COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(phone, ''),
			COALESCE(address, ''), COALESCE(city, ''), COALESCE(state, ''),
			COALESCE(postcode, ''), COALESCE(country, ''), status,
			COALESCE(payment_reference, ''), COALESCE(transaction_id, ''),
			paid_at, created_at, updated_at
		FROM orders WHERE id = $1
	`, id).Scan(
		&o.ID, &o.Total, &o.Currency, &o.Customer.ID, &o.Customer.Email,
		&o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Phone,
		&o.Customer.Address, &o.Customer.City, &o.Customer.State,
		&o.Customer.Postcode, &o.Customer.Country, &o.Status,
		&o.PaymentReference, &o.TransactionID,
		&paidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, price, total, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get order items %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Total, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	return &o, rows.Err()
}

// MarkPaid reports whether this call moved the order from unpaid to paid.
func (r *OrderRepository) MarkPaid(ctx context.Context, id, transactionID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET paid_at = NOW(), transaction_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND paid_at IS NULL
	`, transactionID, models.OrderPaid, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateStatus sets the status and, when note is non-empty, records it in the
// same transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, note string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id); err != nil {
		return err
	}
	if note != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_notes (order_id, note) VALUES ($1, $2)`, id, note); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *OrderRepository) AddNote(ctx context.Context, id, note string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO order_notes (order_id, note) VALUES ($1, $2)`, id, note)
	return err
}

func (r *OrderRepository) ClearActiveCart(ctx context.Context, customerID string) error {
	if customerID == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE customer_id = $1`, customerID)
	return err
}

func (r *OrderRepository) SetPaymentReference(ctx context.Context, id, reference string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_reference = $1, updated_at = NOW() WHERE id = $2`, reference, id)
	return err
}

func (r *OrderRepository) ListNotes(ctx context.Context, id string) ([]models.OrderNote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, note, created_at FROM order_notes
		WHERE order_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []models.OrderNote
	for rows.Next() {
		var n models.OrderNote
		if err := rows.Scan(&n.OrderID, &n.Note, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
