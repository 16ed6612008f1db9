package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookshop-fulfillment/payment-service/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) CreateOrder(order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("items serialization error: %v", err)
	}

	shippingJSON, err := marshalNullable(order.Shipping)
	if err != nil {
		return fmt.Errorf("shipping serialization error: %v", err)
	}

	query := `
		INSERT INTO orders (
			payment_id, order_status, payment_status, items, total, currency,
			first_name, last_name, email, phone, shipping,
			paid_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.Exec(
		query,
		order.PaymentID,
		order.OrderStatus,
		order.PaymentStatus,
		itemsJSON,
		order.Total,
		order.Currency,
		nullString(order.FirstName),
		nullString(order.LastName),
		nullString(order.Email),
		nullString(order.Phone),
		shippingJSON,
		order.PaidAt,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("order creation error: %v", err)
	}

	return nil
}

func (r *OrderRepository) GetOrder(paymentID string) (*domain.Order, error) {
	query := `
		SELECT payment_id, order_status, payment_status, items, total, currency,
			   first_name, last_name, email, phone, shipping,
			   paid_at, created_at, updated_at
		FROM orders
		WHERE payment_id = $1
	`

	order := &domain.Order{}
	var itemsJSON []byte
	var shippingJSON []byte
	var firstName, lastName, email, phone sql.NullString
	var paidAt sql.NullTime

	err := r.db.QueryRow(query, paymentID).Scan(
		&order.PaymentID,
		&order.OrderStatus,
		&order.PaymentStatus,
		&itemsJSON,
		&order.Total,
		&order.Currency,
		&firstName,
		&lastName,
		&email,
		&phone,
		&shippingJSON,
		&paidAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &domain.NotFoundError{Resource: "order", ID: paymentID}
		}
		return nil, fmt.Errorf("order retrieval error: %v", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("items deserialization error: %v", err)
	}

	if len(shippingJSON) > 0 {
		if err := json.Unmarshal(shippingJSON, &order.Shipping); err != nil {
			return nil, fmt.Errorf("shipping deserialization error: %v", err)
		}
	}

	order.FirstName = firstName.String
	order.LastName = lastName.String
	order.Email = email.String
	order.Phone = phone.String

	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}

	return order, nil
}

func (r *OrderRepository) UpdateOrder(order *domain.Order) error {
	shippingJSON, err := marshalNullable(order.Shipping)
	if err != nil {
		return fmt.Errorf("shipping serialization error: %v", err)
	}

	// Items, total and currency are immutable after creation and are
	// deliberately absent from the update.
	query := `
		UPDATE orders
		SET order_status = $2, payment_status = $3,
			first_name = $4, last_name = $5, email = $6, phone = $7,
			shipping = $8, updated_at = $9
		WHERE payment_id = $1
	`

	result, err := r.db.Exec(
		query,
		order.PaymentID,
		order.OrderStatus,
		order.PaymentStatus,
		nullString(order.FirstName),
		nullString(order.LastName),
		nullString(order.Email),
		nullString(order.Phone),
		shippingJSON,
		order.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("order update error: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return &domain.NotFoundError{Resource: "order", ID: order.PaymentID}
	}

	return nil
}

// MarkPaid sets paid_at iff it is still null, as a single compare-and-set
// statement. Returns true for exactly one caller per order even under
// concurrent duplicate deliveries of the same succeeded event.
func (r *OrderRepository) MarkPaid(paymentID string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET paid_at = $2, updated_at = $2
		WHERE payment_id = $1 AND paid_at IS NULL
	`

	result, err := r.db.Exec(query, paymentID, paidAt)
	if err != nil {
		return false, fmt.Errorf("order paid_at update error: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func marshalNullable(shipping *domain.ShippingAddress) ([]byte, error) {
	if shipping == nil {
		return nil, nil
	}
	return json.Marshal(shipping)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
