package service

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/bookshop-fulfillment/payment-service/internal/catalog"
	"github.com/bookshop-fulfillment/payment-service/internal/domain"
	"github.com/bookshop-fulfillment/payment-service/internal/gateway"
)

// OrderStore is the persistence surface the payment flows need.
// Implemented by repository.OrderRepository.
type OrderStore interface {
	CreateOrder(order *domain.Order) error
	GetOrder(paymentID string) (*domain.Order, error)
	UpdateOrder(order *domain.Order) error
	MarkPaid(paymentID string, paidAt time.Time) (bool, error)
}

// Notifier triggers asynchronous email jobs. Implementations never block and
// never return an error to the caller.
type Notifier interface {
	OrderCreated(order *domain.Order)
	OrderConfirmation(order *domain.Order)
	OrderConfirmed(order *domain.Order)
}

type PaymentConfig struct {
	Currency    string
	MaxQuantity int
}

type PaymentService struct {
	catalog  catalog.Catalog
	gateway  gateway.Gateway
	orders   OrderStore
	notifier Notifier
	config   PaymentConfig
}

func NewPaymentService(
	catalog catalog.Catalog,
	paymentGateway gateway.Gateway,
	orders OrderStore,
	notifier Notifier,
	config PaymentConfig,
) *PaymentService {
	return &PaymentService{
		catalog:  catalog,
		gateway:  paymentGateway,
		orders:   orders,
		notifier: notifier,
		config:   config,
	}
}

type CreatePaymentRequest struct {
	Items []CreatePaymentItem `json:"items"`
}

type CreatePaymentItem struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

// PaymentSession is what the storefront needs to complete the payment on the
// client side.
type PaymentSession struct {
	Session string `json:"session"`
	Amount  int64  `json:"amount"`
}

// CreatePayment prices the requested items against the catalog, opens a
// gateway transaction for the total and persists the order keyed by the
// gateway-assigned id. If persistence fails after the transaction was opened,
// the transaction is cancelled best effort and the original error propagates.
func (s *PaymentService) CreatePayment(request CreatePaymentRequest) (*PaymentSession, error) {
	if err := s.validateRequest(request); err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(request.Items))
	var total float64

	for _, item := range request.Items {
		book, err := s.catalog.GetByID(item.ID)
		if err != nil {
			return nil, err
		}

		items = append(items, domain.OrderItem{
			CatalogID:       book.ID,
			Title:           book.Title,
			UnitPrice:       book.Price,
			DiscountPercent: book.DiscountPercent,
			Quantity:        item.Quantity,
		})

		total += float64(item.Quantity) * book.Price * (1 - book.DiscountPercent/100)
	}

	total = roundToCents(total)
	amountMinor := int64(math.Round(total * 100))

	intent, err := s.gateway.CreateIntent(amountMinor, s.config.Currency)
	if err != nil {
		return nil, err
	}

	order := domain.NewOrder(intent.ID, intent.Status, items, total, s.config.Currency)

	if err := s.orders.CreateOrder(order); err != nil {
		// The gateway transaction is already open; cancel it so no orphaned
		// intent keeps collecting. Its own failure must not mask the store
		// error.
		if _, cancelErr := s.gateway.CancelIntent(intent.ID); cancelErr != nil {
			log.Printf("Compensation cancel error: payment_id=%s, %v", intent.ID, cancelErr)
		}
		return nil, fmt.Errorf("order persistence error: %v", err)
	}

	log.Printf("Payment created: payment_id=%s, amount=%d %s", intent.ID, amountMinor, s.config.Currency)

	s.notifier.OrderCreated(order)

	return &PaymentSession{
		Session: intent.ClientSecret,
		Amount:  amountMinor,
	}, nil
}

// RetrievePayment is a validated passthrough read of the gateway transaction.
func (s *PaymentService) RetrievePayment(paymentID string) (*gateway.PaymentIntent, error) {
	if !gateway.ValidIntentID(paymentID) {
		return nil, domain.NewValidationError("invalid payment id: %s", paymentID)
	}
	return s.gateway.RetrieveIntent(paymentID)
}

// CancelPayment cancels the gateway transaction and records the cancelled
// payment status on the order.
func (s *PaymentService) CancelPayment(paymentID string) (*gateway.PaymentIntent, error) {
	if !gateway.ValidIntentID(paymentID) {
		return nil, domain.NewValidationError("invalid payment id: %s", paymentID)
	}

	intent, err := s.gateway.CancelIntent(paymentID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(paymentID)
	if err != nil {
		log.Printf("Cancel: order update skipped: payment_id=%s, %v", paymentID, err)
		return intent, nil
	}

	order.Merge(domain.OrderPatch{PaymentStatus: intent.Status})
	if !order.OrderStatus.IsTerminal() {
		order.OrderStatus = domain.OrderStatusCancelled
	}
	if err := s.orders.UpdateOrder(order); err != nil {
		log.Printf("Cancel: order update error: payment_id=%s, %v", paymentID, err)
	}

	return intent, nil
}

// GetOrder returns the order as persisted, for the storefront's order view.
func (s *PaymentService) GetOrder(paymentID string) (*domain.Order, error) {
	if !gateway.ValidIntentID(paymentID) {
		return nil, domain.NewValidationError("invalid payment id: %s", paymentID)
	}
	return s.orders.GetOrder(paymentID)
}

func (s *PaymentService) validateRequest(request CreatePaymentRequest) error {
	if len(request.Items) == 0 {
		return domain.NewValidationError("at least one item is required")
	}

	for i, item := range request.Items {
		if item.ID <= 0 {
			return domain.NewValidationError("invalid item id at index %d", i)
		}
		if item.Quantity <= 0 {
			return domain.NewValidationError("invalid quantity at index %d: %d", i, item.Quantity)
		}
		if item.Quantity > s.config.MaxQuantity {
			return domain.NewValidationError("quantity at index %d exceeds maximum %d", i, s.config.MaxQuantity)
		}
	}

	return nil
}

func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
