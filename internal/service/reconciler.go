package service

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/bookshop-fulfillment/payment-service/internal/domain"
	"github.com/bookshop-fulfillment/payment-service/internal/gateway"
)

// Gateway payment status values this service reacts to. Everything else is
// recorded verbatim without a lifecycle effect.
const (
	paymentStatusSucceeded = "succeeded"
	paymentStatusCanceled  = "canceled"
)

// Reconciler applies verified gateway events to orders. Deliveries are
// at-least-once and unordered, so every transition here has to be idempotent.
type Reconciler struct {
	orders   OrderStore
	notifier Notifier
}

func NewReconciler(orders OrderStore, notifier Notifier) *Reconciler {
	return &Reconciler{
		orders:   orders,
		notifier: notifier,
	}
}

// ReconcileResult reports the reconciled order and whether this call was the
// one that observed the payment completing.
type ReconcileResult struct {
	Order    *domain.Order
	JustPaid bool
}

// Apply loads the order behind the event's transaction id, merges the patch
// and persists. Returns nil for tolerable noise: a non-terminal event for an
// order this service never created.
//
// The paidAt rule: only the call that flips paid_at from null reports
// JustPaid, so the confirmation email fires at most once per order even when
// the succeeded event is redelivered.
func (r *Reconciler) Apply(paymentID string, patch domain.OrderPatch, eventType string) (*ReconcileResult, error) {
	order, err := r.orders.GetOrder(paymentID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			if gateway.IsTerminalIntentEvent(eventType) {
				// The gateway reports a final state for an order we never
				// created. Surfaced as 500 so redelivery keeps the event
				// alive while an operator investigates.
				return nil, domain.NewInvariantError(
					"terminal event %s for unknown order %s", eventType, paymentID)
			}
			log.Printf("Ignoring %s for unknown order: payment_id=%s", eventType, paymentID)
			return nil, nil
		}
		return nil, err
	}

	justPaid := false
	if patch.PaymentStatus == paymentStatusSucceeded {
		now := time.Now()
		justPaid, err = r.orders.MarkPaid(paymentID, now)
		if err != nil {
			return nil, err
		}
		if justPaid {
			order.PaidAt = &now
		}
	}

	if patch.PaymentStatus == paymentStatusCanceled && order.OrderStatus.IsTerminal() &&
		order.OrderStatus != domain.OrderStatusCancelled {
		// Gateway-reported cancellation after the order was paid. The
		// payment status is still recorded verbatim; the order keeps its
		// terminal state.
		log.Printf("Cancel event after terminal order state: payment_id=%s, order_status=%s",
			paymentID, order.OrderStatus)
	}

	order.Merge(patch)
	r.advanceOrderStatus(order, patch.PaymentStatus)

	if err := r.orders.UpdateOrder(order); err != nil {
		return nil, err
	}

	log.Printf("Order reconciled: payment_id=%s, event=%s, payment_status=%s, just_paid=%t",
		paymentID, eventType, order.PaymentStatus, justPaid)

	if justPaid {
		r.notifier.OrderConfirmation(order)
		r.notifier.OrderConfirmed(order)
	}

	return &ReconcileResult{Order: order, JustPaid: justPaid}, nil
}

func (r *Reconciler) advanceOrderStatus(order *domain.Order, paymentStatus string) {
	switch paymentStatus {
	case paymentStatusSucceeded:
		if order.OrderStatus == domain.OrderStatusPending {
			order.OrderStatus = domain.OrderStatusPaid
		}
	case paymentStatusCanceled:
		if !order.OrderStatus.IsTerminal() {
			order.OrderStatus = domain.OrderStatusCancelled
		}
	}
}

// BuildIntentPatch extracts the order field patch from a payment intent
// event: the gateway's current status plus contact and shipping backfill
// where the event carries it.
func BuildIntentPatch(intent *gateway.PaymentIntent) domain.OrderPatch {
	patch := domain.OrderPatch{
		PaymentStatus: intent.Status,
	}

	if intent.ReceiptEmail != "" {
		email := intent.ReceiptEmail
		patch.Email = &email
	}

	if intent.Shipping != nil {
		first, last := splitName(intent.Shipping.Name)
		if first != "" {
			patch.FirstName = &first
		}
		if last != "" {
			patch.LastName = &last
		}
		if intent.Shipping.Phone != "" {
			phone := intent.Shipping.Phone
			patch.Phone = &phone
		}
		if addr := intent.Shipping.Address; addr != nil {
			patch.Shipping = &domain.ShippingAddress{
				Line1:      addr.Line1,
				Line2:      addr.Line2,
				City:       addr.City,
				State:      addr.State,
				PostalCode: addr.PostalCode,
				Country:    addr.Country,
			}
		}
	}

	return patch
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	first = parts[0]
	if len(parts) == 2 {
		last = strings.TrimSpace(parts[1])
	}
	return first, last
}
