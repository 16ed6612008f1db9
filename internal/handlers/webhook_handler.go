package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/bookshop-fulfillment/payment-service/internal/domain"
	"github.com/bookshop-fulfillment/payment-service/internal/gateway"
	"github.com/bookshop-fulfillment/payment-service/internal/httpx"
	"github.com/bookshop-fulfillment/payment-service/internal/service"
)

// SignatureHeader carries the gateway's webhook signature over the raw body.
const SignatureHeader = "Gateway-Signature"

type WebhookHandler struct {
	gateway    gateway.Gateway
	reconciler *service.Reconciler
}

func NewWebhookHandler(paymentGateway gateway.Gateway, reconciler *service.Reconciler) *WebhookHandler {
	return &WebhookHandler{
		gateway:    paymentGateway,
		reconciler: reconciler,
	}
}

// HandleGatewayWebhook verifies the signature against the exact raw bytes
// before anything else, then routes the typed event. Unknown types are
// acknowledged with 200 so the gateway does not redeliver them forever;
// invariant violations return 500 so it does redeliver.
func (h *WebhookHandler) HandleGatewayWebhook(c *fiber.Ctx) error {
	event, err := h.gateway.VerifyAndParse(c.Body(), c.Get(SignatureHeader))
	if err != nil {
		var signatureErr *domain.SignatureError
		if errors.As(err, &signatureErr) {
			log.Printf("Webhook rejected: %v", err)
			return httpx.BadRequestResponse(c, signatureErr.Error(), nil)
		}
		log.Printf("Webhook payload rejected: %v", err)
		return httpx.BadRequestResponse(c, "Invalid webhook payload", nil)
	}

	switch event.Domain {
	case gateway.DomainPaymentIntent:
		if err := h.handleIntentEvent(event); err != nil {
			var invariantErr *domain.InvariantError
			if errors.As(err, &invariantErr) {
				log.Printf("Webhook invariant violation: %v", err)
				return httpx.InternalServerErrorResponse(c, invariantErr.Message, nil)
			}
			log.Printf("Webhook processing error: event=%s, %v", event.Type, err)
			return httpx.InternalServerErrorResponse(c, "Webhook processing failed", nil)
		}

	case gateway.DomainCharge:
		logSideEvent(event.Type, event.Charge.PaymentIntent)
	case gateway.DomainRefund:
		logSideEvent(event.Type, event.Refund.PaymentIntent)
	case gateway.DomainDispute:
		logSideEvent(event.Type, event.Dispute.PaymentIntent)

	case gateway.DomainUnknown:
		log.Printf("Unhandled webhook type: %s", event.Type)
	}

	return c.JSON(fiber.Map{"received": true})
}

func (h *WebhookHandler) handleIntentEvent(event *gateway.Event) error {
	if event.Intent.ID == "" {
		log.Printf("Intent event without transaction id: %s", event.Type)
		return nil
	}

	patch := service.BuildIntentPatch(event.Intent)
	_, err := h.reconciler.Apply(event.Intent.ID, patch, event.Type)
	return err
}

// Charge, refund and dispute events may be unrelated to this subsystem's
// orders; they are acknowledged and recorded in the log only.
func logSideEvent(eventType, paymentIntent string) {
	if paymentIntent == "" {
		log.Printf("Webhook %s without payment reference, ignoring", eventType)
		return
	}
	log.Printf("Webhook %s acknowledged: payment_id=%s", eventType, paymentIntent)
}
