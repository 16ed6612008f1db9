package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventDomain classifies a webhook event into one of the gateway's lifecycle
// families. Events outside these families are acknowledged but ignored.
type EventDomain int

const (
	DomainUnknown EventDomain = iota
	DomainPaymentIntent
	DomainCharge
	DomainRefund
	DomainDispute
)

func (d EventDomain) String() string {
	switch d {
	case DomainPaymentIntent:
		return "payment_intent"
	case DomainCharge:
		return "charge"
	case DomainRefund:
		return "refund"
	case DomainDispute:
		return "dispute"
	default:
		return "unknown"
	}
}

// Payment intent event sub-types as delivered by the gateway.
const (
	IntentCreated                 = "payment_intent.created"
	IntentProcessing              = "payment_intent.processing"
	IntentRequiresAction          = "payment_intent.requires_action"
	IntentRequiresCapture         = "payment_intent.requires_capture"
	IntentPartiallyFunded         = "payment_intent.partially_funded"
	IntentAmountCapturableUpdated = "payment_intent.amount_capturable_updated"
	IntentSucceeded               = "payment_intent.succeeded"
	IntentCanceled                = "payment_intent.canceled"
	IntentPaymentFailed           = "payment_intent.payment_failed"
)

// IsTerminalIntentEvent reports whether the sub-type describes a final
// transaction state. A terminal event for an unknown order is an invariant
// violation, a non-terminal one is tolerable noise.
func IsTerminalIntentEvent(eventType string) bool {
	return eventType == IntentSucceeded || eventType == IntentCanceled
}

// Event is a verified, parsed webhook notification. Exactly one of the
// object fields is populated, matching the domain.
type Event struct {
	ID      string
	Type    string
	Domain  EventDomain
	Created int64

	Intent  *PaymentIntent
	Charge  *Charge
	Refund  *Refund
	Dispute *Dispute
}

// PaymentIntent mirrors the gateway's transaction object.
type PaymentIntent struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Amount       int64           `json:"amount"`
	Currency     string          `json:"currency"`
	ClientSecret string          `json:"client_secret,omitempty"`
	ReceiptEmail string          `json:"receipt_email,omitempty"`
	Shipping     *ShippingDetail `json:"shipping,omitempty"`
}

type Charge struct {
	ID             string          `json:"id"`
	PaymentIntent  string          `json:"payment_intent"`
	Status         string          `json:"status"`
	Amount         int64           `json:"amount"`
	BillingDetails *BillingDetails `json:"billing_details,omitempty"`
}

type Refund struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
}

type Dispute struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	Amount        int64  `json:"amount"`
}

type BillingDetails struct {
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Address *Address `json:"address,omitempty"`
}

type ShippingDetail struct {
	Name    string   `json:"name,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Address *Address `json:"address,omitempty"`
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// ClassifyEventType maps a raw type tag to its domain. Dispute events arrive
// as charge.dispute.*, so the dispute prefix is checked first.
func ClassifyEventType(eventType string) EventDomain {
	switch {
	case strings.HasPrefix(eventType, "payment_intent."):
		return DomainPaymentIntent
	case strings.HasPrefix(eventType, "charge.dispute."):
		return DomainDispute
	case strings.HasPrefix(eventType, "refund."):
		return DomainRefund
	case strings.HasPrefix(eventType, "charge."):
		return DomainCharge
	default:
		return DomainUnknown
	}
}

type rawEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a verified payload into a typed Event. The object is
// decoded according to the event domain so downstream code gets exactly one
// populated variant.
func ParseEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("event deserialization error: %v", err)
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("event has no type tag")
	}

	event := &Event{
		ID:      raw.ID,
		Type:    raw.Type,
		Domain:  ClassifyEventType(raw.Type),
		Created: raw.Created,
	}

	switch event.Domain {
	case DomainPaymentIntent:
		event.Intent = &PaymentIntent{}
		if err := json.Unmarshal(raw.Data.Object, event.Intent); err != nil {
			return nil, fmt.Errorf("payment intent decode error: %v", err)
		}
	case DomainCharge:
		event.Charge = &Charge{}
		if err := json.Unmarshal(raw.Data.Object, event.Charge); err != nil {
			return nil, fmt.Errorf("charge decode error: %v", err)
		}
	case DomainRefund:
		event.Refund = &Refund{}
		if err := json.Unmarshal(raw.Data.Object, event.Refund); err != nil {
			return nil, fmt.Errorf("refund decode error: %v", err)
		}
	case DomainDispute:
		event.Dispute = &Dispute{}
		if err := json.Unmarshal(raw.Data.Object, event.Dispute); err != nil {
			return nil, fmt.Errorf("dispute decode error: %v", err)
		}
	case DomainUnknown:
		// Acknowledged upstream without decoding the object.
	}

	return event, nil
}
