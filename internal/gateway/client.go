package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bookshop-fulfillment/payment-service/internal/domain"
)

// IntentIDPrefix is the gateway's id convention for payment transactions.
const IntentIDPrefix = "pi_"

// ValidIntentID checks the gateway id-prefix convention for ids received from
// clients before any gateway call is made.
func ValidIntentID(id string) bool {
	return strings.HasPrefix(id, IntentIDPrefix) && len(id) > len(IntentIDPrefix)
}

// Gateway is the narrow surface the payment and webhook flows need from the
// external processor. Injected so tests can substitute a double.
type Gateway interface {
	CreateIntent(amountMinor int64, currency string) (*PaymentIntent, error)
	RetrieveIntent(id string) (*PaymentIntent, error)
	CancelIntent(id string) (*PaymentIntent, error)
	VerifyAndParse(payload []byte, signatureHeader string) (*Event, error)
}

type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

// Client talks to the processor's HTTP API. Form-encoded requests, JSON
// responses, bearer auth.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

func (c *Client) CreateIntent(amountMinor int64, currency string) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")

	return c.doIntentRequest(http.MethodPost, "/v1/payment_intents", form)
}

func (c *Client) RetrieveIntent(id string) (*PaymentIntent, error) {
	return c.doIntentRequest(http.MethodGet, "/v1/payment_intents/"+id, nil)
}

func (c *Client) CancelIntent(id string) (*PaymentIntent, error) {
	return c.doIntentRequest(http.MethodPost, "/v1/payment_intents/"+id+"/cancel", nil)
}

// VerifyAndParse checks the signature against the raw payload bytes and only
// then decodes the event. Verification failure surfaces as SignatureError so
// the handler can reject before any side effect.
func (c *Client) VerifyAndParse(payload []byte, signatureHeader string) (*Event, error) {
	if err := VerifySignature(payload, signatureHeader, c.config.WebhookSecret, time.Now()); err != nil {
		return nil, err
	}
	return ParseEvent(payload)
}

func (c *Client) doIntentRequest(method, path string, form url.Values) (*PaymentIntent, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("gateway request build error: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request error: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway response read error: %v", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseGatewayError(resp.StatusCode, respBody)
	}

	intent := &PaymentIntent{}
	if err := json.Unmarshal(respBody, intent); err != nil {
		return nil, fmt.Errorf("gateway response decode error: %v", err)
	}

	return intent, nil
}

func parseGatewayError(statusCode int, body []byte) error {
	var wrapper struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	gatewayErr := &domain.GatewayError{StatusCode: statusCode}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		gatewayErr.Code = wrapper.Error.Code
		gatewayErr.Message = wrapper.Error.Message
	}
	if gatewayErr.Message == "" {
		gatewayErr.Message = http.StatusText(statusCode)
	}

	return gatewayErr
}
