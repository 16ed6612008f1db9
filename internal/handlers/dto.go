package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bookshop-fulfillment/payment-service/internal/domain"
	"github.com/bookshop-fulfillment/payment-service/internal/httpx"
)

type OrderResponse struct {
	PaymentID     string                  `json:"payment_id"`
	OrderStatus   string                  `json:"order_status"`
	PaymentStatus string                  `json:"payment_status"`
	Items         []domain.OrderItem      `json:"items"`
	Total         float64                 `json:"total"`
	Currency      string                  `json:"currency"`
	FirstName     string                  `json:"first_name,omitempty"`
	LastName      string                  `json:"last_name,omitempty"`
	Email         string                  `json:"email,omitempty"`
	Phone         string                  `json:"phone,omitempty"`
	Shipping      *domain.ShippingAddress `json:"shipping,omitempty"`
	PaidAt        *time.Time              `json:"paid_at,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func mapOrder(order *domain.Order) OrderResponse {
	return OrderResponse{
		PaymentID:     order.PaymentID,
		OrderStatus:   string(order.OrderStatus),
		PaymentStatus: order.PaymentStatus,
		Items:         order.Items,
		Total:         order.Total,
		Currency:      order.Currency,
		FirstName:     order.FirstName,
		LastName:      order.LastName,
		Email:         order.Email,
		Phone:         order.Phone,
		Shipping:      order.Shipping,
		PaidAt:        order.PaidAt,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

// respondServiceError maps the domain error taxonomy to HTTP statuses.
// Gateway errors pass through with their own status semantics.
func respondServiceError(c *fiber.Ctx, err error) error {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return httpx.BadRequestResponse(c, validationErr.Message, nil)
	}

	var notFoundErr *domain.NotFoundError
	if errors.As(err, &notFoundErr) {
		return httpx.NotFoundResponse(c, notFoundErr.Error())
	}

	var gatewayErr *domain.GatewayError
	if errors.As(err, &gatewayErr) {
		return httpx.StatusResponse(c, gatewayErr.StatusCode, "GATEWAY_ERROR", gatewayErr.Message)
	}

	return httpx.InternalServerErrorResponse(c, "Internal server error", map[string]interface{}{
		"error": err.Error(),
	})
}
