package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/bookshop-fulfillment/payment-service/internal/httpx"
	"github.com/bookshop-fulfillment/payment-service/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var request service.CreatePaymentRequest

	if err := c.BodyParser(&request); err != nil {
		return httpx.BadRequestResponse(c, "Invalid request body", map[string]interface{}{
			"parse_error": err.Error(),
		})
	}

	session, err := h.paymentService.CreatePayment(request)
	if err != nil {
		log.Printf("Payment creation error: %v", err)
		return respondServiceError(c, err)
	}

	return httpx.SuccessResponse(c, "Payment created successfully", session)
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	intent, err := h.paymentService.RetrievePayment(c.Params("paymentId"))
	if err != nil {
		return respondServiceError(c, err)
	}

	return httpx.SuccessResponse(c, "Payment retrieved successfully", intent)
}

func (h *PaymentHandler) CancelPayment(c *fiber.Ctx) error {
	intent, err := h.paymentService.CancelPayment(c.Params("paymentId"))
	if err != nil {
		return respondServiceError(c, err)
	}

	return httpx.SuccessResponse(c, "Payment cancelled successfully", intent)
}

func (h *PaymentHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.paymentService.GetOrder(c.Params("paymentId"))
	if err != nil {
		return respondServiceError(c, err)
	}

	return httpx.SuccessResponse(c, "Order retrieved successfully", mapOrder(order))
}

func (h *PaymentHandler) HealthCheck(c *fiber.Ctx) error {
	return httpx.SuccessResponse(c, "Payment service is healthy", map[string]interface{}{
		"service": "payment-service",
		"status":  "healthy",
	})
}
