package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-order-system/internal/model"
	"github.com/fairyhunter13/scalable-order-system/internal/service"
)

// userHeader carries the caller's external user ID on every order route.
const userHeader = "X-USER-ID"

// OrderServiceInterface defines the interface for order business logic.
type OrderServiceInterface interface {
	Create(ctx context.Context, externalUserID string, req *model.CreateOrderRequest) (*model.OrderInfo, error)
	GetOrder(ctx context.Context, externalUserID string, orderID int64) (*model.OrderInfo, error)
	GetOrders(ctx context.Context, externalUserID string) ([]*model.Order, error)
	HandleCallback(ctx context.Context, orderID int64, cb *model.CallbackRequest) error
}

// OrderHandler handles HTTP requests for order operations.
type OrderHandler struct {
	service   OrderServiceInterface
	validator *validator.Validate
}

// NewOrderHandler creates a new OrderHandler with the given service and validator.
func NewOrderHandler(svc OrderServiceInterface, v *validator.Validate) *OrderHandler {
	return &OrderHandler{service: svc, validator: v}
}

// respondError maps the service error taxonomy to HTTP statuses.
// Unexpected errors are logged with request context and come back as 500.
func respondError(c *fiber.Ctx, err error) error {
	switch service.KindOf(err) {
	case service.KindBadRequest:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case service.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case service.KindConflict:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}

// formatOrderValidationError converts validator errors to client messages.
func formatOrderValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "Items":
				if tag == "required" || tag == "min" {
					return "invalid request: items must not be empty"
				}
				return "invalid request: items are invalid"
			case "ProductID":
				return "invalid request: product_id must be at least 1"
			case "Quantity":
				return "invalid request: quantity must be at least 1"
			case "UsedPoint":
				return "invalid request: used_point must not be negative"
			case "CardNo":
				return "invalid request: card_no is not a valid card number"
			case "Status":
				return "invalid request: status must be PENDING, SUCCESS or FAILED"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				if tag == "max" {
					return "invalid request: " + field + " exceeds maximum length"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// CreateOrder handles POST /api/v1/orders requests to place an order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID := c.Get(userHeader)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: " + userHeader + " header is required"})
	}

	var req model.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatOrderValidationError(err)})
	}

	info, err := h.service.Create(c.Context(), userID, &req)
	if err != nil {
		return respondError(c, err)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", userID).
		Int64("order_id", info.Order.ID).
		Str("status", info.Order.Status).
		Int64("total_amount", info.Order.TotalAmount).
		Msg("order created")

	return c.Status(fiber.StatusOK).JSON(info)
}

// ListOrders handles GET /api/v1/orders requests.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID := c.Get(userHeader)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: " + userHeader + " header is required"})
	}

	orders, err := h.service.GetOrders(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// GetOrder handles GET /api/v1/orders/:id requests.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID := c.Get(userHeader)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: " + userHeader + " header is required"})
	}
	orderID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || orderID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: order id must be a positive integer"})
	}

	info, err := h.service.GetOrder(c.Context(), userID, orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(info)
}

// Callback handles POST /api/v1/orders/:id/callback, the PG-initiated
// status push. It responds 200 even when the order is already terminal:
// the PG retries callbacks and duplicates must be cheap.
func (h *OrderHandler) Callback(c *fiber.Ctx) error {
	orderID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || orderID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: order id must be a positive integer"})
	}

	var req model.CallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatOrderValidationError(err)})
	}

	if err := h.service.HandleCallback(c.Context(), orderID, &req); err != nil {
		return respondError(c, err)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Int64("order_id", orderID).
		Str("callback_status", req.Status).
		Msg("pg callback processed")

	return c.Status(fiber.StatusOK).Send(nil)
}
