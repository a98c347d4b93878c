// Package order holds the checkout and order-lifecycle handlers: order
// creation from the cart, payment verification, admin status transitions
// with the single-shot inventory decrement, and order listings.
package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veloura/storefront/internal/handlers"
	"github.com/veloura/storefront/internal/logging"
	"github.com/veloura/storefront/internal/models"
	"github.com/veloura/storefront/internal/mykafka"
	"github.com/veloura/storefront/internal/payment"
	"github.com/veloura/storefront/internal/shipping"
)

// CodFee is the flat cash-on-delivery surcharge added to the order total.
var CodFee = decimal.NewFromInt(50)

type OrderHandler struct {
	DB            *gorm.DB
	Producer      *mykafka.Producer
	Gateway       payment.Gateway
	Estimator     shipping.Estimator
	Shipper       *shipping.Client
	PaymentSecret []byte
	Currency      string
}

type createOrderRequest struct {
	Address       models.Address       `json:"address"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

func (h *OrderHandler) publish(c echo.Context, orderID uint, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(orderID), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// CreateOrder turns the user's cart into an order. All reads and validation
// happen before the first write; the order row, its item snapshots and the
// cart wipe share one transaction. A failed gateway call afterwards marks
// the order failed instead of leaving it pending.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order_create")

	userID, err := handlers.UserID(c)
	if err != nil {
		return err
	}

	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !req.PaymentMethod.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "payment_method must be online or cod")
	}
	if !shipping.ValidPincode(req.Address.PostalCode) {
		return echo.NewHTTPError(http.StatusBadRequest, "postal code must be 6 digits")
	}
	if req.Address.Name == "" || req.Address.Line1 == "" || req.Address.City == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "incomplete address")
	}

	var cartItems []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Find(&cartItems).Error; err != nil {
		l.Error("create_order_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if len(cartItems) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no items in cart")
	}

	// Snapshot pass: every referenced product must resolve before anything
	// is written.
	subtotal := decimal.Zero
	var weightKg float64
	orderItems := make([]models.OrderItem, 0, len(cartItems))
	for _, it := range cartItems {
		var p models.Product
		if err := h.DB.First(&p, it.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				l.Warn("create_order_error", "status", 400, "reason", "product missing", "productID", it.ProductID)
				return echo.NewHTTPError(http.StatusBadRequest, "product not found")
			}
			l.Error("create_order_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}

		image := ""
		if len(p.Images) > 0 {
			image = p.Images[0]
		}
		orderItems = append(orderItems, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     image,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		weightKg += p.WeightKg * float64(it.Quantity)
	}

	shippingCost := h.Estimator.EstimateCost(ctx, req.Address.PostalCode, weightKg, subtotal)
	codFee := decimal.Zero
	if req.PaymentMethod == models.PaymentMethodCOD {
		codFee = CodFee
	}
	total := subtotal.Add(shippingCost).Add(codFee)

	order := models.Order{
		Number:        uuid.NewString(),
		UserID:        userID,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      subtotal,
		ShippingCost:  shippingCost,
		CodFee:        codFee,
		Total:         total,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for i := range orderItems {
			orderItems[i].OrderID = order.ID
			if err := tx.Create(&orderItems[i]).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return nil
	})
	if txErr != nil {
		l.Error("create_order_error", "status", 500, "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	order.Items = orderItems

	if req.PaymentMethod == models.PaymentMethodOnline {
		amountMinor := total.Mul(decimal.NewFromInt(100)).IntPart()
		ref, err := h.Gateway.CreateOrder(ctx, amountMinor, h.Currency, order.Number)
		if err != nil {
			// Compensating action: no orphaned pending orders when the
			// gateway is down.
			l.Error("gateway_order_failed", "status", 502, "orderID", order.ID, "error", err)
			h.DB.Model(&models.Order{}).Where("id = ?", order.ID).
				Update("status", models.OrderStatusFailed)
			return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
		}
		order.GatewayOrderRef = ref
		if err := h.DB.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("gateway_order_ref", ref).Error; err != nil {
			l.Error("create_order_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	h.publish(c, order.ID, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": order.ID,
		"number":  order.Number,
		"total":   order.Total,
	})

	l.Info("create_order_success", "orderID", order.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"order":             order,
		"gateway_order_ref": order.GatewayOrderRef,
	})
}

// VerifyPayment checks the gateway's HMAC over (orderRef, paymentRef) and on
// a match moves the order to paid/processing. A bad signature changes
// nothing.
func (h *OrderHandler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order_verify_payment")

	userID, err := handlers.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		OrderNumber       string `json:"order_number"`
		GatewayOrderRef   string `json:"gateway_order_ref"`
		GatewayPaymentRef string `json:"gateway_payment_ref"`
		Signature         string `json:"signature"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.GatewayOrderRef == "" || req.GatewayPaymentRef == "" || req.Signature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing payment references")
	}

	if !payment.VerifySignature(req.GatewayOrderRef, req.GatewayPaymentRef, req.Signature, h.PaymentSecret) {
		l.Warn("verify_payment_failed", "status", 400, "reason", "invalid signature")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	var order models.Order
	if err := h.DB.Where("number = ? AND user_id = ?", req.OrderNumber, userID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if order.GatewayOrderRef != req.GatewayOrderRef {
		return echo.NewHTTPError(http.StatusBadRequest, "order reference mismatch")
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return c.JSON(http.StatusOK, echo.Map{"status": "already paid"})
	}

	updates := map[string]any{
		"payment_status":      models.PaymentStatusPaid,
		"status":              models.OrderStatusProcessing,
		"gateway_payment_ref": req.GatewayPaymentRef,
	}
	if err := h.DB.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, order.ID, map[string]any{
		"type":    "payment_verified",
		"orderID": order.ID,
		"userID":  userID,
	})

	l.Info("verify_payment_success", "orderID", order.ID)
	return c.JSON(http.StatusOK, echo.Map{"status": "paid"})
}

func (h *OrderHandler) MyOrders(c echo.Context) error {
	userID, err := handlers.UserID(c)
	if err != nil {
		return err
	}

	var orders []models.Order
	if err := h.DB.Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, orders)
}
