package order

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/veloura/storefront/internal/logging"
	"github.com/veloura/storefront/internal/models"
	"github.com/veloura/storefront/internal/util"
)

var errInsufficientStock = errors.New("insufficient stock")

func (h *OrderHandler) ListOrders(c echo.Context) error {
	page := 1
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		page = v
	}
	size := util.DefaultPageSize
	if v, err := strconv.Atoi(c.QueryParam("size")); err == nil {
		size = v
	}
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.Order{})
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var orders []models.Order
	if err := q.Preload("Items").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": orders,
		"meta": map[string]any{"page": page, "size": limit, "total": total},
	})
}

// UpdateStatus moves an order along the status transition table. The edge
// into approved triggers the inventory decrement, latched by
// inventory_applied so a repeated approval never decrements twice.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order_update_status")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !req.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}

	var order models.Order
	if err := h.DB.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if !order.Status.CanTransition(req.Status) {
		l.Warn("update_status_rejected", "status", 409, "from", order.Status, "to", req.Status)
		return echo.NewHTTPError(http.StatusConflict, "invalid status transition")
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if req.Status == models.OrderStatusApproved {
			if err := h.applyInventory(tx, &order); err != nil {
				return err
			}
		}

		updates := map[string]any{"status": req.Status}
		if req.Status == models.OrderStatusCompleted {
			now := time.Now()
			updates["archived_at"] = &now
		}
		return tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error
	})
	if txErr != nil {
		if errors.Is(txErr, errInsufficientStock) {
			l.Warn("update_status_rejected", "status", 409, "reason", "insufficient stock", "orderID", order.ID)
			return echo.NewHTTPError(http.StatusConflict, "insufficient stock")
		}
		l.Error("update_status_error", "status", 500, "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, order.ID, map[string]any{
		"type":    "order_status_changed",
		"orderID": order.ID,
		"from":    order.Status,
		"to":      req.Status,
	})

	l.Info("update_status_success", "orderID", order.ID, "to", req.Status)
	return c.JSON(http.StatusOK, echo.Map{"id": order.ID, "status": req.Status})
}

// applyInventory decrements stock for every line of the order, exactly once
// per order. The inventory_applied check-and-set and the conditional
// quantity updates roll back together on any failure.
func (h *OrderHandler) applyInventory(tx *gorm.DB, order *models.Order) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND inventory_applied = ?", order.ID, false).
		Update("inventory_applied", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already applied by an earlier approval.
		return nil
	}

	for _, item := range order.Items {
		dec := tx.Model(&models.Product{}).
			Where("id = ? AND quantity >= ?", item.ProductID, item.Quantity).
			UpdateColumn("quantity", gorm.Expr("quantity - ?", item.Quantity))
		if dec.Error != nil {
			return dec.Error
		}
		if dec.RowsAffected == 0 {
			return errInsufficientStock
		}
	}
	return nil
}

// CreateShipment registers an approved order with the carrier.
func (h *OrderHandler) CreateShipment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order_create_shipment")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.DB.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if order.Status != models.OrderStatusApproved && order.Status != models.OrderStatusProcessing {
		return echo.NewHTTPError(http.StatusConflict, "order not ready for shipment")
	}

	shipmentID, err := h.Shipper.CreateShipment(ctx, &order)
	if err != nil {
		l.Error("create_shipment_failed", "status", 502, "orderID", order.ID, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "carrier unavailable")
	}

	l.Info("create_shipment_success", "orderID", order.ID, "shipmentID", shipmentID)
	return c.JSON(http.StatusOK, echo.Map{"shipment_id": shipmentID})
}
