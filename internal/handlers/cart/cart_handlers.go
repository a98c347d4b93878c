package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/veloura/storefront/internal/handlers"
	"github.com/veloura/storefront/internal/models"
	"github.com/veloura/storefront/internal/mykafka"
)

// MaxLineQuantity caps how many units of one variant a cart line may hold.
const MaxLineQuantity = 2

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// Subtotal is recomputed from the lines on every read, never stored.
func Subtotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := handlers.UserID(c)
	if err != nil {
		return err
	}

	var items []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":   "get_cart",
		"userID": userID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"items":    items,
		"subtotal": Subtotal(items),
	})
}

// AddToCart merges into an existing line when (product, size, color) already
// sits in the cart, otherwise appends a new line with the catalog price
// frozen at add time.
func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := handlers.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint   `json:"product_id"`
		Size      string `json:"size"`
		Color     string `json:"color"`
		Quantity  uint   `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var item models.CartItem
	tx := h.DB.Where(
		"user_id = ? AND product_id = ? AND size = ? AND color = ?",
		userID, req.ProductID, req.Size, req.Color,
	).First(&item)
	if tx.Error == nil {
		item.Quantity += req.Quantity
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.publish(c, map[string]any{
			"type":      "cart_line_merged",
			"userID":    userID,
			"productID": req.ProductID,
			"quantity":  item.Quantity,
		})
		return c.JSON(http.StatusOK, item)
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, tx.Error.Error())
	}

	newItem := models.CartItem{
		UserID:    userID,
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
		Quantity:  req.Quantity,
		UnitPrice: product.Price,
	}
	if err := h.DB.Create(&newItem).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(c, map[string]any{
		"type":      "cart_line_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  newItem.Quantity,
	})
	return c.JSON(http.StatusOK, newItem)
}

func (h *CartHandler) IncrementLine(c echo.Context) error {
	userID, err := handlers.UserID(c)
	if err != nil {
		return err
	}
	item, err := h.ownedLine(c, userID)
	if err != nil {
		return err
	}

	if item.Quantity >= MaxLineQuantity {
		return echo.NewHTTPError(http.StatusConflict, "line quantity limit reached")
	}
	item.Quantity++
	if err := h.DB.Save(item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":         "cart_line_incremented",
		"userID":       userID,
		"id":           item.ID,
		"new_quantity": item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

// DecrementLine floors at one unit; use DeleteLine to drop the line.
func (h *CartHandler) DecrementLine(c echo.Context) error {
	userID, err := handlers.UserID(c)
	if err != nil {
		return err
	}
	item, err := h.ownedLine(c, userID)
	if err != nil {
		return err
	}

	if item.Quantity <= 1 {
		return c.JSON(http.StatusOK, item)
	}
	item.Quantity--
	if err := h.DB.Save(item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":         "cart_line_decremented",
		"userID":       userID,
		"id":           item.ID,
		"new_quantity": item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteLine(c echo.Context) error {
	userID, err := handlers.UserID(c)
	if err != nil {
		return err
	}
	item, err := h.ownedLine(c, userID)
	if err != nil {
		return err
	}

	if err := h.DB.Delete(item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":         "cart_line_deleted",
		"userID":       userID,
		"deleted_item": item.ID,
	})
	return c.JSON(http.StatusOK, echo.Map{"deleted_item": item.ID})
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := handlers.UserID(c)
	if err != nil {
		return err
	}

	if err := h.DB.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":   "cart_cleared",
		"userID": userID,
	})
	return c.JSON(http.StatusOK, echo.Map{"items": []models.CartItem{}, "subtotal": decimal.Zero})
}

func (h *CartHandler) ownedLine(c echo.Context, userID uint) (*models.CartItem, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &item, nil
}
