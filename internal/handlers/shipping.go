package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/veloura/storefront/internal/shipping"
)

type ShippingHandler struct {
	Estimator shipping.Estimator
}

func (h *ShippingHandler) Estimate(c echo.Context) error {
	var req struct {
		Pincode       string          `json:"pincode"`
		WeightKg      float64         `json:"weight_kg"`
		DeclaredValue decimal.Decimal `json:"declared_value"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !shipping.ValidPincode(req.Pincode) {
		return echo.NewHTTPError(http.StatusBadRequest, "pincode must be 6 digits")
	}

	cost := h.Estimator.EstimateCost(c.Request().Context(), req.Pincode, req.WeightKg, req.DeclaredValue)
	return c.JSON(http.StatusOK, echo.Map{"cost": cost})
}
