// Package shipping wraps the external rate-quote and shipment-creation API.
// Rate failures degrade to a zero quote instead of failing checkout.
package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veloura/storefront/internal/logging"
	"github.com/veloura/storefront/internal/models"
)

var pincodeRe = regexp.MustCompile(`^[0-9]{6}$`)

func ValidPincode(s string) bool {
	return pincodeRe.MatchString(s)
}

// Estimator quotes a delivery cost for a destination and shipment weight.
type Estimator interface {
	EstimateCost(ctx context.Context, destPincode string, weightKg float64, declaredValue decimal.Decimal) decimal.Decimal
}

type Client struct {
	BaseURL       string
	Token         string
	OriginPincode string
	HTTPClient    *http.Client
}

func NewClient(baseURL, token, originPincode string) *Client {
	return &Client{
		BaseURL:       baseURL,
		Token:         token,
		OriginPincode: originPincode,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// EstimateCost returns the quoted cost, or zero when the provider is
// unreachable or answers badly. Errors are logged, never surfaced.
func (c *Client) EstimateCost(ctx context.Context, destPincode string, weightKg float64, declaredValue decimal.Decimal) decimal.Decimal {
	l := logging.FromContext(ctx).With("component", "shipping")

	body := map[string]interface{}{
		"pickup_postcode":   c.OriginPincode,
		"delivery_postcode": destPincode,
		"weight":            weightKg,
		"declared_value":    declaredValue,
	}
	data, err := json.Marshal(body)
	if err != nil {
		l.Warn("estimate_failed", "error", err)
		return decimal.Zero
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/courier/serviceability", bytes.NewReader(data))
	if err != nil {
		l.Warn("estimate_failed", "error", err)
		return decimal.Zero
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		l.Warn("estimate_failed", "error", err)
		return decimal.Zero
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		l.Warn("estimate_failed", "status", resp.Status)
		return decimal.Zero
	}

	var out struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		l.Warn("estimate_failed", "error", err)
		return decimal.Zero
	}
	if out.Rate.IsNegative() {
		l.Warn("estimate_failed", "reason", "negative rate")
		return decimal.Zero
	}
	return out.Rate
}

// CreateShipment registers an approved order with the carrier and returns
// the carrier's shipment reference. Unlike quotes, failures here surface.
func (c *Client) CreateShipment(ctx context.Context, o *models.Order) (string, error) {
	items := make([]map[string]interface{}, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]interface{}{
			"name":  it.Name,
			"units": it.Quantity,
			"price": it.UnitPrice,
			"size":  it.Size,
			"color": it.Color,
		})
	}

	body := map[string]interface{}{
		"order_number":      o.Number,
		"pickup_postcode":   c.OriginPincode,
		"delivery_postcode": o.Address.PostalCode,
		"name":              o.Address.Name,
		"phone":             o.Address.Phone,
		"address":           o.Address.Line1 + " " + o.Address.Line2,
		"city":              o.Address.City,
		"state":             o.Address.State,
		"total":             o.Total,
		"items":             items,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("shipping: marshal shipment failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/orders/create", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("shipping: build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("shipping: carrier call failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("shipping: carrier returned %s", resp.Status)
	}

	var out struct {
		ShipmentID string `json:"shipment_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("shipping: decode response failed: %w", err)
	}
	return out.ShipmentID, nil
}
