package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/veloura/storefront/internal/models"
	"github.com/veloura/storefront/internal/mykafka"
	"github.com/veloura/storefront/internal/payment"
)

type stubGateway struct {
	ref   string
	err   error
	calls int
}

func (g *stubGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.ref, nil
}

type stubEstimator struct {
	cost decimal.Decimal
}

func (e *stubEstimator) EstimateCost(ctx context.Context, destPincode string, weightKg float64, declaredValue decimal.Decimal) decimal.Decimal {
	return e.cost
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.CartItem{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newHandler(db *gorm.DB, gw *stubGateway) *OrderHandler {
	return &OrderHandler{
		DB:            db,
		Producer:      &mykafka.Producer{},
		Gateway:       gw,
		Estimator:     &stubEstimator{cost: decimal.NewFromInt(50)},
		PaymentSecret: []byte("test-secret"),
		Currency:      "INR",
	}
}

func newContext(t *testing.T, e *echo.Echo, method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("userID", uint(1))
	return rec, c
}

func seedCart(t *testing.T, db *gorm.DB, price int64, qty uint) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     "Linen Shirt",
		Price:    decimal.NewFromInt(price),
		Quantity: 10,
		InStock:  true,
		WeightKg: 0.3,
	}
	require.NoError(t, db.Create(p).Error)
	require.NoError(t, db.Create(&models.CartItem{
		UserID: 1, ProductID: p.ID, Size: "M", Color: "white",
		Quantity: qty, UnitPrice: p.Price,
	}).Error)
	return p
}

func goodAddress() models.Address {
	return models.Address{
		Name:       "Asha Rao",
		Phone:      "9876543210",
		Line1:      "14 Hill Road",
		City:       "Mumbai",
		State:      "MH",
		PostalCode: "400050",
	}
}

func TestCreateOrderOnlineTotals(t *testing.T) {
	db := initTestDB(t)
	gw := &stubGateway{ref: "gw_order_1"}
	h := newHandler(db, gw)
	e := echo.New()
	seedCart(t, db, 500, 1)

	rec, c := newContext(t, e, http.MethodPost, "/orders", map[string]interface{}{
		"address":        goodAddress(),
		"payment_method": "online",
	})
	require.NoError(t, h.CreateOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Order           models.Order `json:"order"`
		GatewayOrderRef string       `json:"gateway_order_ref"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Order.Subtotal.Equal(decimal.NewFromInt(500)))
	require.True(t, resp.Order.ShippingCost.Equal(decimal.NewFromInt(50)))
	require.True(t, resp.Order.CodFee.Equal(decimal.Zero))
	require.True(t, resp.Order.Total.Equal(decimal.NewFromInt(550)), "got %s", resp.Order.Total)
	require.Equal(t, "gw_order_1", resp.GatewayOrderRef)
	require.Equal(t, models.OrderStatusPending, resp.Order.Status)
	require.Equal(t, 1, gw.calls)

	// Checkout empties the cart.
	var count int64
	db.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&count)
	require.EqualValues(t, 0, count)
}

func TestCreateOrderCODTotals(t *testing.T) {
	db := initTestDB(t)
	gw := &stubGateway{ref: "gw_order_1"}
	h := newHandler(db, gw)
	e := echo.New()
	seedCart(t, db, 500, 1)

	rec, c := newContext(t, e, http.MethodPost, "/orders", map[string]interface{}{
		"address":        goodAddress(),
		"payment_method": "cod",
	})
	require.NoError(t, h.CreateOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Order.CodFee.Equal(CodFee))
	require.True(t, resp.Order.Total.Equal(decimal.NewFromInt(600)), "got %s", resp.Order.Total)
	// COD never touches the gateway.
	require.Equal(t, 0, gw.calls)
}

func TestCreateOrderGatewayDownMarksFailed(t *testing.T) {
	db := initTestDB(t)
	gw := &stubGateway{err: errors.New("connection refused")}
	h := newHandler(db, gw)
	e := echo.New()
	seedCart(t, db, 500, 1)

	_, c := newContext(t, e, http.MethodPost, "/orders", map[string]interface{}{
		"address":        goodAddress(),
		"payment_method": "online",
	})
	err := h.CreateOrder(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadGateway, he.Code)

	var order models.Order
	require.NoError(t, db.First(&order).Error)
	require.Equal(t, models.OrderStatusFailed, order.Status)
}

func TestCreateOrderUnknownProductWritesNothing(t *testing.T) {
	db := initTestDB(t)
	h := newHandler(db, &stubGateway{ref: "gw_order_1"})
	e := echo.New()

	// Cart line pointing at a product that no longer exists.
	require.NoError(t, db.Create(&models.CartItem{
		UserID: 1, ProductID: 999, Quantity: 1, UnitPrice: decimal.NewFromInt(500),
	}).Error)

	_, c := newContext(t, e, http.MethodPost, "/orders", map[string]interface{}{
		"address":        goodAddress(),
		"payment_method": "cod",
	})
	err := h.CreateOrder(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)

	var orders, items int64
	db.Model(&models.Order{}).Count(&orders)
	db.Model(&models.OrderItem{}).Count(&items)
	require.EqualValues(t, 0, orders)
	require.EqualValues(t, 0, items)
}

func TestCreateOrderValidation(t *testing.T) {
	db := initTestDB(t)
	h := newHandler(db, &stubGateway{})
	e := echo.New()
	seedCart(t, db, 500, 1)

	badPin := goodAddress()
	badPin.PostalCode = "40005"
	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"bad method", map[string]interface{}{"address": goodAddress(), "payment_method": "wire"}},
		{"bad pincode", map[string]interface{}{"address": badPin, "payment_method": "cod"}},
		{"missing address", map[string]interface{}{"address": models.Address{PostalCode: "400050"}, "payment_method": "cod"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, c := newContext(t, e, http.MethodPost, "/orders", tc.body)
			err := h.CreateOrder(c)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok, "expected HTTPError")
			require.Equal(t, http.StatusBadRequest, he.Code)
		})
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	db := initTestDB(t)
	h := newHandler(db, &stubGateway{})
	e := echo.New()

	_, c := newContext(t, e, http.MethodPost, "/orders", map[string]interface{}{
		"address":        goodAddress(),
		"payment_method": "cod",
	})
	err := h.CreateOrder(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestVerifyPayment(t *testing.T) {
	db := initTestDB(t)
	h := newHandler(db, &stubGateway{})
	e := echo.New()

	order := models.Order{
		Number: "ord-1", UserID: 1,
		PaymentMethod: models.PaymentMethodOnline,
		Subtotal:      decimal.NewFromInt(500), ShippingCost: decimal.NewFromInt(50),
		CodFee: decimal.Zero, Total: decimal.NewFromInt(550),
		Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusUnpaid,
		GatewayOrderRef: "gw_order_1",
	}
	require.NoError(t, db.Create(&order).Error)

	good := payment.Sign("gw_order_1", "gw_pay_1", h.PaymentSecret)

	// A tampered signature changes nothing.
	_, c := newContext(t, e, http.MethodPost, "/orders/verify-payment", map[string]interface{}{
		"order_number":        "ord-1",
		"gateway_order_ref":   "gw_order_1",
		"gateway_payment_ref": "gw_pay_1",
		"signature":           "deadbeef",
	})
	err := h.VerifyPayment(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)

	var check models.Order
	require.NoError(t, db.First(&check, order.ID).Error)
	require.Equal(t, models.PaymentStatusUnpaid, check.PaymentStatus)
	require.Equal(t, models.OrderStatusPending, check.Status)

	// The genuine signature moves it to paid/processing.
	rec, c2 := newContext(t, e, http.MethodPost, "/orders/verify-payment", map[string]interface{}{
		"order_number":        "ord-1",
		"gateway_order_ref":   "gw_order_1",
		"gateway_payment_ref": "gw_pay_1",
		"signature":           good,
	})
	require.NoError(t, h.VerifyPayment(c2))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.First(&check, order.ID).Error)
	require.Equal(t, models.PaymentStatusPaid, check.PaymentStatus)
	require.Equal(t, models.OrderStatusProcessing, check.Status)
	require.Equal(t, "gw_pay_1", check.GatewayPaymentRef)
}

func seedOrderWithItem(t *testing.T, db *gorm.DB, status models.OrderStatus, productID, qty uint) *models.Order {
	t.Helper()
	order := &models.Order{
		Number: "ord-" + string(status), UserID: 1,
		PaymentMethod: models.PaymentMethodCOD,
		Subtotal:      decimal.NewFromInt(500), ShippingCost: decimal.NewFromInt(50),
		CodFee: CodFee, Total: decimal.NewFromInt(600),
		Status: status, PaymentStatus: models.PaymentStatusUnpaid,
	}
	require.NoError(t, db.Create(order).Error)
	require.NoError(t, db.Create(&models.OrderItem{
		OrderID: order.ID, ProductID: productID, Name: "Linen Shirt",
		Quantity: qty, UnitPrice: decimal.NewFromInt(500),
	}).Error)
	return order
}

func updateStatus(t *testing.T, e *echo.Echo, h *OrderHandler, orderID uint, to models.OrderStatus) (*httptest.ResponseRecorder, error) {
	t.Helper()
	rec, c := newContext(t, e, http.MethodPut, "/admin/orders/status", map[string]interface{}{"status": to})
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(orderID)))
	return rec, h.UpdateStatus(c)
}

func TestApproveDecrementsStockOnce(t *testing.T) {
	db := initTestDB(t)
	h := newHandler(db, &stubGateway{})
	e := echo.New()

	p := &models.Product{Name: "Linen Shirt", Price: decimal.NewFromInt(500), Quantity: 5, InStock: true}
	require.NoError(t, db.Create(p).Error)
	order := seedOrderWithItem(t, db, models.OrderStatusProcessing, p.ID, 2)

	rec, err := updateStatus(t, e, h, order.ID, models.OrderStatusApproved)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.EqualValues(t, 3, got.Quantity)

	// Replay the approval after a manual reset; the latch keeps the
	// decrement from running again.
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", models.OrderStatusProcessing).Error)
	_, err = updateStatus(t, e, h, order.ID, models.OrderStatusApproved)
	require.NoError(t, err)

	require.NoError(t, db.First(&got, p.ID).Error)
	require.EqualValues(t, 3, got.Quantity)
}

func TestApproveInsufficientStockRollsBack(t *testing.T) {
	db := initTestDB(t)
	h := newHandler(db, &stubGateway{})
	e := echo.New()

	p := &models.Product{Name: "Linen Shirt", Price: decimal.NewFromInt(500), Quantity: 1, InStock: true}
	require.NoError(t, db.Create(p).Error)
	order := seedOrderWithItem(t, db, models.OrderStatusProcessing, p.ID, 2)

	_, err := updateStatus(t, e, h, order.ID, models.OrderStatusApproved)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)

	// Nothing committed: stock, status and the latch are all untouched.
	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	require.EqualValues(t, 1, got.Quantity)

	var check models.Order
	require.NoError(t, db.First(&check, order.ID).Error)
	require.Equal(t, models.OrderStatusProcessing, check.Status)
	require.False(t, check.InventoryApplied)
}

func TestInvalidStatusTransitionsRejected(t *testing.T) {
	db := initTestDB(t)
	h := newHandler(db, &stubGateway{})
	e := echo.New()

	order := seedOrderWithItem(t, db, models.OrderStatusPending, 1, 1)

	_, err := updateStatus(t, e, h, order.ID, models.OrderStatusCompleted)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)

	// Unknown labels are rejected before the transition check.
	_, c := newContext(t, e, http.MethodPut, "/admin/orders/status", map[string]interface{}{"status": "order received"})
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(order.ID)))
	err = h.UpdateStatus(c)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestCompletedSetsArchivedAt(t *testing.T) {
	db := initTestDB(t)
	h := newHandler(db, &stubGateway{})
	e := echo.New()

	p := &models.Product{Name: "Linen Shirt", Price: decimal.NewFromInt(500), Quantity: 5, InStock: true}
	require.NoError(t, db.Create(p).Error)
	order := seedOrderWithItem(t, db, models.OrderStatusApproved, p.ID, 1)

	_, err := updateStatus(t, e, h, order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)

	var check models.Order
	require.NoError(t, db.First(&check, order.ID).Error)
	require.Equal(t, models.OrderStatusCompleted, check.Status)
	require.NotNil(t, check.ArchivedAt)
}

func TestMyOrdersScopedToUser(t *testing.T) {
	db := initTestDB(t)
	h := newHandler(db, &stubGateway{})
	e := echo.New()

	seedOrderWithItem(t, db, models.OrderStatusPending, 1, 1)
	other := models.Order{
		Number: "ord-other", UserID: 2,
		PaymentMethod: models.PaymentMethodCOD,
		Subtotal:      decimal.NewFromInt(100), ShippingCost: decimal.Zero,
		CodFee: CodFee, Total: decimal.NewFromInt(150),
		Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusUnpaid,
	}
	require.NoError(t, db.Create(&other).Error)

	rec, c := newContext(t, e, http.MethodGet, "/orders/mine", nil)
	require.NoError(t, h.MyOrders(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	require.EqualValues(t, 1, orders[0].UserID)
	require.Len(t, orders[0].Items, 1)
}
