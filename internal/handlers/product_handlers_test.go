package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/veloura/storefront/internal/models"
	"github.com/veloura/storefront/internal/mykafka"
)

func TestCreateAndGetProduct(t *testing.T) {
	db := InitTestDB(t)
	h := &ProductHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()

	payload := map[string]interface{}{
		"name":        "Linen Shirt",
		"description": "Summer fit",
		"price":       "1299.50",
		"images":      []string{"https://cdn.example.com/shirt.jpg"},
		"sizes":       []string{"S", "M", "L"},
		"colors":      []string{"white", "navy"},
		"quantity":    5,
		"category":    "shirts",
	}
	rec, c := doJSONRequest(t, e, http.MethodPost, "/admin/products", payload)
	require.NoError(t, h.CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	require.True(t, created.Price.Equal(decimal.RequireFromString("1299.50")))
	require.True(t, created.InStock)
	require.Equal(t, []string{"S", "M", "L"}, created.Sizes)

	recGet, cGet := doJSONRequest(t, e, http.MethodGet, "/products/1", nil)
	cGet.SetParamNames("id")
	cGet.SetParamValues("1")
	require.NoError(t, h.GetProduct(cGet))
	require.Equal(t, http.StatusOK, recGet.Code)
}

func TestGetProductsPagination(t *testing.T) {
	db := InitTestDB(t)
	h := &ProductHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()

	for i := 0; i < 15; i++ {
		db.Create(&models.Product{Name: "p", Description: "d", Price: decimal.NewFromInt(10), Quantity: 1})
	}

	rec, c := doJSONRequest(t, e, http.MethodGet, "/products?page=2&size=10", nil)
	require.NoError(t, h.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product       `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 5)
	require.EqualValues(t, 15, resp.Meta["total"])
	require.Equal(t, true, resp.Meta["has_prev"])
	require.Equal(t, false, resp.Meta["has_next"])
}

func TestPurchaseDecrementsStock(t *testing.T) {
	db := InitTestDB(t)
	h := &ProductHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()

	db.Create(&models.Product{Name: "p", Description: "d", Price: decimal.NewFromInt(10), Quantity: 2, InStock: true})

	rec, c := doJSONRequest(t, e, http.MethodPost, "/products/1/purchase", map[string]uint{"quantity": 1})
	c.SetParamNames("id")
	c.SetParamValues("1")
	c.Set("userID", uint(1))
	require.NoError(t, h.Purchase(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var p models.Product
	require.NoError(t, db.First(&p, 1).Error)
	require.EqualValues(t, 1, p.Quantity)
}

func TestPurchaseInsufficientStock(t *testing.T) {
	db := InitTestDB(t)
	h := &ProductHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()

	db.Create(&models.Product{Name: "p", Description: "d", Price: decimal.NewFromInt(10), Quantity: 2, InStock: true})

	_, c := doJSONRequest(t, e, http.MethodPost, "/products/1/purchase", map[string]uint{"quantity": 3})
	c.SetParamNames("id")
	c.SetParamValues("1")
	c.Set("userID", uint(1))

	err := h.Purchase(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)

	// Stock is untouched on a refused purchase.
	var p models.Product
	require.NoError(t, db.First(&p, 1).Error)
	require.EqualValues(t, 2, p.Quantity)
}

func TestDeleteProduct(t *testing.T) {
	db := InitTestDB(t)
	h := &ProductHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()

	db.Create(&models.Product{Name: "p", Description: "d", Price: decimal.NewFromInt(10)})

	rec, c := doJSONRequest(t, e, http.MethodDelete, "/admin/products/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.DeleteProduct(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	db.Model(&models.Product{}).Count(&count)
	require.EqualValues(t, 0, count)
}
