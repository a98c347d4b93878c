package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	Name        string          `gorm:"not null"                          json:"name"`
	Description string          `gorm:"not null"                          json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"       json:"price"`
	Images      []string        `gorm:"serializer:json"                   json:"images"`
	Sizes       []string        `gorm:"serializer:json"                   json:"sizes"`
	Colors      []string        `gorm:"serializer:json"                   json:"colors"`
	Quantity    uint            `json:"quantity"`
	Category    string          `gorm:"index"                             json:"category"`
	ProductType string          `gorm:"index"                             json:"product_type"`
	InStock     bool            `gorm:"default:true"                      json:"in_stock"`
	WeightKg    float64         `json:"weight_kg"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

type Banner struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Image    string `gorm:"not null"                 json:"image"`
	Position int    `gorm:"default:0"                json:"position"`
}

type Review struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint      `gorm:"index;not null"           json:"product_id"`
	UserID    uint      `gorm:"not null"                 json:"user_id"`
	Rating    int       `gorm:"not null"                 json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// CartItem keeps the unit price frozen at add time, so a later catalog price
// change does not move an already assembled cart.
type CartItem struct {
	ID        uint            `gorm:"primaryKey"                  json:"id"`
	UserID    uint            `gorm:"index;not null"              json:"user_id"`
	ProductID uint            `gorm:"not null"                    json:"product_id"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  uint            `gorm:"default:1;check:quantity>0"  json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
}

type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

type Order struct {
	ID                uint            `gorm:"primaryKey;autoIncrement"         json:"id"`
	Number            string          `gorm:"uniqueIndex;not null"             json:"number"`
	UserID            uint            `gorm:"index;not null"                   json:"user_id"`
	Address           Address         `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	PaymentMethod     PaymentMethod   `gorm:"not null"                         json:"payment_method"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(12,2);not null"      json:"subtotal"`
	ShippingCost      decimal.Decimal `gorm:"type:decimal(12,2);not null"      json:"shipping_cost"`
	CodFee            decimal.Decimal `gorm:"type:decimal(12,2);not null"      json:"cod_fee"`
	Total             decimal.Decimal `gorm:"type:decimal(12,2);not null"      json:"total"`
	Status            OrderStatus     `gorm:"not null;default:'pending'"       json:"status"`
	PaymentStatus     PaymentStatus   `gorm:"not null;default:'unpaid'"        json:"payment_status"`
	GatewayOrderRef   string          `json:"gateway_order_ref,omitempty"`
	GatewayPaymentRef string          `json:"gateway_payment_ref,omitempty"`
	InventoryApplied  bool            `gorm:"default:false"                    json:"inventory_applied"`
	ArchivedAt        *time.Time      `gorm:"index"                            json:"archived_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Items             []OrderItem     `gorm:"foreignKey:OrderID"               json:"items"`
}

// OrderItem is a snapshot of a cart line at checkout time. Product fields are
// copied, not referenced, so later catalog edits never mutate a placed order.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey"                  json:"id"`
	OrderID   uint            `gorm:"index;not null"              json:"order_id"`
	ProductID uint            `gorm:"not null"                    json:"product_id"`
	Name      string          `gorm:"not null"                    json:"name"`
	Image     string          `json:"image"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  uint            `gorm:"not null"                    json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
}
