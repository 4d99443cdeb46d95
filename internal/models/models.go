package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

func (s ProductStatus) Valid() bool {
	return s == ProductStatusActive || s == ProductStatusInactive
}

type Product struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Status      ProductStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

type CartLine struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartItem is a cart line joined with the live product row. It is for
// display only; checkout prices from an OrderItem snapshot.
type CartItem struct {
	CartLine
	Product Product `json:"product"`
}

// OrderItem is the frozen copy of a purchased line.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type LineItems []OrderItem

func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		l = LineItems{}
	}
	return jsonValue(l)
}

func (l *LineItems) Scan(src interface{}) error {
	return scanJSON(src, l)
}

type ShippingAddress struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Address   string `json:"address" binding:"required,max=500"`
	City      string `json:"city" binding:"required,max=100"`
	ZipCode   string `json:"zip_code" binding:"required,max=20"`
}

func (a ShippingAddress) Value() (driver.Value, error) {
	return jsonValue(a)
}

func (a *ShippingAddress) Scan(src interface{}) error {
	return scanJSON(src, a)
}

type Order struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	OrderNumber      string          `json:"order_number"`
	Items            LineItems       `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Shipping         decimal.Decimal `json:"shipping"`
	Total            decimal.Decimal `json:"total"`
	Status           OrderStatus     `json:"status"`
	ShippingAddress  ShippingAddress `json:"shipping_address"`
	PaymentReference *string         `json:"payment_reference"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`
}

type WishlistEntry struct {
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

type AttemptOutcome string

const (
	AttemptPending       AttemptOutcome = "pending"
	AttemptPaymentFailed AttemptOutcome = "payment_failed"
	AttemptCommitted     AttemptOutcome = "committed"
	AttemptCommitFailed  AttemptOutcome = "commit_failed"
)

// PaymentAttempt is one row of the reconciliation log: what a checkout
// tried to charge, for which order payload, and how it ended.
type PaymentAttempt struct {
	ID               string          `json:"id"`
	UserID           int64           `json:"user_id"`
	PaymentReference *string         `json:"payment_reference"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Payload          json.RawMessage `json:"payload"`
	Outcome          AttemptOutcome  `json:"outcome"`
	Error            string          `json:"error,omitempty"`
	OrderID          *int64          `json:"order_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func jsonValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func scanJSON(src interface{}, dst interface{}) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		return errors.New("scan json: null value")
	default:
		return fmt.Errorf("scan json: unsupported type %T", src)
	}
	return json.Unmarshal(data, dst)
}
