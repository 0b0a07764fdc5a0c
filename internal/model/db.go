package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string `gorm:"primaryKey;size:64;not null"`
	Name      string `gorm:"size:128"`
	Email     string `gorm:"size:255;index"`
	Phone     string `gorm:"size:32"`
	Points    int64  `gorm:"not null;default:0"` // never negative
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is one cart line as submitted at checkout.
type LineItem struct {
	ID       string `json:"id"`
	Quantity int32  `json:"quantity"`
}

type PaymentTransaction struct {
	ReferenceID   string          `gorm:"primaryKey;size:64;not null"` // client generated <prefix>-<ms>-<amount>
	InvoiceNumber string          `gorm:"size:20;uniqueIndex;not null"` // gateway side correlation, max 20 chars
	UserID        string          `gorm:"size:64;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Items         []LineItem      `gorm:"serializer:json"`
	Provider      string          `gorm:"size:32;not null"`
	Token         string          `gorm:"type:text"`
	CheckoutURL   string          `gorm:"size:512"`
	ReturnURL     string          `gorm:"size:512"`
	Status        PaymentStatus   `gorm:"size:16;index;not null"`
	GatewayTxID   string          `gorm:"size:64"`
	OrderNumber   string          `gorm:"size:32;index"`
	PointsEarned  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Order struct {
	OrderNumber  string          `gorm:"primaryKey;size:32;not null"` // ORD-YYYYMMDD-NNNN
	ReferenceID  string          `gorm:"size:64;uniqueIndex;not null"`
	UserID       string          `gorm:"size:64;index;not null"`
	Total        decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PointsEarned int64           `gorm:"not null"`
	OrderStatus  bool            `gorm:"not null;default:false"` // ready for pickup
	CancelStatus bool            `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → orders.order_number
	OrderNumber string `gorm:"size:32;index;not null"`
	ProductID   string `gorm:"size:64;index;not null"`
	Quantity    int32  `gorm:"not null"`
	CreatedAt   time.Time
}

type Coupon struct {
	CouponCode        string       `gorm:"primaryKey;size:32;not null"` // RWD-XXXXXX-XXX
	OrderNumber       string       `gorm:"size:32;index"`
	UserID            string       `gorm:"size:64;index;not null"`
	RewardTitle       string       `gorm:"size:128;not null"`
	RewardDescription string       `gorm:"size:255"`
	PointsUsed        int64        `gorm:"not null"`
	Status            CouponStatus `gorm:"size:16;index;not null"`
	ExpirationDate    time.Time    `gorm:"index;not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&PaymentTransaction{},
		&Order{},
		&OrderItem{},
		&Coupon{},
		&WebhookEvent{},
	}
}
