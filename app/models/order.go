package models

import "time"

// Order moves open → paid → finished and never back.
//
// OpenKey holds the owner's id while the order is open and is cleared when it
// is paid. A unique index on it keeps each user at one open order even under
// concurrent add-to-cart requests.
type Order struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Date              time.Time  `gorm:"column:date;autoCreateTime" json:"date"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	User              User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Paid              bool       `gorm:"not null" json:"paid"`
	Finished          bool       `gorm:"not null" json:"finished"`
	OrderSum          float64    `json:"order_sum"`
	CheckoutSessionID string     `gorm:"size:255;index" json:"-"`
	CheckoutAmount    int64      `gorm:"not null;default:0" json:"-"` // cents charged by the session
	OpenKey           *uint      `gorm:"uniqueIndex" json:"-"`
	Lines             []CartLine `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
}

func (Order) TableName() string { return "orders" }

// Open reports whether the order is still the user's cart.
func (o Order) Open() bool { return !o.Paid }

// Active reports whether the order is waiting for fulfilment.
func (o Order) Active() bool { return o.Paid && !o.Finished }
