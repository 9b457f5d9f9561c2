package models

import "math"

// CartLine is one goods entry inside an order. TotalSum is a snapshot taken
// when the line was written and is not refreshed on later price changes.
type CartLine struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	OrderID  uint    `gorm:"not null;index" json:"order_id"`
	ItemID   uint    `gorm:"not null;index" json:"item_id"`
	Item     Goods   `gorm:"foreignKey:ItemID" json:"item"`
	Quantity int     `gorm:"not null" json:"quantity"`
	TotalSum float64 `gorm:"not null" json:"total_sum"`
}

func (CartLine) TableName() string { return "cart" }

// RoundMoney rounds to two decimal places, half away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// LineTotal is quantity × unit price, rounded to cents.
func LineTotal(quantity int, price float64) float64 {
	return RoundMoney(float64(quantity) * price)
}
