package models

// Goods is one catalog item.
type Goods struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	Name          string  `gorm:"size:250;not null" json:"name"`
	Description   string  `gorm:"size:1000" json:"description"`
	PictureLink   string  `gorm:"size:1000;not null" json:"picture_link"`
	Price         float64 `gorm:"not null" json:"price"`
	Units         string  `gorm:"size:250;not null" json:"units"`
	InStockAmount int     `gorm:"not null" json:"in_stock_amount"`
	Available     bool    `gorm:"not null" json:"available"`
}

func (Goods) TableName() string { return "good" }
