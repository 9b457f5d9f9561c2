package models

// User is a registered shopper. Admin capability is not stored here; it
// comes from the ADMIN_IDS allow-list.
type User struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Email    string  `gorm:"uniqueIndex;size:120;not null" json:"email"`
	Password string  `gorm:"size:255;not null" json:"-"` // salted hash, never serialised
	Orders   []Order `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string { return "users" }
