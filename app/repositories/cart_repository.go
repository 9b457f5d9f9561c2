package repositories

import (
	"context"
	"fmt"

	"github.com/farmshop/storefront/app/models"
	"gorm.io/gorm"
)

// CartRepository handles cart lines. Lookups are always scoped to an order
// so one user can never reach another user's line by id.
type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Add(ctx context.Context, line *models.CartLine) error {
	if err := r.db.WithContext(ctx).Omit("Item").Create(line).Error; err != nil {
		return fmt.Errorf("add cart line: %w", translate(err))
	}
	return nil
}

// Find returns the line with lineID inside orderID, with its goods loaded.
func (r *CartRepository) Find(ctx context.Context, orderID, lineID uint) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("id = ? AND order_id = ?", lineID, orderID).
		First(&line).Error
	if err != nil {
		return nil, translate(err)
	}
	return &line, nil
}

// Lines returns the order's lines in insertion order with goods loaded.
func (r *CartRepository) Lines(ctx context.Context, orderID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("order_id = ?", orderID).
		Order("id").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	return lines, nil
}

func (r *CartRepository) Count(ctx context.Context, orderID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CartLine{}).Where("order_id = ?", orderID).Count(&n).Error
	return n, err
}

// UpdateQuantity overwrites quantity and total of one line.
func (r *CartRepository) UpdateQuantity(ctx context.Context, line *models.CartLine) error {
	err := r.db.WithContext(ctx).Model(&models.CartLine{}).
		Where("id = ?", line.ID).
		Updates(map[string]any{"quantity": line.Quantity, "total_sum": line.TotalSum}).Error
	if err != nil {
		return fmt.Errorf("update cart line %d: %w", line.ID, err)
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, orderID, lineID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND order_id = ?", lineID, orderID).Delete(&models.CartLine{})
	if res.Error != nil {
		return fmt.Errorf("delete cart line %d: %w", lineID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
