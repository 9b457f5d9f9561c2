package repositories

import (
	"context"
	"fmt"

	"github.com/farmshop/storefront/app/models"
	"gorm.io/gorm"
)

// GoodsRepository handles catalog persistence.
type GoodsRepository struct {
	db *gorm.DB
}

func NewGoodsRepository(db *gorm.DB) *GoodsRepository {
	return &GoodsRepository{db: db}
}

// All returns every catalog item ordered by id. With onlyAvailable set,
// hidden items are left out.
func (r *GoodsRepository) All(ctx context.Context, onlyAvailable bool) ([]models.Goods, error) {
	q := r.db.WithContext(ctx).Order("id")
	if onlyAvailable {
		q = q.Where("available = ?", true)
	}
	var goods []models.Goods
	if err := q.Find(&goods).Error; err != nil {
		return nil, fmt.Errorf("list goods: %w", err)
	}
	return goods, nil
}

func (r *GoodsRepository) FindByID(ctx context.Context, id uint) (*models.Goods, error) {
	var g models.Goods
	if err := r.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (r *GoodsRepository) Create(ctx context.Context, g *models.Goods) error {
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("create goods: %w", translate(err))
	}
	return nil
}

// Update writes every column of g, including false and zero values.
func (r *GoodsRepository) Update(ctx context.Context, g *models.Goods) error {
	if g.ID == 0 {
		return ErrNotFound
	}
	if err := r.db.WithContext(ctx).Save(g).Error; err != nil {
		return fmt.Errorf("update goods %d: %w", g.ID, translate(err))
	}
	return nil
}

func (r *GoodsRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Goods{}).Count(&n).Error
	return n, err
}
