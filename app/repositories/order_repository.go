package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/farmshop/storefront/app/models"
	"gorm.io/gorm"
)

// OrderRepository handles orders and their state transitions.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindOpen returns the user's unpaid order.
func (r *OrderRepository) FindOpen(ctx context.Context, userID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND paid = ?", userID, false).
		Order("id").
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindOrCreateOpen returns the user's open order, creating it when missing.
// Two racing callers both end up with the same row: the loser's insert hits
// the open_key unique index and it re-reads the winner's order.
func (r *OrderRepository) FindOrCreateOpen(ctx context.Context, userID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND paid = ?", userID, false).Order("id").First(&order).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		key := userID
		order = models.Order{UserID: userID, OpenKey: &key}
		return tx.Omit("User", "Lines").Create(&order).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return r.FindOpen(ctx, userID)
		}
		return nil, fmt.Errorf("find or create open order: %w", err)
	}
	return &order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// SetSum persists the recomputed order total.
func (r *OrderRepository) SetSum(ctx context.Context, id uint, sum float64) error {
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("order_sum", sum).Error
	if err != nil {
		return fmt.Errorf("set order %d sum: %w", id, err)
	}
	return nil
}

// SetCheckoutSession records the processor session created for the order
// and the amount, in cents, it charges.
func (r *OrderRepository) SetCheckoutSession(ctx context.Context, id uint, sessionID string, amount int64) error {
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).
		Updates(map[string]any{"checkout_session_id": sessionID, "checkout_amount": amount}).Error
	if err != nil {
		return fmt.Errorf("set order %d session: %w", id, err)
	}
	return nil
}

// MarkPaid moves an open order to paid and releases its open slot. It
// reports false without error when the order was already paid.
func (r *OrderRepository) MarkPaid(ctx context.Context, id uint) (bool, error) {
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, id).Error; err != nil {
			return translate(err)
		}
		if order.Paid {
			return nil
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND paid = ?", id, false).
			Updates(map[string]any{"paid": true, "open_key": gorm.Expr("NULL")})
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, err
		}
		return false, fmt.Errorf("mark order %d paid: %w", id, err)
	}
	return changed, nil
}

// MarkFinished sets finished on the order regardless of its paid state.
func (r *OrderRepository) MarkFinished(ctx context.Context, id uint) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("finished", true).Error
	if err != nil {
		return fmt.Errorf("mark order %d finished: %w", id, err)
	}
	return nil
}

// Active returns paid, unfinished orders with their owner, lines and goods.
func (r *OrderRepository) Active(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Item").
		Where("paid = ? AND finished = ?", true, false).
		Order("id").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("paid = ? AND finished = ?", true, false).
		Count(&n).Error
	return n, err
}

// Delete removes the order together with its lines.
func (r *OrderRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.CartLine{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Order{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
