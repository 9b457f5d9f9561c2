package services

import (
	"context"
	"errors"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/pkg/metrics"
)

// CartService edits the lines of a user's open order.
type CartService struct {
	goods  *repositories.GoodsRepository
	orders *repositories.OrderRepository
	carts  *repositories.CartRepository
}

func NewCartService(goods *repositories.GoodsRepository, orders *repositories.OrderRepository, carts *repositories.CartRepository) *CartService {
	return &CartService{goods: goods, orders: orders, carts: carts}
}

// CartView is what the cart page shows.
type CartView struct {
	Order *models.Order
	Lines []models.CartLine
	ToPay float64
}

// Add appends a line to the user's open order, opening one if needed. The
// line total uses the item's current price. Stock is not checked.
func (s *CartService) Add(ctx context.Context, userID, goodsID uint, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	item, err := s.goods.FindByID(ctx, goodsID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindOrCreateOpen(ctx, userID)
	if err != nil {
		return nil, err
	}

	line := &models.CartLine{
		OrderID:  order.ID,
		ItemID:   item.ID,
		Quantity: quantity,
		TotalSum: models.LineTotal(quantity, item.Price),
	}
	if err := s.carts.Add(ctx, line); err != nil {
		return nil, err
	}
	metrics.CartLinesAdded.Inc()
	line.Item = *item
	return line, nil
}

// Update overwrites a line's quantity and recomputes its total from the
// item's current price. Lines outside the user's open order are not found.
func (s *CartService) Update(ctx context.Context, userID, lineID uint, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	order, err := s.orders.FindOpen(ctx, userID)
	if err != nil {
		return err
	}
	line, err := s.carts.Find(ctx, order.ID, lineID)
	if err != nil {
		return err
	}
	line.Quantity = quantity
	line.TotalSum = models.LineTotal(quantity, line.Item.Price)
	return s.carts.UpdateQuantity(ctx, line)
}

// Remove deletes one line of the user's open order.
func (s *CartService) Remove(ctx context.Context, userID, lineID uint) error {
	order, err := s.orders.FindOpen(ctx, userID)
	if err != nil {
		return err
	}
	return s.carts.Delete(ctx, order.ID, lineID)
}

// View loads the open order, totals its lines and persists the total as the
// order sum. It returns ErrNoOpenOrder when the user has no cart yet.
func (s *CartService) View(ctx context.Context, userID uint) (*CartView, error) {
	order, err := s.orders.FindOpen(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNoOpenOrder
	}
	if err != nil {
		return nil, err
	}
	lines, err := s.carts.Lines(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	toPay := Total(lines)
	if err := s.orders.SetSum(ctx, order.ID, toPay); err != nil {
		return nil, err
	}
	order.OrderSum = toPay
	return &CartView{Order: order, Lines: lines, ToPay: toPay}, nil
}

// Total sums line totals, rounded to cents.
func Total(lines []models.CartLine) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.TotalSum
	}
	return models.RoundMoney(sum)
}
