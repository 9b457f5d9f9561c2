package services

import (
	"context"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/pkg/event"
	"github.com/farmshop/storefront/pkg/metrics"
)

// OrderAdminService drives order fulfilment.
type OrderAdminService struct {
	orders *repositories.OrderRepository
	bus    *event.Bus
}

func NewOrderAdminService(orders *repositories.OrderRepository, bus *event.Bus) *OrderAdminService {
	return &OrderAdminService{orders: orders, bus: bus}
}

// Active lists paid, unfinished orders with lines and goods.
func (s *OrderAdminService) Active(ctx context.Context) ([]models.Order, error) {
	return s.orders.Active(ctx)
}

// Finish sets the finished flag. It does not check that the order was paid.
func (s *OrderAdminService) Finish(ctx context.Context, id uint) error {
	if err := s.orders.MarkFinished(ctx, id); err != nil {
		return err
	}
	metrics.OrdersFinished.Inc()

	if s.bus != nil {
		order, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		s.bus.Fire(ctx, event.Event{Name: event.OrderFinished, OrderID: order.ID, UserID: order.UserID, Sum: order.OrderSum})
	}
	return nil
}

// RefreshActiveGauge updates the active-orders gauge.
func (s *OrderAdminService) RefreshActiveGauge(ctx context.Context) error {
	n, err := s.orders.CountActive(ctx)
	if err != nil {
		return err
	}
	metrics.ActiveOrders.Set(float64(n))
	return nil
}
