package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/pkg/storage"
)

// CatalogService reads and edits the goods catalog.
type CatalogService struct {
	goods           *repositories.GoodsRepository
	orders          *repositories.OrderRepository
	carts           *repositories.CartRepository
	disk            storage.Disk
	hideUnavailable bool
}

func NewCatalogService(
	goods *repositories.GoodsRepository,
	orders *repositories.OrderRepository,
	carts *repositories.CartRepository,
	disk storage.Disk,
	hideUnavailable bool,
) *CatalogService {
	return &CatalogService{goods: goods, orders: orders, carts: carts, disk: disk, hideUnavailable: hideUnavailable}
}

// Storefront lists what shoppers see on the index page.
func (s *CatalogService) Storefront(ctx context.Context) ([]models.Goods, error) {
	return s.goods.All(ctx, s.hideUnavailable)
}

// All lists every item for the manager page.
func (s *CatalogService) All(ctx context.Context) ([]models.Goods, error) {
	return s.goods.All(ctx, false)
}

func (s *CatalogService) Find(ctx context.Context, id uint) (*models.Goods, error) {
	return s.goods.FindByID(ctx, id)
}

// CartCount is the number of lines in the user's open order, 0 without one.
func (s *CatalogService) CartCount(ctx context.Context, userID uint) (int64, error) {
	order, err := s.orders.FindOpen(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.carts.Count(ctx, order.ID)
}

// ActiveOrders counts paid orders waiting to be finished.
func (s *CatalogService) ActiveOrders(ctx context.Context) (int64, error) {
	return s.orders.CountActive(ctx)
}

// Save creates g (ID 0) or overwrites it. A non-nil picture is stored on the
// configured disk and replaces PictureLink.
func (s *CatalogService) Save(ctx context.Context, g *models.Goods, picture *multipart.FileHeader) error {
	if picture != nil {
		if s.disk == nil {
			return errors.New("catalog: no storage disk configured")
		}
		url, err := storage.StoreImage(ctx, s.disk, "goods", picture)
		if err != nil {
			return fmt.Errorf("catalog: store picture: %w", err)
		}
		g.PictureLink = url
	}
	g.Price = models.RoundMoney(g.Price)
	if g.ID == 0 {
		return s.goods.Create(ctx, g)
	}
	return s.goods.Update(ctx, g)
}
