package seeders

import (
	"context"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/repositories"
	"gorm.io/gorm"
)

func init() {
	Register("goods", SeedGoods)
}

var sampleGoods = []models.Goods{
	{Name: "Farm eggs", Description: "Free-range eggs from our own hens.", PictureLink: "/static/img/eggs.jpg", Price: 3.20, Units: "dozen", InStockAmount: 40, Available: true},
	{Name: "Raw milk", Description: "Morning milk, bottled the same day.", PictureLink: "/static/img/milk.jpg", Price: 1.50, Units: "l", InStockAmount: 60, Available: true},
	{Name: "Cottage cheese", Description: "Soft curd cheese made from our milk.", PictureLink: "/static/img/curd.jpg", Price: 5.00, Units: "kg", InStockAmount: 15, Available: true},
	{Name: "Buckwheat honey", Description: "Dark honey from the meadow hives.", PictureLink: "/static/img/honey.jpg", Price: 12.00, Units: "kg", InStockAmount: 0, Available: false},
}

// SeedGoods inserts the sample catalog into an empty goods table.
func SeedGoods(ctx context.Context, db *gorm.DB) error {
	repo := repositories.NewGoodsRepository(db)
	n, err := repo.Count(ctx)
	if err != nil || n > 0 {
		return err
	}
	for i := range sampleGoods {
		g := sampleGoods[i]
		if err := repo.Create(ctx, &g); err != nil {
			return err
		}
	}
	return nil
}
