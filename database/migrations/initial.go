package migrations

import (
	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/pkg/migration"
	"github.com/farmshop/storefront/pkg/queue"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20240101000000_create_users_table", &table{model: &models.User{}, name: "users"})
	migration.Register("20240101000001_create_good_table", &table{model: &models.Goods{}, name: "good"})
	migration.Register("20240101000002_create_orders_table", &table{model: &models.Order{}, name: "orders"})
	migration.Register("20240101000003_create_cart_table", &table{model: &models.CartLine{}, name: "cart"})
	migration.Register("20240101000004_create_failed_jobs_table", &table{model: &queue.FailedJobRecord{}, name: "failed_jobs"})
}

// table creates a model's table if it is missing and adds any new columns
// to an existing one, so databases created by earlier releases upgrade in
// place.
type table struct {
	model any
	name  string
}

func (m *table) Up(db *gorm.DB) error {
	return db.AutoMigrate(m.model)
}

func (m *table) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(m.name)
}
