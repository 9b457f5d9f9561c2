package seeders

import (
	"context"
	"errors"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/config"
	"github.com/farmshop/storefront/pkg/auth"
	"gorm.io/gorm"
)

func init() {
	Register("admin", SeedAdmin)
}

// SeedAdmin creates the account named by SEED_ADMIN_EMAIL when it does not
// exist yet. Seeded first on an empty database it receives id 1, which is in
// the default ADMIN_IDS list.
func SeedAdmin(ctx context.Context, db *gorm.DB) error {
	email := config.Get("SEED_ADMIN_EMAIL", "")
	password := config.Get("SEED_ADMIN_PASSWORD", "")
	if email == "" || password == "" {
		return nil
	}

	users := repositories.NewUserRepository(db)
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return users.Create(ctx, &models.User{Email: email, Password: hash})
}
