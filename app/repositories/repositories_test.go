package repositories_test

import (
	"context"
	"sync"
	"testing"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/pkg/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Password: "x"}
	require.NoError(t, repositories.NewUserRepository(db).Create(context.Background(), u))
	return u
}

func seedGoods(t *testing.T, db *gorm.DB, name string, price float64, available bool) *models.Goods {
	t.Helper()
	g := &models.Goods{Name: name, PictureLink: "/p.jpg", Price: price, Units: "kg", Available: available}
	require.NoError(t, repositories.NewGoodsRepository(db).Create(context.Background(), g))
	return g
}

func TestUserRepository(t *testing.T) {
	db := testkit.NewDB(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "a@farm.lt")
	assert.NotZero(t, u.ID)

	got, err := repo.FindByEmail(ctx, "a@farm.lt")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.FindByEmail(ctx, "missing@farm.lt")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	err = repo.Create(ctx, &models.User{Email: "a@farm.lt", Password: "y"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
}

func TestGoodsRepository_AllAndFilter(t *testing.T) {
	db := testkit.NewDB(t)
	repo := repositories.NewGoodsRepository(db)
	ctx := context.Background()

	seedGoods(t, db, "Milk", 1.5, true)
	seedGoods(t, db, "Honey", 12, false)

	all, err := repo.All(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	visible, err := repo.All(ctx, true)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "Milk", visible[0].Name)
}

func TestGoodsRepository_UpdateWritesFalse(t *testing.T) {
	db := testkit.NewDB(t)
	repo := repositories.NewGoodsRepository(db)
	ctx := context.Background()

	g := seedGoods(t, db, "Milk", 1.5, true)
	g.Available = false
	g.InStockAmount = 0
	g.Price = 2
	require.NoError(t, repo.Update(ctx, g))

	got, err := repo.FindByID(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.Equal(t, 2.0, got.Price)

	_, err = repo.FindByID(ctx, 404)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestOrderRepository_FindOrCreateOpen(t *testing.T) {
	db := testkit.NewDB(t)
	repo := repositories.NewOrderRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "a@farm.lt")

	_, err := repo.FindOpen(ctx, u.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	first, err := repo.FindOrCreateOpen(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, first.Paid)
	assert.False(t, first.Finished)
	require.NotNil(t, first.OpenKey)
	assert.Equal(t, u.ID, *first.OpenKey)

	again, err := repo.FindOrCreateOpen(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestOrderRepository_FindOrCreateOpen_Concurrent(t *testing.T) {
	db := testkit.NewDB(t)
	repo := repositories.NewOrderRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "a@farm.lt")

	const n = 8
	ids := make([]uint, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := repo.FindOrCreateOpen(ctx, u.ID)
			if assert.NoError(t, err) {
				ids[i] = o.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	db.Model(&models.Order{}).Where("user_id = ? AND paid = ?", u.ID, false).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestOrderRepository_OpenKeyIsUnique(t *testing.T) {
	db := testkit.NewDB(t)
	u := seedUser(t, db, "a@farm.lt")
	key := u.ID

	require.NoError(t, db.Create(&models.Order{UserID: u.ID, OpenKey: &key}).Error)
	err := db.Create(&models.Order{UserID: u.ID, OpenKey: &key}).Error
	assert.Error(t, err)
}

func TestOrderRepository_MarkPaid(t *testing.T) {
	db := testkit.NewDB(t)
	repo := repositories.NewOrderRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "a@farm.lt")

	o, err := repo.FindOrCreateOpen(ctx, u.ID)
	require.NoError(t, err)

	changed, err := repo.MarkPaid(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkPaid(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, changed, "second call is a no-op")

	paid, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	assert.Nil(t, paid.OpenKey)

	// the open slot is free again
	next, err := repo.FindOrCreateOpen(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, o.ID, next.ID)

	_, err = repo.MarkPaid(ctx, 999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestOrderRepository_ActiveAndFinish(t *testing.T) {
	db := testkit.NewDB(t)
	orders := repositories.NewOrderRepository(db)
	cart := repositories.NewCartRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "a@farm.lt")
	g := seedGoods(t, db, "Milk", 1.5, true)

	o, err := orders.FindOrCreateOpen(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, cart.Add(ctx, &models.CartLine{OrderID: o.ID, ItemID: g.ID, Quantity: 2, TotalSum: 3}))

	active, err := orders.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "open orders are not active")

	_, err = orders.MarkPaid(ctx, o.ID)
	require.NoError(t, err)

	active, err = orders.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a@farm.lt", active[0].User.Email)
	require.Len(t, active[0].Lines, 1)
	assert.Equal(t, "Milk", active[0].Lines[0].Item.Name)

	n, err := orders.CountActive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, orders.MarkFinished(ctx, o.ID))
	n, _ = orders.CountActive(ctx)
	assert.Zero(t, n)

	assert.ErrorIs(t, orders.MarkFinished(ctx, 999), repositories.ErrNotFound)
}

func TestOrderRepository_MarkFinishedIgnoresPaidState(t *testing.T) {
	db := testkit.NewDB(t)
	orders := repositories.NewOrderRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "a@farm.lt")

	o, err := orders.FindOrCreateOpen(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, orders.MarkFinished(ctx, o.ID))

	got, _ := orders.FindByID(ctx, o.ID)
	assert.True(t, got.Finished)
	assert.False(t, got.Paid)
}

func TestOrderRepository_SettersAndDelete(t *testing.T) {
	db := testkit.NewDB(t)
	orders := repositories.NewOrderRepository(db)
	cart := repositories.NewCartRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "a@farm.lt")
	g := seedGoods(t, db, "Milk", 1.5, true)

	o, _ := orders.FindOrCreateOpen(ctx, u.ID)
	require.NoError(t, orders.SetSum(ctx, o.ID, 20))
	require.NoError(t, orders.SetCheckoutSession(ctx, o.ID, "cs_1", 2000))
	require.NoError(t, cart.Add(ctx, &models.CartLine{OrderID: o.ID, ItemID: g.ID, Quantity: 1, TotalSum: 1.5}))

	got, _ := orders.FindByID(ctx, o.ID)
	assert.Equal(t, 20.0, got.OrderSum)
	assert.Equal(t, "cs_1", got.CheckoutSessionID)
	assert.Equal(t, int64(2000), got.CheckoutAmount)

	require.NoError(t, orders.Delete(ctx, o.ID))
	n, _ := cart.Count(ctx, o.ID)
	assert.Zero(t, n)
	assert.ErrorIs(t, orders.Delete(ctx, o.ID), repositories.ErrNotFound)
}

func TestCartRepository_ScopedToOrder(t *testing.T) {
	db := testkit.NewDB(t)
	orders := repositories.NewOrderRepository(db)
	cart := repositories.NewCartRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice@farm.lt")
	bob := seedUser(t, db, "bob@farm.lt")
	g := seedGoods(t, db, "Milk", 1.5, true)

	ao, _ := orders.FindOrCreateOpen(ctx, alice.ID)
	bo, _ := orders.FindOrCreateOpen(ctx, bob.ID)

	line := &models.CartLine{OrderID: ao.ID, ItemID: g.ID, Quantity: 2, TotalSum: 3}
	require.NoError(t, cart.Add(ctx, line))

	got, err := cart.Find(ctx, ao.ID, line.ID)
	require.NoError(t, err)
	assert.Equal(t, "Milk", got.Item.Name)

	_, err = cart.Find(ctx, bo.ID, line.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, cart.Delete(ctx, bo.ID, line.ID), repositories.ErrNotFound)

	line.Quantity = 5
	line.TotalSum = 7.5
	require.NoError(t, cart.UpdateQuantity(ctx, line))

	lines, err := cart.Lines(ctx, ao.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, 7.5, lines[0].TotalSum)

	require.NoError(t, cart.Delete(ctx, ao.ID, line.ID))
	n, _ := cart.Count(ctx, ao.ID)
	assert.Zero(t, n)
}
