package kernel_test

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/internal/kernel"
	"github.com/farmshop/storefront/pkg/cache"
	"github.com/farmshop/storefront/pkg/crypt"
	"github.com/farmshop/storefront/pkg/payment"
	"github.com/farmshop/storefront/pkg/queue"
	"github.com/farmshop/storefront/pkg/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const stripeBase = "https://stripe.test"

type shop struct {
	db     *gorm.DB
	kernel *kernel.Kernel
	queue  *queue.MemoryDriver
}

func newShop(t *testing.T) *shop {
	t.Helper()
	box, err := crypt.New("kernel-test-secret")
	require.NoError(t, err)

	s := &shop{db: testkit.NewDB(t), queue: queue.NewMemoryDriver()}
	s.kernel, err = kernel.New(kernel.Config{
		AppURL:        "http://shop.test",
		CheckoutKey:   "paid-xyz",
		WebhookSecret: "whsec",
		Admins:        []uint{1},
		CSRF:          true,
	}, kernel.Deps{
		DB:       s.db,
		Sessions: cache.NewMemory(),
		Box:      box,
		Payments: payment.New("sk_test", stripeBase, "eur"),
		Queue:    queue.NewManager(s.queue),
	})
	require.NoError(t, err)
	t.Cleanup(s.kernel.Close)
	return s
}

func (s *shop) item(t *testing.T, name string, price float64) *models.Goods {
	t.Helper()
	g := &models.Goods{Name: name, PictureLink: "/p.jpg", Price: price, Units: "kg", InStockAmount: 10, Available: true}
	require.NoError(t, repositories.NewGoodsRepository(s.db).Create(context.Background(), g))
	return g
}

func (s *shop) browser(t *testing.T) *testkit.Browser {
	return testkit.NewBrowser(t, s.kernel.Handler())
}

// token fetches a page carrying a form and returns its CSRF token.
func token(t *testing.T, b *testkit.Browser) string {
	t.Helper()
	tok := b.Get("/login").CSRFToken()
	require.NotEmpty(t, tok)
	return tok
}

func signUp(t *testing.T, b *testkit.Browser, email string) {
	t.Helper()
	page := b.PostForm("/register", url.Values{
		"csrf_token": {token(t, b)},
		"email":      {email},
		"password":   {"secret1"},
	})
	require.Equal(t, http.StatusFound, page.Status, page.Body)
	require.Equal(t, "/", page.Location)
}

func addToCart(t *testing.T, b *testkit.Browser, item uint, qty string) {
	t.Helper()
	page := b.PostForm("/", url.Values{
		"csrf_token": {token(t, b)},
		"item_id":    {itoa(item)},
		"quantity":   {qty},
	})
	require.Equal(t, http.StatusFound, page.Status, page.Body)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func stripeMocks(paymentStatus string) *testkit.MockTransport {
	return testkit.NewMockTransport(true).
		On(http.MethodPost, stripeBase+"/v1/products", 200, `{"id":"prod_1"}`).
		On(http.MethodPost, stripeBase+"/v1/prices", 200, `{"id":"price_1"}`).
		On(http.MethodPost, stripeBase+"/v1/checkout/sessions", 200, `{"id":"cs_1","url":"https://pay.test/cs_1"}`).
		On(http.MethodGet, stripeBase+"/v1/checkout/sessions/cs_1", 200,
			`{"id":"cs_1","payment_status":"`+paymentStatus+`","client_reference_id":"1","amount_total":2000}`)
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

func TestAuthFlow(t *testing.T) {
	s := newShop(t)
	b := s.browser(t)

	page := b.PostForm("/login", url.Values{"csrf_token": {token(t, b)}, "email": {"ann@farm.lt"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, "User does not exist, please register.")

	signUp(t, b, "ann@farm.lt")
	home := b.Get("/")
	assert.Contains(t, home.Body, `id="cart-count"`)
	assert.Contains(t, home.Body, "/logout")

	page = b.PostForm("/register", url.Values{"csrf_token": {token(t, b)}, "email": {"ann@farm.lt"}, "password": {"other1"}})
	assert.Contains(t, page.Body, "You have already registered, please log in.")

	page = b.Get("/logout")
	assert.Equal(t, http.StatusFound, page.Status)
	assert.NotContains(t, b.Get("/").Body, `id="cart-count"`)

	page = b.PostForm("/login", url.Values{"csrf_token": {token(t, b)}, "email": {"ann@farm.lt"}, "password": {"wrong1"}})
	assert.Contains(t, page.Body, "Invalid credentials.")

	page = b.PostForm("/login", url.Values{"csrf_token": {token(t, b)}, "email": {"ann@farm.lt"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusFound, page.Status)
	assert.Equal(t, "/", page.Location)
}

func TestRegisterValidation(t *testing.T) {
	s := newShop(t)
	b := s.browser(t)
	cases := []struct {
		email, password, message string
	}{
		{"not-an-email", "", "The password field is required."},
		{"ann@farm.lt", "x", "The password must be at least 6 characters."},
		{"ann@farm.lt", strings.Repeat("p", 81), "The password must not exceed 80 characters."},
		{"a@b", "secret1", "The email must be a valid email address."},
	}
	for _, tc := range cases {
		page := b.PostForm("/register", url.Values{"csrf_token": {token(t, b)}, "email": {tc.email}, "password": {tc.password}})
		assert.Equal(t, http.StatusOK, page.Status, tc.password)
		assert.Contains(t, page.Body, "text-danger", tc.password)
		assert.Contains(t, page.Body, tc.message)
	}

	_, err := repositories.NewUserRepository(s.db).FindByEmail(context.Background(), "ann@farm.lt")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	b := newShop(t).browser(t)
	page := b.PostForm("/login", url.Values{"email": {"ann@farm.lt"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusForbidden, page.Status)
}

// ─── Cart ─────────────────────────────────────────────────────────────────────

func TestCartWorkedExample(t *testing.T) {
	s := newShop(t)
	eggs := s.item(t, "Eggs", 5.00)
	milk := s.item(t, "Milk", 2.50)
	b := s.browser(t)
	signUp(t, b, "ann@farm.lt")

	addToCart(t, b, eggs.ID, "3")
	addToCart(t, b, milk.ID, "2")

	cart := b.Get("/cart")
	require.Equal(t, http.StatusOK, cart.Status)
	assert.Contains(t, cart.Body, `<strong id="to-pay">20.00</strong>`)
	assert.Contains(t, cart.Body, "Eggs")
	assert.Contains(t, cart.Body, `<form method="post" action="/cart_delete/1">`)
	assert.Contains(t, b.Get("/").Body, `<span id="cart-count">2</span>`)

	order, err := repositories.NewOrderRepository(s.db).FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 20.00, order.OrderSum)
	assert.False(t, order.Paid)

	page := b.PostForm("/cart", url.Values{"csrf_token": {token(t, b)}, "id": {"1"}, "item_id": {itoa(eggs.ID)}, "quantity": {"1"}})
	require.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, `<strong id="to-pay">10.00</strong>`)

	page = b.PostForm("/cart_delete/2", url.Values{"csrf_token": {token(t, b)}})
	assert.Equal(t, http.StatusFound, page.Status)
	assert.Equal(t, "/cart", page.Location)
	assert.Contains(t, b.Get("/cart").Body, `<strong id="to-pay">5.00</strong>`)
}

func TestCartRejectsBadQuantity(t *testing.T) {
	s := newShop(t)
	eggs := s.item(t, "Eggs", 5.00)
	b := s.browser(t)
	signUp(t, b, "ann@farm.lt")

	page := b.PostForm("/", url.Values{"csrf_token": {token(t, b)}, "item_id": {itoa(eggs.ID)}, "quantity": {"0"}})
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, b.Get("/cart").Body, `id="cart-empty"`)
}

func TestAnonymousAddToCartRedirectsToLogin(t *testing.T) {
	s := newShop(t)
	eggs := s.item(t, "Eggs", 5.00)
	b := s.browser(t)

	page := b.PostForm("/", url.Values{"csrf_token": {token(t, b)}, "item_id": {itoa(eggs.ID)}, "quantity": {"1"}})
	assert.Equal(t, http.StatusFound, page.Status)
	assert.Equal(t, "/login", page.Location)
	assert.Contains(t, b.Get("/login").Body, "Please log in to add items to your cart.")
}

func TestCartDeleteIsScopedToOwner(t *testing.T) {
	s := newShop(t)
	eggs := s.item(t, "Eggs", 5.00)

	ann := s.browser(t)
	signUp(t, ann, "ann@farm.lt")
	addToCart(t, ann, eggs.ID, "1")

	bob := s.browser(t)
	signUp(t, bob, "bob@farm.lt")
	addToCart(t, bob, eggs.ID, "1")

	assert.Equal(t, http.StatusNotFound, bob.Get("/cart_delete/1").Status, "ann's line")
	assert.Equal(t, http.StatusNotFound, bob.Get("/cart_delete/99").Status)
	assert.Contains(t, ann.Get("/cart").Body, `<strong id="to-pay">5.00</strong>`)
}

// ─── Admin ────────────────────────────────────────────────────────────────────

func TestAdminPagesRequireAdmin(t *testing.T) {
	s := newShop(t)
	s.item(t, "Eggs", 5.00)

	admin := s.browser(t)
	signUp(t, admin, "admin@farm.lt")
	customer := s.browser(t)
	signUp(t, customer, "ann@farm.lt")
	anonymous := s.browser(t)

	for _, path := range []string{"/manager", "/edit/1", "/add", "/orders", "/order_finished/1"} {
		assert.Equal(t, http.StatusForbidden, customer.Get(path).Status, path)
		assert.Equal(t, http.StatusForbidden, anonymous.Get(path).Status, path)
	}
	assert.Equal(t, http.StatusOK, admin.Get("/manager").Status)
	assert.Equal(t, http.StatusOK, admin.Get("/orders").Status)
	assert.Equal(t, http.StatusNotFound, admin.Get("/edit/42").Status)
}

func TestAdminAddAndEditGoods(t *testing.T) {
	s := newShop(t)
	b := s.browser(t)
	signUp(t, b, "admin@farm.lt")

	form := url.Values{
		"csrf_token":      {token(t, b)},
		"name":            {"Honey"},
		"description":     {"Meadow honey"},
		"price":           {"12.5"},
		"units":           {"kg"},
		"in_stock_amount": {"3"},
		"available":       {"true"},
	}
	page := b.PostForm("/add", form)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, "Add a picture link or upload a picture.")

	form.Set("picture_link", "https://cdn.farm.lt/honey.jpg")
	page = b.PostForm("/add", form)
	require.Equal(t, http.StatusFound, page.Status, page.Body)
	assert.Equal(t, "/manager", page.Location)
	assert.Contains(t, b.Get("/manager").Body, "Honey")

	form.Set("price", "13")
	page = b.PostForm("/edit/1", form)
	require.Equal(t, http.StatusFound, page.Status, page.Body)
	g, err := repositories.NewGoodsRepository(s.db).FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 13.0, g.Price)

	form.Set("price", "-1")
	page = b.PostForm("/edit/1", form)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, "text-danger")

	form.Set("price", "13")
	form.Set("name", "Jam")
	page = b.PostForm("/edit/1", form)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, "The name must be at least 4 characters.")

	form.Set("name", "Honey")
	form.Set("description", "")
	page = b.PostForm("/add", form)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, "The description field is required.")

	form.Set("description", "Raw")
	page = b.PostForm("/add", form)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, "The description must be at least 4 characters.")

	items, err := repositories.NewGoodsRepository(s.db).All(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Honey", items[0].Name)
}

// ─── Checkout ─────────────────────────────────────────────────────────────────

// checkout fills ann's cart and starts a payment session, returning the
// success URL path the processor would redirect to.
func checkout(t *testing.T, s *shop, b *testkit.Browser, mt *testkit.MockTransport) string {
	t.Helper()
	signUp(t, b, "admin@farm.lt")
	addToCart(t, b, s.item(t, "Eggs", 5.00).ID, "3")
	addToCart(t, b, s.item(t, "Milk", 2.50).ID, "2")

	page := b.PostForm("/create-checkout-session", url.Values{"csrf_token": {token(t, b)}})
	require.Equal(t, http.StatusSeeOther, page.Status, page.Body)
	assert.Equal(t, "https://pay.test/cs_1", page.Location)

	var success string
	for _, c := range mt.Calls() {
		if strings.HasSuffix(c.URL, "/v1/checkout/sessions") {
			form, err := url.ParseQuery(c.Body)
			require.NoError(t, err)
			success = form.Get("success_url")
		}
	}
	require.True(t, strings.HasPrefix(success, "http://shop.test/paid-xyz?"), success)
	u, err := url.Parse(strings.Replace(success, "{CHECKOUT_SESSION_ID}", "cs_1", 1))
	require.NoError(t, err)
	return u.RequestURI()
}

func TestCheckoutPaid(t *testing.T) {
	mt := stripeMocks("paid").Install(t)
	s := newShop(t)
	b := s.browser(t)
	back := checkout(t, s, b, mt)

	page := b.Get(back)
	assert.Equal(t, http.StatusFound, page.Status)
	assert.Equal(t, "/success", page.Location)
	assert.Equal(t, http.StatusOK, b.Get("/success").Status)

	order, err := repositories.NewOrderRepository(s.db).FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, order.Paid)
	assert.Equal(t, 20.00, order.OrderSum)
	assert.Contains(t, b.Get("/cart").Body, `id="cart-empty"`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	job, err := s.queue.Pop(ctx)
	require.NoError(t, err, "paid order queues a customer mail")
	assert.Contains(t, string(job), "OrderMail")

	orders := b.Get("/orders")
	assert.Contains(t, orders.Body, "admin@farm.lt")
	assert.Contains(t, orders.Body, `<form method="post" action="/order_finished/1">`)
	page = b.PostForm("/order_finished/1", url.Values{"csrf_token": {orders.CSRFToken()}})
	assert.Equal(t, http.StatusFound, page.Status)
	assert.Equal(t, "/orders", page.Location)
	assert.Contains(t, b.Get("/orders").Body, "No orders waiting.")
}

func TestCheckoutUnpaidReturn(t *testing.T) {
	mt := stripeMocks("unpaid").Install(t)
	s := newShop(t)
	b := s.browser(t)
	back := checkout(t, s, b, mt)

	page := b.Get(back)
	assert.Equal(t, http.StatusFound, page.Status)
	assert.Equal(t, "/cart", page.Location)
	assert.Contains(t, b.Get("/cart").Body, "Payment has not been confirmed yet.")
}

func TestCheckoutRefusesCartChangedAfterStart(t *testing.T) {
	mt := stripeMocks("paid").Install(t)
	s := newShop(t)
	b := s.browser(t)
	back := checkout(t, s, b, mt)

	addToCart(t, b, s.item(t, "Caviar", 500.00).ID, "1")

	page := b.Get(back)
	assert.Equal(t, http.StatusFound, page.Status)
	assert.Equal(t, "/cart", page.Location)
	assert.Contains(t, b.Get("/cart").Body, "Your cart changed after checkout started.")

	order, err := repositories.NewOrderRepository(s.db).FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, order.Paid)
	assert.Equal(t, int64(2000), order.CheckoutAmount)
}

func TestCheckoutProcessorError(t *testing.T) {
	testkit.NewMockTransport(true).
		On(http.MethodPost, stripeBase+"/v1/products", 401, `{"error":{"message":"Invalid API Key provided"}}`).
		Install(t)
	s := newShop(t)
	b := s.browser(t)
	signUp(t, b, "ann@farm.lt")
	addToCart(t, b, s.item(t, "Eggs", 5.00).ID, "1")

	page := b.PostForm("/create-checkout-session", url.Values{"csrf_token": {token(t, b)}})
	assert.Equal(t, http.StatusBadGateway, page.Status)
	assert.Equal(t, "Invalid API Key provided", page.Body)
}

func TestCheckoutEmptyCart(t *testing.T) {
	b := newShop(t).browser(t)
	signUp(t, b, "ann@farm.lt")

	page := b.PostForm("/create-checkout-session", url.Values{"csrf_token": {token(t, b)}})
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, `id="cart-empty"`)
}

func TestWebhook(t *testing.T) {
	mt := stripeMocks("paid").Install(t)
	s := newShop(t)
	checkout(t, s, s.browser(t), mt)

	hook := s.browser(t)
	payload := `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_status":"paid","client_reference_id":"1","amount_total":2000}}}`
	post := func(sig string) *testkit.Page {
		req, err := http.NewRequest(http.MethodPost, hook.URL("/webhooks/stripe"), strings.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Stripe-Signature", sig)
		return hook.Do(req)
	}

	assert.Equal(t, http.StatusBadRequest, post("t=1,v1=bad").Status)

	page := post(payment.SignatureHeader([]byte(payload), "whsec", time.Now()))
	assert.Equal(t, http.StatusOK, page.Status)
	assert.JSONEq(t, `{"status":200,"data":{"received":true}}`, page.Body)

	order, err := repositories.NewOrderRepository(s.db).FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, order.Paid)
}

// ─── API ──────────────────────────────────────────────────────────────────────

func TestHealthAndMetrics(t *testing.T) {
	b := newShop(t).browser(t)

	page := b.Get("/healthz")
	assert.Equal(t, http.StatusOK, page.Status)
	assert.JSONEq(t, `{"status":200,"data":{"status":"ok"}}`, page.Body)

	page = b.Get("/metrics")
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, "farmshop_http_requests_total")
}

func TestGraphQLScenarios(t *testing.T) {
	s := newShop(t)
	s.item(t, "Eggs", 5.00)
	hidden := s.item(t, "Honey", 12.00)
	hidden.Available = false
	require.NoError(t, repositories.NewGoodsRepository(s.db).Update(context.Background(), hidden))

	testkit.RunDir(t, s.kernel.Handler(), "testdata")
}

func TestUnknownRoute(t *testing.T) {
	b := newShop(t).browser(t)
	page := b.Get("/nope")
	assert.Equal(t, http.StatusNotFound, page.Status)
	assert.Contains(t, page.Body, "Not Found")
}
