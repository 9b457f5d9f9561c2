package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/pkg/auth"
	"github.com/farmshop/storefront/pkg/event"
	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/metrics"
	"github.com/farmshop/storefront/pkg/payment"
)

const checkoutStateTTL = 2 * time.Hour

// CheckoutConfig holds the URLs and secrets of the payment round trip.
type CheckoutConfig struct {
	AppURL        string // public base URL, no trailing slash
	CheckoutKey   string // path segment of the success callback
	WebhookSecret string
}

// CheckoutService hands the open order to the payment processor and marks
// it paid once the processor confirms.
type CheckoutService struct {
	orders *repositories.OrderRepository
	carts  *repositories.CartRepository
	pay    *payment.Client
	bus    *event.Bus
	cfg    CheckoutConfig
}

func NewCheckoutService(
	orders *repositories.OrderRepository,
	carts *repositories.CartRepository,
	pay *payment.Client,
	bus *event.Bus,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{orders: orders, carts: carts, pay: pay, bus: bus, cfg: cfg}
}

// Start creates a processor product, price and checkout session for the
// user's open order and returns the hosted payment page URL.
func (s *CheckoutService) Start(ctx context.Context, user *auth.Principal) (string, error) {
	order, err := s.orders.FindOpen(ctx, user.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", ErrNoOpenOrder
	}
	if err != nil {
		return "", err
	}
	lines, err := s.carts.Lines(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", ErrEmptyCart
	}
	total := Total(lines)
	if err := s.orders.SetSum(ctx, order.ID, total); err != nil {
		return "", err
	}

	state, err := auth.IssueCheckoutState(order.ID, user.ID, checkoutStateTTL)
	if err != nil {
		return "", fmt.Errorf("checkout: sign state: %w", err)
	}

	sess, err := s.createSession(ctx, order, total, user.Email, state)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("error").Inc()
		return "", &ProcessorError{Err: err}
	}
	metrics.CheckoutSessions.WithLabelValues("created").Inc()

	if err := s.orders.SetCheckoutSession(ctx, order.ID, sess.ID, payment.Cents(total)); err != nil {
		return "", err
	}
	logger.WithCtx(ctx).Info("checkout: session created", "order_id", order.ID, "session_id", sess.ID, "total", total)
	return sess.URL, nil
}

func (s *CheckoutService) createSession(ctx context.Context, order *models.Order, total float64, email, state string) (*payment.CheckoutSession, error) {
	product, err := s.pay.CreateProduct(ctx, fmt.Sprintf("Order #%d", order.ID))
	if err != nil {
		return nil, err
	}
	price, err := s.pay.CreatePrice(ctx, product.ID, payment.Cents(total))
	if err != nil {
		return nil, err
	}
	return s.pay.CreateCheckoutSession(ctx, payment.CheckoutParams{
		PriceID:           price.ID,
		ClientReferenceID: strconv.FormatUint(uint64(order.ID), 10),
		CustomerEmail:     email,
		SuccessURL:        s.SuccessURL() + "?session_id={CHECKOUT_SESSION_ID}&state=" + state,
		CancelURL:         s.cfg.AppURL + "/cancel",
	})
}

// SuccessURL is the callback the processor redirects to after payment.
func (s *CheckoutService) SuccessURL() string {
	return s.cfg.AppURL + "/" + s.cfg.CheckoutKey
}

// ConfirmReturn handles the success redirect. The open order is marked paid
// only when the session id is the one stored on it, the signed state was
// issued for this order and user, the processor reports it paid and the
// charged amount still covers the cart.
func (s *CheckoutService) ConfirmReturn(ctx context.Context, userID uint, sessionID, state string) error {
	order, err := s.orders.FindOpen(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNoOpenOrder
	}
	if err != nil {
		return err
	}

	log := logger.WithCtx(ctx).With("order_id", order.ID)
	if sessionID == "" || sessionID != order.CheckoutSessionID {
		log.Warn("checkout: session id does not match order", "session_id", sessionID)
		return ErrPaymentNotConfirmed
	}
	if err := auth.VerifyCheckoutState(state, order.ID, userID); err != nil {
		log.Warn("checkout: bad state token", "error", err)
		return ErrPaymentNotConfirmed
	}

	sess, err := s.pay.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		log.Error("checkout: retrieve session", "error", err)
		return ErrPaymentNotConfirmed
	}
	if !sess.Paid() || sess.ClientReferenceID != strconv.FormatUint(uint64(order.ID), 10) {
		log.Info("checkout: session not paid", "payment_status", sess.PaymentStatus)
		return ErrPaymentNotConfirmed
	}
	if err := s.checkAmount(ctx, order, sess); err != nil {
		return err
	}
	return s.markPaid(ctx, order.ID, "callback")
}

// HandleWebhook processes a signed processor event. Events other than a
// paid, completed checkout session are acknowledged and ignored.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := payment.VerifyWebhook(payload, signature, s.cfg.WebhookSecret, payment.DefaultTolerance)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	log := logger.WithCtx(ctx).With("event_id", ev.ID, "event_type", ev.Type)

	switch ev.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		log.Debug("checkout: webhook ignored")
		return nil
	}

	sess, err := ev.CheckoutSession()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	if !sess.Paid() {
		log.Info("checkout: webhook session not paid yet", "session_id", sess.ID)
		return nil
	}

	id, err := strconv.ParseUint(sess.ClientReferenceID, 10, 64)
	if err != nil || id == 0 {
		log.Warn("checkout: webhook without order reference", "session_id", sess.ID)
		return nil
	}
	order, err := s.orders.FindByID(ctx, uint(id))
	if errors.Is(err, repositories.ErrNotFound) {
		log.Warn("checkout: webhook for unknown order", "order_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if order.CheckoutSessionID != sess.ID {
		log.Warn("checkout: webhook session does not match order", "order_id", id, "session_id", sess.ID)
		return nil
	}
	if err := s.checkAmount(ctx, order, sess); errors.Is(err, ErrCartChanged) {
		return nil
	} else if err != nil {
		return err
	}
	return s.markPaid(ctx, order.ID, "webhook")
}

// checkAmount rejects a session whose charged amount differs from what was
// stored at Start or from the order's current lines. The order stays open
// for editing while the customer is on the payment page.
func (s *CheckoutService) checkAmount(ctx context.Context, order *models.Order, sess *payment.CheckoutSession) error {
	lines, err := s.carts.Lines(ctx, order.ID)
	if err != nil {
		return err
	}
	due := payment.Cents(Total(lines))
	if due != order.CheckoutAmount || sess.AmountTotal != order.CheckoutAmount {
		logger.WithCtx(ctx).Error("checkout: paid amount does not cover order",
			"order_id", order.ID, "session_id", sess.ID,
			"charged", sess.AmountTotal, "started", order.CheckoutAmount, "due", due)
		metrics.CheckoutSessions.WithLabelValues("amount_mismatch").Inc()
		return ErrCartChanged
	}
	return nil
}

// markPaid is idempotent; only the call that flips the flag fires the event.
func (s *CheckoutService) markPaid(ctx context.Context, orderID uint, source string) error {
	changed, err := s.orders.MarkPaid(ctx, orderID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	metrics.OrdersPaid.WithLabelValues(source).Inc()
	logger.WithCtx(ctx).Info("checkout: order paid", "order_id", orderID, "source", source)

	if s.bus != nil {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		s.bus.Fire(ctx, event.Event{Name: event.OrderPaid, OrderID: order.ID, UserID: order.UserID, Sum: order.OrderSum})
	}
	return nil
}
