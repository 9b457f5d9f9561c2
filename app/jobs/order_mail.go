// Package jobs holds the storefront's queued background jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/pkg/event"
	"github.com/farmshop/storefront/pkg/mail"
	"github.com/farmshop/storefront/pkg/queue"
)

// Deps are shared by every job instance. Set once with Register.
type Deps struct {
	Orders *repositories.OrderRepository
	Users  *repositories.UserRepository
	Mailer mail.Sender
}

var deps Deps

// Register installs deps and makes the job types known to m.
func Register(m *queue.Manager, d Deps) {
	deps = d
	m.Register(func() queue.Job { return &OrderMail{} })
}

var orderMail = template.Must(template.New("order").Parse(`<p>Hello,</p>
{{if eq .Event "order.paid"}}<p>We received your payment for order #{{.OrderID}} ({{printf "%.2f" .Sum}}). We will let you know when it is on its way.</p>
{{else}}<p>Your order #{{.OrderID}} has been packed and is ready.</p>
{{end}}<p>Thank you for shopping with us.</p>
`))

// OrderMail tells the customer about an order state change.
type OrderMail struct {
	OrderID uint   `json:"order_id"`
	Event   string `json:"event"`
}

func (j *OrderMail) Handle(ctx context.Context) error {
	if deps.Orders == nil || deps.Users == nil || deps.Mailer == nil {
		return errors.New("jobs: dependencies not registered")
	}
	order, err := deps.Orders.FindByID(ctx, j.OrderID)
	if errors.Is(err, repositories.ErrNotFound) {
		// order was deleted; nothing to tell
		return nil
	}
	if err != nil {
		return err
	}
	user, err := deps.Users.FindByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("jobs: order %d owner: %w", order.ID, err)
	}

	subject := fmt.Sprintf("Order #%d is paid", order.ID)
	if j.Event == event.OrderFinished {
		subject = fmt.Sprintf("Order #%d is ready", order.ID)
	}
	msg := mail.To(user.Email).WithSubject(subject).Template(orderMail, map[string]any{
		"OrderID": order.ID,
		"Event":   j.Event,
		"Sum":     order.OrderSum,
	})
	return deps.Mailer.Send(ctx, msg)
}
