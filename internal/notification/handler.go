// Package notification turns order lifecycle events into customer email.
package notification

import (
	"context"
	"log"

	"github.com/Zuhair246/kitab4u-sub000/internal/domain/user"
	"github.com/Zuhair246/kitab4u-sub000/internal/email"
	"github.com/Zuhair246/kitab4u-sub000/internal/events"
)

// UserLookup resolves a user id to an account; satisfied by the store.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*user.User, error)
}

type Handler struct {
	emailService *email.Service
	users        UserLookup
}

func NewHandler(emailSvc *email.Service, users UserLookup) *Handler {
	return &Handler{emailService: emailSvc, users: users}
}

// HandleEvent dispatches one event to the matching mail template. Lookup
// failures are logged and swallowed so one bad event doesn't wedge the
// consumer group.
func (h *Handler) HandleEvent(ctx context.Context, ev events.Event) error {
	u, err := h.users.GetUserByID(ctx, ev.UserID)
	if err != nil {
		log.Printf("[Notifier] Unknown user %s on event %s, skipping", ev.UserID, ev.ID)
		return nil
	}

	switch ev.Type {
	case events.TypeOrderPlaced:
		items := make([]email.OrderItem, len(ev.Items))
		for i, it := range ev.Items {
			items[i] = email.OrderItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
		}
		return h.emailService.SendOrderConfirmation(u.Email, ev.OrderID, ev.Amount, items)

	case events.TypeOrderCancelled:
		return h.emailService.SendOrderCancelled(u.Email, ev.OrderID, ev.Amount)

	case events.TypeRefundIssued:
		return h.emailService.SendRefundNotice(u.Email, ev.OrderID, ev.Amount)

	case events.TypeReturnRequested:
		return h.emailService.SendReturnUpdate(u.Email, ev.OrderID,
			"We received your return request. You'll hear from us once it has been reviewed.")

	case events.TypeReturnDecided:
		detail := ev.Detail
		if detail == "" {
			detail = "Your return request has been reviewed."
		}
		return h.emailService.SendReturnUpdate(u.Email, ev.OrderID, detail)

	case events.TypeOTPRequested:
		return h.emailService.SendOTP(u.Email, ev.Detail)
	}

	log.Printf("[Notifier] Ignoring event type %q", ev.Type)
	return nil
}
