package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
)

// Webhook event types consumed by the reconciler.
const (
	TypeCheckoutCompleted    = "checkout.session.completed"
	TypeInvoicePaid          = "invoice.payment_succeeded"
	TypeInvoiceFailed        = "invoice.payment_failed"
	TypeSubscriptionCanceled = "customer.subscription.deleted"
)

var ErrMalformedEvent = errors.New("malformed billing event")

// Event is one of CheckoutCompleted, InvoicePaid, InvoiceFailed,
// SubscriptionCanceled or Unrecognized.
type Event interface {
	EventID() string
	Kind() string
	isEvent()
}

type CheckoutCompleted struct {
	ID             string
	UserID         string // metadata.user_id, may be empty
	SubscriptionID string
	CustomerID     string
}

type InvoicePaid struct {
	ID             string
	SubscriptionID string
}

type InvoiceFailed struct {
	ID             string
	SubscriptionID string
}

type SubscriptionCanceled struct {
	ID               string
	SubscriptionID   string
	CurrentPeriodEnd time.Time
}

type Unrecognized struct {
	ID   string
	Type string
}

func (e CheckoutCompleted) EventID() string    { return e.ID }
func (e InvoicePaid) EventID() string          { return e.ID }
func (e InvoiceFailed) EventID() string        { return e.ID }
func (e SubscriptionCanceled) EventID() string { return e.ID }
func (e Unrecognized) EventID() string         { return e.ID }

func (CheckoutCompleted) Kind() string    { return TypeCheckoutCompleted }
func (InvoicePaid) Kind() string          { return TypeInvoicePaid }
func (InvoiceFailed) Kind() string        { return TypeInvoiceFailed }
func (SubscriptionCanceled) Kind() string { return TypeSubscriptionCanceled }
func (e Unrecognized) Kind() string       { return e.Type }

func (CheckoutCompleted) isEvent()    {}
func (InvoicePaid) isEvent()          {}
func (InvoiceFailed) isEvent()        {}
func (SubscriptionCanceled) isEvent() {}
func (Unrecognized) isEvent()         {}

// DecodeEvent maps a verified processor event onto the closed set of kinds.
// Missing identifiers are left empty; deciding whether that is fatal belongs
// to the handler.
func DecodeEvent(event stripe.Event) (Event, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		if isHandled(string(event.Type)) {
			return nil, fmt.Errorf("%w: %s has no data", ErrMalformedEvent, event.Type)
		}
		return Unrecognized{ID: event.ID, Type: string(event.Type)}, nil
	}

	switch string(event.Type) {
	case TypeCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out := CheckoutCompleted{ID: event.ID, UserID: sess.Metadata["user_id"]}
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}
		return out, nil

	case TypeInvoicePaid, TypeInvoiceFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		subID := ""
		if inv.Subscription != nil {
			subID = inv.Subscription.ID
		}
		if string(event.Type) == TypeInvoicePaid {
			return InvoicePaid{ID: event.ID, SubscriptionID: subID}, nil
		}
		return InvoiceFailed{ID: event.ID, SubscriptionID: subID}, nil

	case TypeSubscriptionCanceled:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return SubscriptionCanceled{
			ID:               event.ID,
			SubscriptionID:   sub.ID,
			CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		}, nil
	}

	return Unrecognized{ID: event.ID, Type: string(event.Type)}, nil
}

func isHandled(eventType string) bool {
	switch eventType {
	case TypeCheckoutCompleted, TypeInvoicePaid, TypeInvoiceFailed, TypeSubscriptionCanceled:
		return true
	}
	return false
}
