package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func stripeEvent(t *testing.T, id, eventType, object string) stripe.Event {
	t.Helper()

	raw := `{"id":"` + id + `","object":"event","type":"` + eventType + `","data":{"object":` + object + `}}`
	var event stripe.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		object string
		want   Event
	}{
		{
			name:   "checkout completed",
			typ:    TypeCheckoutCompleted,
			object: `{"id":"cs_1","object":"checkout.session","customer":"cus_1","subscription":"sub_1","metadata":{"user_id":"42"}}`,
			want:   CheckoutCompleted{ID: "evt_1", UserID: "42", SubscriptionID: "sub_1", CustomerID: "cus_1"},
		},
		{
			name:   "checkout without metadata",
			typ:    TypeCheckoutCompleted,
			object: `{"id":"cs_1","object":"checkout.session","subscription":"sub_1"}`,
			want:   CheckoutCompleted{ID: "evt_1", SubscriptionID: "sub_1"},
		},
		{
			name:   "invoice paid",
			typ:    TypeInvoicePaid,
			object: `{"id":"in_1","object":"invoice","subscription":"sub_1"}`,
			want:   InvoicePaid{ID: "evt_1", SubscriptionID: "sub_1"},
		},
		{
			name:   "invoice failed",
			typ:    TypeInvoiceFailed,
			object: `{"id":"in_1","object":"invoice","subscription":"sub_2"}`,
			want:   InvoiceFailed{ID: "evt_1", SubscriptionID: "sub_2"},
		},
		{
			name:   "subscription canceled",
			typ:    TypeSubscriptionCanceled,
			object: `{"id":"sub_3","object":"subscription","current_period_end":1700000000}`,
			want:   SubscriptionCanceled{ID: "evt_1", SubscriptionID: "sub_3", CurrentPeriodEnd: time.Unix(1700000000, 0).UTC()},
		},
		{
			name:   "unrecognized",
			typ:    "customer.created",
			object: `{"id":"cus_1","object":"customer"}`,
			want:   Unrecognized{ID: "evt_1", Type: "customer.created"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent(stripeEvent(t, "evt_1", tt.typ, tt.object))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "evt_1", got.EventID())
			assert.Equal(t, tt.typ, got.Kind())
		})
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	event := stripeEvent(t, "evt_1", TypeInvoicePaid, `{"id":"in_1","object":"invoice","subscription":12}`)

	_, err := DecodeEvent(event)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestDecodeEvent_MissingData(t *testing.T) {
	_, err := DecodeEvent(stripe.Event{ID: "evt_1", Type: TypeInvoicePaid})
	assert.ErrorIs(t, err, ErrMalformedEvent)

	got, err := DecodeEvent(stripe.Event{ID: "evt_2", Type: "ping"})
	require.NoError(t, err)
	assert.Equal(t, Unrecognized{ID: "evt_2", Type: "ping"}, got)
}
