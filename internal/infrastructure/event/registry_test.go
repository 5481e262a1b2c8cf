package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	t.Run("specific types", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler()
		r.Register(h, "PaymentRecorded", "InvoicePaid")

		assert.Equal(t, []any{h}, toAny(r.GetHandlers("PaymentRecorded")))
		assert.Len(t, r.GetHandlers("InvoicePaid"), 1)
		assert.Empty(t, r.GetHandlers("InvoiceSent"))
	})

	t.Run("wildcard receives every type", func(t *testing.T) {
		r := NewHandlerRegistry()
		specific := newTestHandler()
		wildcard := newTestHandler()
		r.Register(specific, "InvoiceSent")
		r.Register(wildcard)

		assert.Len(t, r.GetHandlers("InvoiceSent"), 2)
		assert.Len(t, r.GetHandlers("AnythingElse"), 1)
	})

	t.Run("duplicate registration is ignored", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler()
		r.Register(h, "InvoiceSent")
		r.Register(h, "InvoiceSent")
		r.Register(h)
		r.Register(h)

		assert.Len(t, r.GetHandlers("InvoiceSent"), 2)
		assert.Equal(t, 1, r.Len())
	})
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	r := NewHandlerRegistry()
	a := newTestHandler()
	b := newTestHandler()
	r.Register(a, "InvoiceSent", "InvoicePaid")
	r.Register(b, "InvoiceSent")
	r.Register(a)
	assert.Equal(t, 2, r.Len())

	r.Unregister(a)

	assert.Len(t, r.GetHandlers("InvoiceSent"), 1)
	assert.Empty(t, r.GetHandlers("InvoicePaid"))
	assert.Equal(t, 1, r.Len())

	r.Unregister(b)
	assert.Equal(t, 0, r.Len())
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
