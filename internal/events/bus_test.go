package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(nil, 0)

	var order []string
	_, err := bus.Subscribe(func(Event) { order = append(order, "store") }, AppShutdown)
	require.NoError(t, err)
	_, err = bus.Subscribe(func(Event) { order = append(order, "all") })
	require.NoError(t, err)
	_, err = bus.Subscribe(func(Event) { order = append(order, "close-only") }, AppClose)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(AppShutdown, Shutdown{Reason: ReasonInterrupt}))
	assert.Equal(t, []string{"store", "all"}, order)
}

func TestPublishRejectsUnknownType(t *testing.T) {
	bus := NewBus(nil, 0)
	err := bus.Publish(Type("window-exploded"), Close{})
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = bus.Subscribe(func(Event) {}, Type("nope"))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestPublishRejectsMismatchedPayload(t *testing.T) {
	bus := NewBus(nil, 0)

	tests := []struct {
		name    string
		typ     Type
		payload any
	}{
		{"close as shutdown", AppShutdown, Close{}},
		{"pointer payload", AppClose, &Close{}},
		{"nil payload", HostSuspend, nil},
		{"string payload", IdleTimeRequested, "now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, bus.Publish(tt.typ, tt.payload), ErrPayloadMismatch)
		})
	}
}

func TestEveryTypeHasAPayload(t *testing.T) {
	for _, typ := range Types {
		assert.True(t, typ.Known(), typ)
	}
	assert.Len(t, payloadKinds, len(Types))
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(nil, 0)

	delivered := false
	_, _ = bus.Subscribe(func(Event) { panic("boom") })
	_, _ = bus.Subscribe(func(Event) { delivered = true })

	require.NoError(t, bus.Publish(HostResume, PowerSignal{Source: "test"}))
	assert.True(t, delivered)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(nil, 0)

	calls := 0
	id, err := bus.Subscribe(func(Event) { calls++ })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(AppClose, Close{}))
	bus.Unsubscribe(id)
	require.NoError(t, bus.Publish(AppClose, Close{}))

	assert.Equal(t, 1, calls)
}

func TestHistoryIsBounded(t *testing.T) {
	bus := NewBus(nil, 2)

	require.NoError(t, bus.Publish(HostSuspend, PowerSignal{}))
	require.NoError(t, bus.Publish(AppClose, Close{Reason: ReasonHostSuspend}))
	require.NoError(t, bus.Publish(HostResume, PowerSignal{}))

	hist := bus.History()
	require.Len(t, hist, 2)
	assert.Equal(t, AppClose, hist[0].Type)
	assert.NotEmpty(t, hist[0].ID)

	assert.Len(t, bus.History(HostResume), 1)
}

func TestClosedBus(t *testing.T) {
	bus := NewBus(nil, 0)
	bus.Close()

	assert.ErrorIs(t, bus.Publish(AppClose, Close{}), ErrBusClosed)
	_, err := bus.Subscribe(func(Event) {})
	assert.ErrorIs(t, err, ErrBusClosed)
}
