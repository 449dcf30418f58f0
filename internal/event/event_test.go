package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitWithoutListeners(t *testing.T) {
	var e Emitter
	// Must not panic.
	e.Emit("something", nil)
}

func TestSubscribeAndCancel(t *testing.T) {
	var e Emitter
	var got []Type

	cancel := e.Subscribe(func(ev Event) { got = append(got, ev.Type) })
	e.Emit("a", nil)
	e.Emit("b", map[string]any{"k": 1})

	cancel()
	e.Emit("c", nil)
	cancel() // second cancel is harmless

	require.Equal(t, []Type{"a", "b"}, got)
}

func TestDispatchOrder(t *testing.T) {
	var e Emitter
	var got []string

	e.Subscribe(func(Event) { got = append(got, "first") })
	e.Subscribe(func(Event) { got = append(got, "second") })
	e.Emit("x", nil)

	require.Equal(t, []string{"first", "second"}, got)
}

func TestPayloadDelivered(t *testing.T) {
	var e Emitter
	var ev Event
	e.Subscribe(func(got Event) { ev = got })

	e.Emit("walletGenerated", map[string]any{"walletId": "ab12cd34ef56ab12"})

	require.Equal(t, Type("walletGenerated"), ev.Type)
	require.Equal(t, "ab12cd34ef56ab12", ev.Payload["walletId"])
	require.False(t, ev.At.IsZero())
}
