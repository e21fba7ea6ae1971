package events

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusPublishInvokesSubscribedHandler(t *testing.T) {
	b := NewBus()
	var got Event
	b.Subscribe(TypeOCR1Accepted, func(e Event) { got = e })

	b.Publish(Event{Type: TypeOCR1Accepted, Data: 1492})

	require.Equal(t, TypeOCR1Accepted, got.Type)
	require.Equal(t, 1492, got.Data)
}

func TestBusPublishIgnoresOtherTypes(t *testing.T) {
	b := NewBus()
	called := false
	b.Subscribe(TypeOCR1Accepted, func(Event) { called = true })

	b.Publish(Event{Type: TypeOCR2Accepted})

	require.False(t, called)
}

func TestBusMultipleHandlersAllRun(t *testing.T) {
	b := NewBus()
	var count int32
	for i := 0; i < 3; i++ {
		b.Subscribe(TypePingReceived, func(Event) { atomic.AddInt32(&count, 1) })
	}

	b.Publish(Event{Type: TypePingReceived})

	require.EqualValues(t, 3, count)
}
