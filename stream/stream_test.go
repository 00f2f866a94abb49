package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreflow/corert/internal/corerr"
)

// TestStream_Backpressure checks that a subscriber with zero initial
// demand sees every emission buffered; Request drains exactly as many as
// it covers, in order; completion destroys whatever is left buffered
// exactly once each.
func TestStream_Backpressure(t *testing.T) {
	var freed []string
	s := New[string](func(item string) { freed = append(freed, item) })

	var received []string
	completed := false
	sub := s.Subscribe(
		func(item string) { received = append(received, item) },
		func(code int) { t.Fatalf("unexpected error %d", code) },
		func() { completed = true },
		0,
	)

	require.NoError(t, s.EmitNext("a"))
	require.NoError(t, s.EmitNext("b"))
	require.NoError(t, s.EmitNext("c"))
	assert.Empty(t, received)

	sub.Request(2)
	assert.Equal(t, []string{"a", "b"}, received)

	require.NoError(t, s.EmitComplete())
	assert.True(t, completed)
	assert.Equal(t, []string{"c"}, freed)
}

func TestStream_SubscribeAfterErrorReplaysTerminal(t *testing.T) {
	s := New[int](nil)
	require.NoError(t, s.EmitError(7))

	var gotCode int
	nextCalled := false
	sub := s.Subscribe(
		func(int) { nextCalled = true },
		func(code int) { gotCode = code },
		func() { t.Fatal("unexpected complete") },
		10,
	)

	assert.Equal(t, 7, gotCode)
	assert.False(t, nextCalled)
	assert.True(t, sub.Unsubscribed())
}

func TestStream_SubscribeAfterCompleteReplaysTerminal(t *testing.T) {
	s := New[int](nil)
	require.NoError(t, s.EmitComplete())

	completed := false
	s.Subscribe(nil, nil, func() { completed = true }, 10)
	assert.True(t, completed)
}

func TestStream_EmitAfterTerminalFails(t *testing.T) {
	s := New[int](nil)
	require.NoError(t, s.EmitComplete())

	err := s.EmitNext(1)
	assert.ErrorIs(t, err, corerr.ErrStateViolation)

	err = s.EmitError(1)
	assert.ErrorIs(t, err, corerr.ErrStateViolation)

	err = s.EmitComplete()
	assert.ErrorIs(t, err, corerr.ErrStateViolation)
}

func TestStream_UnsubscribeIsIdempotentAndSilencesDelivery(t *testing.T) {
	s := New[int](nil)
	var received []int
	sub := s.Subscribe(func(v int) { received = append(received, v) }, nil, nil, 10)

	require.NoError(t, s.EmitNext(1))
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	require.NoError(t, s.EmitNext(2))
	assert.Equal(t, []int{1}, received)
	assert.Equal(t, 0, s.SubscriberCount())
}

func TestStream_MultipleSubscribersEachGetDeliveryWhenDemanded(t *testing.T) {
	s := New[int](nil)
	var a, b []int
	s.Subscribe(func(v int) { a = append(a, v) }, nil, nil, 10)
	s.Subscribe(func(v int) { b = append(b, v) }, nil, nil, 10)

	require.NoError(t, s.EmitNext(1))
	require.NoError(t, s.EmitNext(2))

	assert.Equal(t, []int{1, 2}, a)
	assert.Equal(t, []int{1, 2}, b)
}
