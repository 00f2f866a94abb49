package restartwindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFakeClock(t *testing.T, start time.Time) func(advance time.Duration) {
	t.Helper()
	now := start
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })
	return func(advance time.Duration) { now = now.Add(advance) }
}

func TestWindow_UnlimitedWhenNonPositive(t *testing.T) {
	w := New(0, time.Second)
	for i := 0; i < 100; i++ {
		require.True(t, w.Allow())
	}
}

func TestWindow_DeniesOverBudgetWithinWindow(t *testing.T) {
	advance := withFakeClock(t, time.Unix(0, 0))
	w := New(3, time.Second)

	assert.True(t, w.Allow())  // count=1
	advance(10 * time.Millisecond)
	assert.True(t, w.Allow())  // count=2
	advance(10 * time.Millisecond)
	assert.True(t, w.Allow())  // count=3
	advance(10 * time.Millisecond)
	assert.False(t, w.Allow()) // would be 4 > 3
}

func TestWindow_ResetsAfterWindowElapses(t *testing.T) {
	advance := withFakeClock(t, time.Unix(0, 0))
	w := New(1, 100*time.Millisecond)

	assert.True(t, w.Allow())
	assert.False(t, w.Allow()) // second attempt immediately, over budget

	advance(200 * time.Millisecond)
	assert.True(t, w.Allow()) // window elapsed, resets
}

func TestWindow_Reset(t *testing.T) {
	w := New(1, time.Second)
	require.True(t, w.Allow())
	require.False(t, w.Allow())
	w.Reset()
	require.True(t, w.Allow())
}
