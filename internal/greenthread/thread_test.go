package greenthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThread_PingPong(t *testing.T) {
	var seen []string
	th := Spawn(func(t *Thread) {
		seen = append(seen, "entry")
		t.Yield()
		seen = append(seen, "resumed")
	})

	require.True(t, th.IsAlive())
	require.NoError(t, th.Resume())
	assert.Equal(t, []string{"entry"}, seen)

	require.NoError(t, th.Resume())
	require.NoError(t, th.Join())
	assert.Equal(t, []string{"entry", "resumed"}, seen)
	assert.False(t, th.IsAlive())
}

func TestThread_CancelObservedCooperatively(t *testing.T) {
	ran := make(chan struct{})
	th := Spawn(func(t *Thread) {
		for !t.IsCanceled() {
			t.Yield()
		}
		close(ran)
	})

	require.NoError(t, th.Resume())
	require.NoError(t, th.Cancel())
	require.NoError(t, th.Resume())

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("cancellation was not observed")
	}
	require.NoError(t, th.Join())
}

func TestThread_CancelOnDeadReturnsErrDead(t *testing.T) {
	th := Spawn(func(t *Thread) {})
	require.NoError(t, th.Resume())
	require.NoError(t, th.Join())
	assert.ErrorIs(t, th.Cancel(), ErrDead)
}

func TestThread_ResumeOnDeadIsNoop(t *testing.T) {
	th := Spawn(func(t *Thread) {})
	require.NoError(t, th.Resume())
	require.NoError(t, th.Join())
	assert.ErrorIs(t, th.Resume(), ErrDead)
}
