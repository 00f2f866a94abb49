package coroutine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCo_PingPong(t *testing.T) {
	co := Spawn(func(co *Co[string, string], arg string) string {
		p1 := Yield(co, "A")
		p2 := Yield(co, p1+"1")
		return p2 + "2"
	}, "", 0)

	out, err := co.Resume("X")
	require.NoError(t, err)
	assert.Equal(t, "A", out)
	assert.True(t, co.IsAlive())

	out, err = co.Resume("Y")
	require.NoError(t, err)
	assert.Equal(t, "Y1", out)
	assert.True(t, co.IsAlive())

	out, err = co.Resume("Z")
	require.NoError(t, err)
	assert.Equal(t, "Z2", out)
	assert.False(t, co.IsAlive())

	final, err := co.Join()
	require.NoError(t, err)
	assert.Equal(t, "Z2", final)
	assert.True(t, co.Joined())
}

func TestCo_ResumeAfterTerminalFails(t *testing.T) {
	co := Spawn(func(co *Co[int, int], arg int) int { return arg * 2 }, 0, 0)

	out, err := co.Resume(21)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	_, err = co.Resume(1)
	assert.ErrorIs(t, err, ErrTerminal)

	_, err = co.Join()
	assert.NoError(t, err)
}

func TestCo_CancelBeforeFirstResume(t *testing.T) {
	ran := false
	co := Spawn(func(co *Co[int, int], arg int) int {
		ran = true
		return arg
	}, 0, 0)

	require.NoError(t, co.Cancel())
	assert.True(t, co.IsCanceled())

	_, err := co.Resume(0)
	require.NoError(t, err)
	assert.False(t, co.IsAlive())
	assert.False(t, ran)
}

func TestCo_CancelObservedCooperatively(t *testing.T) {
	co := Spawn(func(co *Co[int, int], arg int) int {
		n := 0
		for !co.IsCanceled() {
			Yield(co, n)
			n++
		}
		return n
	}, 0, 0)

	_, err := co.Resume(0)
	require.NoError(t, err)
	require.True(t, co.IsAlive())

	require.NoError(t, co.Cancel())
	_, err = co.Resume(0)
	require.NoError(t, err)
	assert.False(t, co.IsAlive())
	assert.True(t, co.IsCanceled())
}

func TestCo_CancelAfterTerminalReturnsErrTerminal(t *testing.T) {
	co := Spawn(func(co *Co[int, int], arg int) int { return arg }, 0, 0)

	_, err := co.Resume(0)
	require.NoError(t, err)

	assert.ErrorIs(t, co.Cancel(), ErrTerminal)
}

func TestCo_DestroyLiveParkedCoroutine(t *testing.T) {
	co := Spawn(func(co *Co[int, int], arg int) int {
		for !co.IsCanceled() {
			Yield(co, arg)
		}
		return -1
	}, 0, 0)

	_, err := co.Resume(0)
	require.NoError(t, err)

	require.NoError(t, co.Destroy())
	assert.False(t, co.IsAlive())
}

func TestCo_DestroyIsIdempotentOnTerminal(t *testing.T) {
	co := Spawn(func(co *Co[int, int], arg int) int { return arg }, 0, 0)

	_, err := co.Resume(0)
	require.NoError(t, err)

	require.NoError(t, co.Destroy())
	require.NoError(t, co.Destroy())
}

func TestCo_JoinPropagatesPanic(t *testing.T) {
	co := Spawn(func(co *Co[int, int], arg int) int {
		panic("boom")
	}, 0, 0)

	_, err := co.Resume(0)
	require.NoError(t, err)
	assert.False(t, co.IsAlive())

	_, err = co.Join()
	require.Error(t, err)
	var pe panicError
	assert.ErrorAs(t, err, &pe)
}
