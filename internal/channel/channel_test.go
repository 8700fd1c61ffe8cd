package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferedTrySendDropsWhenFull(t *testing.T) {
	c := NewBuffered[int](2)
	assert.True(t, c.TrySend(1))
	assert.True(t, c.TrySend(2))
	assert.False(t, c.TrySend(3), "full buffer must not block")
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, 1, <-c.Receive())
	assert.True(t, c.TrySend(3))
}

func TestBufferedCloseDrains(t *testing.T) {
	c := New[string](4)
	c.Send("a")
	c.Close()

	v, ok := <-c.Receive()
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = <-c.Receive()
	assert.False(t, ok)
}

func TestUnbufferedTrySendWithoutReceiver(t *testing.T) {
	c := NewUnbuffered[int]()
	assert.False(t, c.TrySend(1))
	assert.Equal(t, 0, c.Len())
}
