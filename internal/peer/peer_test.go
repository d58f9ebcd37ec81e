package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	p, err := Unmarshal([]byte{127, 0, 0, 1, 0x1A, 0xE1})
	require.NoError(t, err)

	assert.Equal(t, Peer{Addr: "127.0.0.1:6881"}, p)
}

func TestUnmarshalInvalidLength(t *testing.T) {
	_, err := Unmarshal([]byte{127, 0, 0, 1, 0x1A})

	assert.ErrorIs(t, err, ErrInvalidCompact)
}

func TestPool(t *testing.T) {
	pool := NewPool(4)

	pool.PushMany([]Peer{{Addr: "1.1.1.1:1"}, {Addr: "2.2.2.2:2"}})
	pool.PushMany([]Peer{{Addr: "1.1.1.1:1"}, {Addr: "3.3.3.3:3"}})

	assert.Equal(t, 3, pool.Len())

	p, ok := pool.Pop()
	require.True(t, ok)
	assert.Equal(t, "1.1.1.1:1", p.Addr)
	assert.Equal(t, 2, pool.Len())

	pool.PushMany([]Peer{{Addr: "1.1.1.1:1"}})
	assert.Equal(t, 2, pool.Len())
}

func TestPoolPopEmpty(t *testing.T) {
	_, ok := NewPool(0).Pop()

	assert.False(t, ok)
}

func TestPoolCountsNewPeers(t *testing.T) {
	pool := NewPool(2)

	assert.Equal(t, 2, pool.PushMany([]Peer{{Addr: "a:1"}, {Addr: "b:2"}}))
	assert.Equal(t, 1, pool.PushMany([]Peer{{Addr: "b:2"}, {Addr: "c:3"}}))

	pool.Pop()
	assert.Equal(t, 3, pool.Seen())
}
