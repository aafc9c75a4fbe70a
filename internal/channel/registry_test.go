package channel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("public-lobby", "conn-1")
	r.Subscribe("public-lobby", "conn-2")

	require.ElementsMatch(t, []string{"conn-1", "conn-2"}, r.Subscribers("public-lobby"))
	assert.Equal(t, 1, r.Count())

	r.Unsubscribe("public-lobby", "conn-1")
	require.ElementsMatch(t, []string{"conn-2"}, r.Subscribers("public-lobby"))

	r.Unsubscribe("public-lobby", "conn-2")
	assert.Nil(t, r.Subscribers("public-lobby"))
	assert.Equal(t, 0, r.Count())
}

func TestSubscribeIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("public-lobby", "conn-1")
	r.Subscribe("public-lobby", "conn-1")
	assert.Len(t, r.Subscribers("public-lobby"), 1)
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unsubscribe("public-lobby", "conn-1")
	r.Subscribe("public-lobby", "conn-1")
	r.Unsubscribe("public-lobby", "conn-2")
	assert.Len(t, r.Subscribers("public-lobby"), 1)
}

func TestChannelsFor(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("public-a", "conn-1")
	r.Subscribe("public-b", "conn-1")
	r.Subscribe("public-c", "conn-2")

	require.ElementsMatch(t, []string{"public-a", "public-b"}, r.ChannelsFor("conn-1"))
	require.ElementsMatch(t, []string{"public-c"}, r.ChannelsFor("conn-2"))
	assert.Empty(t, r.ChannelsFor("conn-3"))
}

// TestConcurrentSubscribeUnsubscribe exercises the copy-on-write path
// under contention; Subscribers must never observe a torn slice.
func TestConcurrentSubscribeUnsubscribe(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			r.Subscribe("public-stress", id)
			_ = r.Subscribers("public-stress")
			r.Unsubscribe("public-stress", id)
		}(i)
	}
	wg.Wait()
}
