package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxFIFO(t *testing.T) {
	m := New[int]()
	for i := 1; i <= 3; i++ {
		m.Push(i)
	}
	assert.Equal(t, 3, m.Len())
	for i := 1; i <= 3; i++ {
		v, ok := m.Poll()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := m.Poll()
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMailboxReceiveBlocksUntilPush(t *testing.T) {
	m := New[string]()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Push("hello")
	}()

	v, ok := m.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestMailboxReceiveContextCancelled(t *testing.T) {
	m := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := m.Receive(ctx)
	assert.False(t, ok)
}

func TestMailboxWakeFiresOnPush(t *testing.T) {
	m := New[int]()
	m.Push(1)
	select {
	case <-m.Wake():
	default:
		t.Fatal("wake channel did not fire after push")
	}
	// drained wake still leaves the item pollable
	v, ok := m.Poll()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestMailboxConcurrentPush(t *testing.T) {
	m := New[int]()
	const n = 100
	done := make(chan struct{})
	for w := 0; w < 4; w++ {
		go func() {
			for i := 0; i < n; i++ {
				m.Push(i)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < 4; w++ {
		<-done
	}
	assert.Equal(t, 4*n, m.Len())
}
