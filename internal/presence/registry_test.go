package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string
}

func (f fakeConn) ConnID() string { return f.id }

func TestRegisterFiresSingleOnlineTransition(t *testing.T) {
	var transitions []bool
	r := NewRegistry(func(userID int, online bool) {
		transitions = append(transitions, online)
	})

	r.Register(1, fakeConn{id: "a"})
	r.Register(1, fakeConn{id: "b"})

	require.True(t, r.IsOnline(1))
	require.Len(t, r.SessionsFor(1), 2)
	require.Equal(t, []bool{true}, transitions)
}

func TestUnregisterFiresSingleOfflineTransition(t *testing.T) {
	var transitions []bool
	r := NewRegistry(func(userID int, online bool) {
		transitions = append(transitions, online)
	})

	a := fakeConn{id: "a"}
	b := fakeConn{id: "b"}
	r.Register(1, a)
	r.Register(1, b)

	userID, ok := r.Unregister(b)
	require.True(t, ok)
	require.Equal(t, 1, userID)
	require.True(t, r.IsOnline(1))

	userID, ok = r.Unregister(a)
	require.True(t, ok)
	require.Equal(t, 1, userID)
	require.False(t, r.IsOnline(1))

	require.Equal(t, []bool{true, false}, transitions)
}

func TestUnregisterUnknownConn(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Unregister(fakeConn{id: "ghost"})
	require.False(t, ok)
}

func TestOnlineCount(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(1, fakeConn{id: "a"})
	r.Register(2, fakeConn{id: "b"})
	r.Register(2, fakeConn{id: "c"})

	require.Equal(t, 2, r.OnlineCount())
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	var mu sync.Mutex
	online := 0
	offline := 0
	r := NewRegistry(func(userID int, isOnline bool) {
		mu.Lock()
		defer mu.Unlock()
		if isOnline {
			online++
		} else {
			offline++
		}
	})

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fakeConn{id: fmt.Sprintf("conn-%d", i)}
			r.Register(7, conn)
			r.Unregister(conn)
		}(i)
	}
	wg.Wait()

	require.False(t, r.IsOnline(7))
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, online, offline)
	require.GreaterOrEqual(t, online, 1)
}
