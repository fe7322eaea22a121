package presence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderedTransitionsPreserveRegistryOrder(t *testing.T) {
	var applied []bool
	sink, stop := OrderedTransitions(4, func(userID int, online bool) {
		applied = append(applied, online)
	})

	r := NewRegistry(sink)
	conn := fakeConn{id: "a"}
	const cycles = 50
	for i := 0; i < cycles; i++ {
		r.Register(1, conn)
		r.Unregister(conn)
	}
	stop()

	require.Len(t, applied, 2*cycles)
	for i, online := range applied {
		require.Equal(t, i%2 == 0, online, "transition %d out of order", i)
	}
}

func TestOrderedTransitionsStopDrainsQueue(t *testing.T) {
	var applied []int
	sink, stop := OrderedTransitions(16, func(userID int, online bool) {
		applied = append(applied, userID)
	})

	for id := 1; id <= 10; id++ {
		sink(id, true)
	}
	stop()

	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, applied)
}
