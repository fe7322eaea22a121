package presence

type transition struct {
	userID int
	online bool
}

// OrderedTransitions returns a TransitionFunc that hands every edge to a
// single worker goroutine. The registry fires transitions under its lock, so
// enqueueing keeps their order and the worker applies them one at a time;
// spawning a goroutine per edge would let online and offline race each other.
// The returned stop closes the queue and waits for the worker to drain it.
// The enqueue side blocks when the buffer is full rather than drop or
// reorder.
func OrderedTransitions(buffer int, apply func(userID int, online bool)) (TransitionFunc, func()) {
	queue := make(chan transition, buffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for tr := range queue {
			apply(tr.userID, tr.online)
		}
	}()

	enqueue := func(userID int, online bool) {
		queue <- transition{userID: userID, online: online}
	}
	stop := func() {
		close(queue)
		<-done
	}
	return enqueue, stop
}
