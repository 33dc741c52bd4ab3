package market

// Loop serializes all market access onto a single goroutine. Submit,
// cancel and modify calls and the re-entrant engine callbacks they trigger
// run fully ordered by arrival, so neither Market nor the books need
// locks, and observable interleaving matches a single-threaded event loop.
type Loop struct {
	ops  chan func()
	quit chan struct{}
}

func NewLoop() *Loop {
	l := &Loop{
		ops:  make(chan func()),
		quit: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.ops:
			fn()
		case <-l.quit:
			return
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to complete. Each fn
// runs to completion before the next is serviced.
func (l *Loop) Do(fn func()) {
	done := make(chan struct{})
	l.ops <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// Close stops the loop goroutine. Pending Do calls that have not been
// picked up will block; callers stop submitting before closing.
func (l *Loop) Close() {
	close(l.quit)
}
