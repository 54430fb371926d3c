package presenter

import "sync"

// uiQueue collects view updates posted by worker goroutines. Drain runs them
// on the UI thread, in order.
type uiQueue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *uiQueue) post(f func()) {
	q.mu.Lock()
	q.fns = append(q.fns, f)
	q.mu.Unlock()
}

func (q *uiQueue) drain() {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

// goRunner runs blocking work off the UI thread.
func goRunner(f func()) { go f() }
