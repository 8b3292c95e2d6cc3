package services

import "sync"

// orderLocks serializes the read, validate and write steps of status
// changes per order within this process.
type orderLocks struct {
	mu    sync.Mutex
	locks map[int64]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[int64]*orderLock)}
}

// lock enters the order's critical section and returns its release func.
func (o *orderLocks) lock(id int64) func() {
	o.mu.Lock()
	l, ok := o.locks[id]
	if !ok {
		l = &orderLock{}
		o.locks[id] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, id)
		}
		o.mu.Unlock()
	}
}
