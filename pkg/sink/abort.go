package sink

import "sync"

// Aborter is a one-shot cancellation token shared between the transport and
// a content producer. The transport calls Abort when it detects client
// disconnection; the producer observes the abort either by polling (Aborted,
// Err) or by registering a callback (OnAbort).
//
// At most one callback is active at a time; re-registration replaces the
// previous one. The active callback is invoked exactly once, from whichever
// goroutine calls Abort, and must not block. Registering a callback after
// the abort already happened invokes it immediately, so an abort can never
// be lost to a registration race.
//
// The zero value is ready to use.
type Aborter struct {
	mu      sync.Mutex
	aborted bool
	cb      func()
}

// Abort transitions the token to the aborted state. Only the first call has
// any effect.
func (a *Aborter) Abort() {
	a.mu.Lock()
	if a.aborted {
		a.mu.Unlock()
		return
	}
	a.aborted = true
	cb := a.cb
	a.cb = nil
	a.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Aborted reports whether the token has been aborted.
func (a *Aborter) Aborted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aborted
}

// Err returns ErrRequestAborted if the token has been aborted, nil otherwise.
func (a *Aborter) Err() error {
	if a.Aborted() {
		return ErrRequestAborted
	}
	return nil
}

// OnAbort registers f as the abort callback, replacing any previously
// registered one. If the abort already happened, f runs immediately on the
// calling goroutine. A nil f clears the registration.
func (a *Aborter) OnAbort(f func()) {
	a.mu.Lock()
	if a.aborted {
		a.mu.Unlock()
		if f != nil {
			f()
		}
		return
	}
	a.cb = f
	a.mu.Unlock()
}
