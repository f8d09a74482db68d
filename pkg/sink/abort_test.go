package sink

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// TestAborterPolling verifies CheckAborted-style polling semantics: clean
// before the abort, ErrRequestAborted after.
func TestAborterPolling(t *testing.T) {
	var a Aborter

	if a.Aborted() {
		t.Fatal("fresh aborter reports aborted")
	}
	if err := a.Err(); err != nil {
		t.Fatalf("fresh aborter returned error: %v", err)
	}

	a.Abort()

	if !a.Aborted() {
		t.Fatal("aborter does not report aborted after Abort")
	}
	if err := a.Err(); !errors.Is(err, ErrRequestAborted) {
		t.Fatalf("Err() = %v, want ErrRequestAborted", err)
	}
}

// TestAborterCallbackOnce verifies the registered callback fires exactly
// once even when Abort is called repeatedly.
func TestAborterCallbackOnce(t *testing.T) {
	var a Aborter
	var calls int32

	a.OnAbort(func() { atomic.AddInt32(&calls, 1) })

	a.Abort()
	a.Abort()
	a.Abort()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("callback invoked %d times, want 1", got)
	}
}

// TestAborterRegisterAfterAbort verifies an abort cannot be lost to a
// registration race: registering after the fact fires immediately.
func TestAborterRegisterAfterAbort(t *testing.T) {
	var a Aborter
	a.Abort()

	var calls int32
	a.OnAbort(func() { atomic.AddInt32(&calls, 1) })

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("late-registered callback invoked %d times, want 1", got)
	}
}

// TestAborterReplaceCallback verifies re-registration replaces the previous
// callback rather than accumulating.
func TestAborterReplaceCallback(t *testing.T) {
	var a Aborter
	var first, second int32

	a.OnAbort(func() { atomic.AddInt32(&first, 1) })
	a.OnAbort(func() { atomic.AddInt32(&second, 1) })

	a.Abort()

	if atomic.LoadInt32(&first) != 0 {
		t.Fatal("replaced callback was invoked")
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Fatal("active callback was not invoked exactly once")
	}
}

// TestAborterConcurrent hammers Abort and polls from multiple goroutines;
// the callback must still run exactly once.
func TestAborterConcurrent(t *testing.T) {
	var a Aborter
	var calls int32
	a.OnAbort(func() { atomic.AddInt32(&calls, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.Abort()
		}()
		go func() {
			defer wg.Done()
			_ = a.Aborted()
			_ = a.Err()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("callback invoked %d times under contention, want 1", got)
	}
}
