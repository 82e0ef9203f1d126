package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
)

type debounceCall struct {
	arg int
	at  time.Time
}

// recordingFn returns a debounced target that logs each execution.
func recordingFn(vc *clock.VirtualClock, calls *[]debounceCall) func(int) (int, error) {
	return func(n int) (int, error) {
		*calls = append(*calls, debounceCall{arg: n, at: vc.Now()})
		return n * 10, nil
	}
}

func TestDebouncer_BurstRunsLastCallOnce(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var calls []debounceCall
	d := NewDebouncer(recordingFn(vc, &calls), 50*time.Millisecond, vc)

	var handles []*Pending[int]
	for i := 1; i <= 4; i++ {
		handles = append(handles, d.Call(i))
		vc.Advance(10 * time.Millisecond)
	}
	// Last call arrived at 30ms, so it is due at 80ms.
	vc.Advance(39 * time.Millisecond)
	if len(calls) != 0 {
		t.Fatalf("ran %d times before the quiet period ended", len(calls))
	}

	vc.Advance(time.Millisecond)
	if len(calls) != 1 {
		t.Fatalf("ran %d times, want 1", len(calls))
	}
	if calls[0].arg != 4 {
		t.Errorf("ran with arg %d, want 4 (last call)", calls[0].arg)
	}
	if want := epoch.Add(80 * time.Millisecond); !calls[0].at.Equal(want) {
		t.Errorf("ran at %v, want %v", calls[0].at, want)
	}

	got, err := handles[3].Result()
	if err != nil {
		t.Fatalf("last handle error: %v", err)
	}
	if got != 40 {
		t.Errorf("last handle = %d, want 40", got)
	}
}

func TestDebouncer_SupersededHandleNeverSettles(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var calls []debounceCall
	d := NewDebouncer(recordingFn(vc, &calls), time.Second, vc)

	first := d.Call(1)
	d.Call(2)
	vc.Advance(time.Minute)

	if first.Settled() {
		t.Error("superseded call handle should never settle")
	}
	if _, err := first.Result(); !errors.Is(err, ErrNotSettled) {
		t.Errorf("Result() error = %v, want ErrNotSettled", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := first.Wait(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestDebouncer_AtMostOneTimer(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var calls []debounceCall
	d := NewDebouncer(recordingFn(vc, &calls), time.Second, vc)

	for i := 0; i < 10; i++ {
		d.Call(i)
		if vc.Pending() != 1 {
			t.Fatalf("after call %d, %d timers armed, want 1", i, vc.Pending())
		}
	}
	if !d.Scheduled() {
		t.Error("Scheduled() should be true while a call waits")
	}

	vc.Advance(time.Second)
	if d.Scheduled() {
		t.Error("Scheduled() should be false after the call ran")
	}
	if vc.Pending() != 0 {
		t.Errorf("%d timers armed after firing, want 0", vc.Pending())
	}
}

func TestDebouncer_ImmediateFirstCallIsSynchronous(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var calls []debounceCall
	d := NewDebouncer(recordingFn(vc, &calls), 100*time.Millisecond, vc, WithImmediate())

	p := d.Call(7)
	if len(calls) != 1 || calls[0].arg != 7 {
		t.Fatalf("immediate call did not run synchronously: %+v", calls)
	}
	if got, err := p.Result(); err != nil || got != 70 {
		t.Errorf("Result() = %d, %v; want 70, nil", got, err)
	}

	// Rapid follow-ups must not trigger a second immediate run.
	d.Call(8)
	vc.Advance(10 * time.Millisecond)
	d.Call(9)
	if len(calls) != 1 {
		t.Fatalf("follow-up calls ran synchronously: %+v", calls)
	}

	vc.Advance(100 * time.Millisecond)
	if len(calls) != 2 {
		t.Fatalf("ran %d times, want 2", len(calls))
	}
	if calls[1].arg != 9 {
		t.Errorf("deferred run used arg %d, want 9", calls[1].arg)
	}

	// The deferred completion releases the latch.
	d.Call(11)
	if len(calls) != 3 || calls[2].arg != 11 {
		t.Errorf("call after settle should run immediately: %+v", calls)
	}
}

func TestDebouncer_ImmediateLatchHeldWithoutDeferredRun(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var calls []debounceCall
	d := NewDebouncer(recordingFn(vc, &calls), 100*time.Millisecond, vc, WithImmediate())

	d.Call(1)
	vc.Advance(time.Hour)

	// No deferred call ever ran, so the latch is still set.
	d.Call(2)
	if len(calls) != 1 {
		t.Fatalf("second call ran synchronously without a deferred completion: %+v", calls)
	}
	vc.Advance(100 * time.Millisecond)
	if len(calls) != 2 || calls[1].arg != 2 {
		t.Errorf("second call should run deferred: %+v", calls)
	}
}

func TestDebouncer_CancelDropsScheduledCall(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var calls []debounceCall
	d := NewDebouncer(recordingFn(vc, &calls), time.Second, vc)

	p := d.Call(1)
	vc.Advance(500 * time.Millisecond)
	d.Cancel()
	vc.Advance(time.Minute)

	if len(calls) != 0 {
		t.Errorf("canceled call ran: %+v", calls)
	}
	if p.Settled() {
		t.Error("canceled call handle should not settle")
	}
	if d.Scheduled() {
		t.Error("Scheduled() should be false after Cancel")
	}
}

func TestDebouncer_CancelResetsImmediateLatch(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var calls []debounceCall
	d := NewDebouncer(recordingFn(vc, &calls), time.Second, vc, WithImmediate())

	d.Call(1)
	d.Call(2)
	d.Cancel()
	d.Call(3)

	if len(calls) != 2 {
		t.Fatalf("ran %d times, want 2", len(calls))
	}
	if calls[1].arg != 3 {
		t.Errorf("call after Cancel ran with %d, want 3", calls[1].arg)
	}
}

func TestDebouncer_ErrorRejectsHandle(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	boom := errors.New("boom")
	d := NewDebouncer(func(int) (string, error) { return "", boom }, time.Second, vc)

	p := d.Call(1)
	vc.Advance(time.Second)

	if _, err := p.Wait(ctx); !errors.Is(err, boom) {
		t.Errorf("Wait() error = %v, want %v", err, boom)
	}

	// The failure leaves the debouncer usable.
	p = d.Call(2)
	vc.Advance(time.Second)
	if !p.Settled() {
		t.Error("debouncer stopped working after a failed call")
	}
}

func TestDebouncer_PanicRejectsHandle(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	d := NewDebouncer(func(int) (int, error) { panic("kaboom") }, time.Second, vc, WithImmediate())

	p := d.Call(1)
	if _, err := p.Result(); !errors.Is(err, ErrPanicked) {
		t.Errorf("immediate panic: error = %v, want ErrPanicked", err)
	}

	p = d.Call(2)
	vc.Advance(time.Second)
	if _, err := p.Result(); !errors.Is(err, ErrPanicked) {
		t.Errorf("deferred panic: error = %v, want ErrPanicked", err)
	}
}

func TestDebouncer_ResultCallback(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	boom := errors.New("boom")

	type outcome struct {
		val int
		err error
	}
	var got []outcome
	d := NewDebouncer(func(n int) (int, error) {
		if n < 0 {
			return 0, boom
		}
		return n * 2, nil
	}, time.Second, vc, WithImmediate(), WithResultCallback(func(v int, err error) {
		got = append(got, outcome{v, err})
	}))

	d.Call(1) // immediate
	d.Call(2) // superseded, never reported
	d.Call(-1)
	vc.Advance(time.Second)

	if len(got) != 2 {
		t.Fatalf("callback ran %d times (%+v), want 2", len(got), got)
	}
	if got[0].val != 2 || got[0].err != nil {
		t.Errorf("first outcome = %+v, want 2, nil", got[0])
	}
	if !errors.Is(got[1].err, boom) {
		t.Errorf("second outcome error = %v, want %v", got[1].err, boom)
	}
}

func TestDebouncer_ResultCallbackSeesPanics(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var gotErr error
	d := NewDebouncer(func(int) (string, error) { panic("kaboom") }, time.Second, vc,
		WithResultCallback(func(_ string, err error) { gotErr = err }))

	p := d.Call(1)
	vc.Advance(time.Second)

	if !errors.Is(gotErr, ErrPanicked) {
		t.Errorf("callback error = %v, want ErrPanicked", gotErr)
	}
	if _, err := p.Result(); !errors.Is(err, ErrPanicked) {
		t.Errorf("handle error = %v, want ErrPanicked", err)
	}
}

func TestDebouncer_MismatchedResultCallbackIgnored(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	called := false
	d := NewDebouncer(func(int) (int, error) { return 1, nil }, time.Second, vc,
		WithResultCallback(func(string, error) { called = true }))

	p := d.Call(1)
	vc.Advance(time.Second)

	if called {
		t.Error("callback with the wrong result type should be ignored")
	}
	if !p.Settled() {
		t.Error("handle should still settle")
	}
}

func TestDebouncer_RealClock(t *testing.T) {
	var mu sync.Mutex
	var got []int
	d := NewDebouncer(func(n int) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n)
		return n, nil
	}, 20*time.Millisecond, clock.NewRealClock())

	var last *Pending[int]
	for i := 0; i < 5; i++ {
		last = d.Call(i)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	v, err := last.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if v != 4 {
		t.Errorf("Wait() = %d, want 4", v)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Errorf("ran %d times, want 1", len(got))
	}
}

func TestDebouncer_ConcurrentCalls(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	var mu sync.Mutex
	runs := 0
	d := NewDebouncer(func(int) (int, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		return 0, nil
	}, time.Second, vc)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			d.Call(n)
		}(i)
	}
	wg.Wait()

	if vc.Pending() != 1 {
		t.Fatalf("%d timers armed, want 1", vc.Pending())
	}
	vc.Advance(time.Second)
	if runs != 1 {
		t.Errorf("ran %d times, want 1", runs)
	}
}
