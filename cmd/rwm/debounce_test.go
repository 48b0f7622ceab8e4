package main

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerBatchesTriggers(t *testing.T) {
	var count int32
	d := NewDebouncer(50*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})
	t.Cleanup(d.Cancel)

	d.Trigger()
	d.Trigger()
	d.Trigger()

	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 0 {
		t.Errorf("fired during quiet window: got %d, want 0", got)
	}

	awaitCount(t, &count, 1)
}

func TestDebouncerResetsQuietWindow(t *testing.T) {
	var count int32
	d := NewDebouncer(50*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})
	t.Cleanup(d.Cancel)

	d.Trigger()
	time.Sleep(20 * time.Millisecond)
	d.Trigger()
	time.Sleep(20 * time.Millisecond)

	// 40ms elapsed but the second trigger restarted the window.
	if got := atomic.LoadInt32(&count); got != 0 {
		t.Errorf("fired before the reset window elapsed: got %d, want 0", got)
	}

	awaitCount(t, &count, 1)
}

func TestDebouncerCancelStopsPending(t *testing.T) {
	var count int32
	d := NewDebouncer(50*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})

	d.Trigger()
	d.Cancel()

	time.Sleep(80 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 0 {
		t.Errorf("fired after cancel: got %d, want 0", got)
	}

	// A later trigger still fires normally.
	d.Trigger()
	awaitCount(t, &count, 1)
	d.Cancel()
}

func TestDebouncerConcurrentTriggersBatchToOne(t *testing.T) {
	var count int32
	d := NewDebouncer(50*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})
	t.Cleanup(d.Cancel)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d.Trigger()
		}()
	}
	close(start)
	wg.Wait()

	awaitCount(t, &count, 1)
	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("concurrent triggers fired %d times, want 1", got)
	}
}

func TestDebouncerCancelAndWaitDrainsInFlight(t *testing.T) {
	started := make(chan struct{})
	done := make(chan struct{})
	d := NewDebouncer(10*time.Millisecond, func() {
		close(started)
		time.Sleep(150 * time.Millisecond)
		close(done)
	})

	d.Trigger()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("pending run never started")
	}

	d.CancelAndWait()

	select {
	case <-done:
	default:
		t.Error("CancelAndWait returned while the run was still in flight")
	}
}

func TestDebouncerCancelAndWaitWithOnlyPendingTimer(t *testing.T) {
	var count int32
	d := NewDebouncer(5*time.Second, func() {
		atomic.AddInt32(&count, 1)
	})

	d.Trigger()

	waitDone := make(chan struct{})
	go func() {
		d.CancelAndWait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("CancelAndWait blocked on a timer that never fired")
	}
	if got := atomic.LoadInt32(&count); got != 0 {
		t.Errorf("fired after CancelAndWait: got %d, want 0", got)
	}
}

// awaitCount polls until the counter reaches want or a deadline passes.
func awaitCount(t *testing.T, count *int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(count) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for count=%d (got %d)", want, atomic.LoadInt32(count))
}
