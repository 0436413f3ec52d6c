package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolNeverExceedsSize(t *testing.T) {
	t.Parallel()

	p := New(3, 8)
	var cur, highest atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.CPU.Do(context.Background(), func(context.Context) error {
				n := cur.Add(1)
				for {
					m := highest.Load()
					if n <= m || highest.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				cur.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if highest.Load() > 3 {
		t.Fatalf("observed %d concurrent holders, cap is 3", highest.Load())
	}
	if p.CPU.Peak() > 3 || p.CPU.Peak() < 1 {
		t.Fatalf("unexpected recorded peak %d", p.CPU.Peak())
	}
	if p.CPU.InFlight() != 0 {
		t.Fatalf("expected no holders after wait, got %d", p.CPU.InFlight())
	}
	if p.IO.Peak() != 0 {
		t.Fatalf("io pool should be untouched, peak=%d", p.IO.Peak())
	}
}

func TestPoolDoReturnsCallbackError(t *testing.T) {
	p := New(1, 1)
	want := errors.New("boom")
	if err := p.IO.Do(context.Background(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if p.IO.InFlight() != 0 {
		t.Fatal("slot not released after error")
	}
}

func TestPoolDoHonoursContext(t *testing.T) {
	p := New(1, 1)
	hold := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = p.CPU.Do(context.Background(), func(context.Context) error {
			<-hold
			return nil
		})
		close(done)
	}()
	for p.CPU.InFlight() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.CPU.Do(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	close(hold)
	<-done
}

func TestNewClampsSizes(t *testing.T) {
	p := New(0, -2)
	if p.CPU.Size() != 1 || p.IO.Size() != 1 {
		t.Fatalf("expected sizes clamped to 1, got %d/%d", p.CPU.Size(), p.IO.Size())
	}
	if p.Get(IO) != p.IO || p.Get(CPU) != p.CPU {
		t.Fatal("Get returned the wrong pool")
	}
}
