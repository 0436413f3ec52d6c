package pool

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Class names the kind of work a slot is requested for.
type Class string

const (
	CPU Class = "cpu"
	IO  Class = "io"
)

// Pool is a counting semaphore that tracks how many holders it has and the
// highest count it has seen.
type Pool struct {
	class    Class
	size     int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	peak     atomic.Int64
}

func newPool(class Class, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{class: class, size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn while holding one slot. It returns ctx.Err() if no slot frees
// up before ctx is done.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	n := p.inFlight.Add(1)
	for {
		cur := p.peak.Load()
		if n <= cur || p.peak.CompareAndSwap(cur, n) {
			break
		}
	}
	defer func() {
		p.inFlight.Add(-1)
		p.sem.Release(1)
	}()
	return fn(ctx)
}

func (p *Pool) Class() Class { return p.class }
func (p *Pool) Size() int { return int(p.size) }
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }
func (p *Pool) Peak() int { return int(p.peak.Load()) }

// Pools are the two admission gates shared by every stage of a batch. CPU
// bounds transcode and encode work, IO bounds probing and downloads so they
// never queue behind long encodes.
type Pools struct {
	CPU *Pool
	IO  *Pool
}

func New(cpuSlots, ioSlots int) *Pools {
	return &Pools{CPU: newPool(CPU, cpuSlots), IO: newPool(IO, ioSlots)}
}

func (p *Pools) Get(c Class) *Pool {
	if c == IO {
		return p.IO
	}
	return p.CPU
}
