package repl

import "sync"

// WorkerPool is a small bounded goroutine pool: Schedule never blocks
// waiting for the manager mutex (the concern spec.md §5 cares about),
// and IsFull gives the caller an advisory (not atomic) admission check.
// The teacher has no reusable pool type of its own — its worker loops
// (shardPuller, shardEraser) each spin up goroutines ad hoc with a
// sync.WaitGroup — so this generalises that same "semaphore + goroutine"
// shape into something the manager can reuse for both its full-sync and
// incremental-push pools.
type WorkerPool struct {
	sem  chan struct{}
	wg   sync.WaitGroup
	name string
}

func NewWorkerPool(name string, size int) *WorkerPool {
	return &WorkerPool{
		sem:  make(chan struct{}, size),
		name: name,
	}
}

// IsFull reports whether the pool is saturated right now. It is
// deliberately not synchronised with Schedule: a caller that checks
// IsFull and then Schedules anyway may still block briefly, which is the
// same race the source carries forward (spec.md §9's open questions).
func (p *WorkerPool) IsFull() bool {
	return len(p.sem) >= cap(p.sem)
}

// Schedule runs fn on a pool goroutine once a slot is free. It blocks the
// caller until a slot opens, same as the teacher's bounded goroutine
// patterns (wg.Add then go func) block until the goroutine is launched,
// not until it completes.
func (p *WorkerPool) Schedule(fn func()) {
	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
}

// Stop waits for all in-flight tasks to finish. It does not prevent new
// Schedule calls; callers stop scheduling before calling Stop.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
}
