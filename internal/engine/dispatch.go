package engine

import (
	"runtime"
	"sync"
)

// DispatchMode selects whether a subsystem's fan-out is awaited in place or
// joined later at the scheduler's synchronization point.
type DispatchMode uint8

const (
	Synchronous DispatchMode = iota // Caller waits for completion
	Deferred                        // Runs in the background until Complete
)

func (m DispatchMode) String() string {
	switch m {
	case Synchronous:
		return "synchronous"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Dispatcher runs one subsystem's per-tick fan-out and guarantees at most
// one of them is ever in flight.
type Dispatcher struct {
	Mode    DispatchMode
	Workers int // Parallel workers per dispatch; 0 means GOMAXPROCS

	mu      sync.Mutex
	pending chan struct{}
}

// NewDispatcher returns a dispatcher in the given mode.
func NewDispatcher(mode DispatchMode, workers int) *Dispatcher {
	return &Dispatcher{Mode: mode, Workers: workers}
}

// workers resolves the configured worker count.
func (d *Dispatcher) workers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Dispatch joins any previous job, then runs job with the resolved worker
// count: inline for Synchronous, on its own goroutine for Deferred.
func (d *Dispatcher) Dispatch(job func(workers int)) {
	d.Complete()

	workers := d.workers()
	if d.Mode == Synchronous {
		job(workers)
		return
	}

	done := make(chan struct{})
	d.mu.Lock()
	d.pending = done
	d.mu.Unlock()

	go func() {
		defer close(done)
		job(workers)
	}()
}

// Complete blocks until the in-flight job, if any, has finished.
func (d *Dispatcher) Complete() {
	d.mu.Lock()
	done := d.pending
	d.pending = nil
	d.mu.Unlock()

	if done != nil {
		<-done
	}
}

// InFlight reports whether a deferred job has been dispatched and not yet
// joined. A finished but unjoined job still counts.
func (d *Dispatcher) InFlight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}
