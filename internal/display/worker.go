package display

import (
	"log/slog"
	"sync"
	"time"
)

// Refresher performs the blocking partial refresh of a framebuffer onto
// physical e-ink hardware (or a stub, in tests). It is expected to take
// hundreds of milliseconds.
type Refresher interface {
	Refresh(buf []byte) error
}

// Worker is the single display worker: it owns a condition variable
// guarding a "pending" flag, and performs the slow refresh entirely
// outside the UI lock, so a refresh that takes hundreds of
// milliseconds never stalls UI mutation.
type Worker struct {
	owner     *Owner
	refresher Refresher

	mu      sync.Mutex
	cond    *sync.Cond
	pending bool
	running bool

	stopTick chan struct{}
	done     chan struct{}
}

// NewWorker constructs a Worker bound to the given Owner and hardware
// refresher.
func NewWorker(owner *Owner, refresher Refresher) *Worker {
	w := &Worker{
		owner:     owner,
		refresher: refresher,
		stopTick:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Notify marks a frame pending and wakes the worker. Called by the main
// loop once it observes Owner.Tick returning true.
func (w *Worker) Notify() {
	w.mu.Lock()
	w.pending = true
	w.mu.Unlock()
	w.cond.Signal()
}

// Start runs the worker loop in its own goroutine until Stop is called.
func (w *Worker) Start() {
	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	go w.tickBroadcaster()
	go w.loop()
}

// Stop signals the loop to exit and waits for it to drain.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.cond.Broadcast()
	close(w.stopTick)
	<-w.done
}

// tickBroadcaster wakes the loop once a second even with no pending
// frame, so it can reevaluate the running flag promptly on its 1s
// timeout wait.
func (w *Worker) tickBroadcaster() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.cond.Broadcast()
		case <-w.stopTick:
			return
		}
	}
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for !w.pending && w.running {
			w.cond.Wait()
		}
		if !w.running && !w.pending {
			w.mu.Unlock()
			return
		}

		nowMs := time.Now().UnixMilli()
		local := w.owner.Render(nowMs)
		localCopy := make([]byte, len(local))
		copy(localCopy, local)
		w.pending = false
		w.mu.Unlock()

		if err := w.refresher.Refresh(localCopy); err != nil {
			slog.Warn("display: refresh failed", "error", err)
		}

		if !w.isRunning() {
			return
		}
	}
}

func (w *Worker) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
