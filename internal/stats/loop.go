package stats

import (
	"context"
	"time"
)

// scanInterval is the periodic full sweep cadence.
const scanInterval = 60 * time.Second

// Run drives the periodic sweep until ctx is canceled, calling onUpdate
// with the fresh counters after every scan (periodic or on-demand).
// Rescan requests are coalesced: a burst of Rescan calls while a sweep
// is already pending collapses into one extra sweep.
func (s *Scanner) Run(ctx context.Context, onUpdate func(Counters)) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onUpdate(s.Scan())
		case <-s.rescanCh():
			onUpdate(s.Scan())
		}
	}
}

// Rescan requests an out-of-band sweep; a handshake capture
// unconditionally triggers one. Non-blocking: a pending request is not
// duplicated.
func (s *Scanner) Rescan() {
	select {
	case s.rescan <- struct{}{}:
	default:
	}
}

func (s *Scanner) rescanCh() <-chan struct{} {
	return s.rescan
}
