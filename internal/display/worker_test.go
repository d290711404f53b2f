package display

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	last  []byte
}

func (r *countingRefresher) Refresh(buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = buf
	return nil
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestWorker_NotifyTriggersRefresh(t *testing.T) {
	o, _ := NewOwner("waveshare_v2", nil, nil)
	o.SetStatus("booting")
	refresher := &countingRefresher{}
	w := NewWorker(o, refresher)
	w.Start()
	defer w.Stop()

	w.Notify()

	require.Eventually(t, func() bool { return refresher.count() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestWorker_StopDrainsCleanly(t *testing.T) {
	o, _ := NewOwner("waveshare_v2", nil, nil)
	refresher := &countingRefresher{}
	w := NewWorker(o, refresher)
	w.Start()
	w.Notify()
	require.Eventually(t, func() bool { return refresher.count() >= 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestWorker_NullRefresherNeverErrors(t *testing.T) {
	var r NullRefresher
	assert.NoError(t, r.Refresh([]byte{1, 2, 3}))
}
