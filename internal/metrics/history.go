package metrics

import (
	"sync"
	"time"
)

// Totals summarizes the builds of one watch or serve session.
type Totals struct {
	Builds    int64
	Succeeded int64
	Failed    int64
	Warnings  int64
	Elapsed   time.Duration
	// LastToken is the cache-bust token of the most recent successful build.
	LastToken int64
}

// Mean is the average build duration, zero before the first build.
func (t Totals) Mean() time.Duration {
	if t.Builds == 0 {
		return 0
	}
	return t.Elapsed / time.Duration(t.Builds)
}

// History accumulates Totals. It is safe for concurrent use.
type History struct {
	mu     sync.Mutex
	totals Totals
}

func NewHistory() *History { return &History{} }

// Record adds one finished build. A failed build leaves LastToken alone.
func (h *History) Record(elapsed time.Duration, token int64, warnings int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := &h.totals
	t.Builds++
	t.Elapsed += elapsed
	t.Warnings += int64(warnings)
	if err != nil {
		t.Failed++
		return
	}
	t.Succeeded++
	t.LastToken = token
}

// Totals returns a copy of the running totals.
func (h *History) Totals() Totals {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totals
}
