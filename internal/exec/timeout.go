package exec

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"connector_go/internal/domain"
)

// OpType is the in-flight operation kind tracked per order.
type OpType uint8

const (
	OpSubmit OpType = iota
	OpCancel
	OpReplace
)

func (op OpType) String() string {
	switch op {
	case OpCancel:
		return "cancel"
	case OpReplace:
		return "replace"
	default:
		return "submit"
	}
}

// TimeoutMode selects the action taken when an operation misses its
// deadline.
type TimeoutMode uint8

const (
	TimeoutLogOnly TimeoutMode = iota
	TimeoutReject
	TimeoutCallback
	TimeoutReconcile
)

// TimeoutConfig configures the timeout tracker.
type TimeoutConfig struct {
	SubmitTimeout  time.Duration
	CancelTimeout  time.Duration
	ReplaceTimeout time.Duration
	CheckInterval  time.Duration
	Mode           TimeoutMode

	// OnTimeout fires for Callback and Reconcile modes: (orderID, op name).
	OnTimeout func(id domain.OrderID, op string)
	// OnReject fires for Reject mode: (orderID, reason).
	OnReject func(id domain.OrderID, reason string)
}

// Valid requires every duration to be positive.
func (c TimeoutConfig) Valid() bool {
	return c.SubmitTimeout > 0 && c.CancelTimeout > 0 &&
		c.ReplaceTimeout > 0 && c.CheckInterval > 0
}

type pendingOp struct {
	op      OpType
	started time.Time
}

// TimeoutTracker watches in-flight submit/cancel/replace operations and
// applies the configured policy when a venue fails to answer in time.
// Executors call Track* before dispatch and ClearPending from both
// continuations; the same order id replaces its pending entry.
type TimeoutTracker struct {
	cfg TimeoutConfig
	log *slog.Logger

	mu      sync.Mutex
	pending map[domain.OrderID]pendingOp

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewTimeoutTracker fails on non-positive timeouts; no state changes on
// error.
func NewTimeoutTracker(cfg TimeoutConfig) (*TimeoutTracker, error) {
	if !cfg.Valid() {
		return nil, domain.ErrInvalidConfig
	}
	return &TimeoutTracker{
		cfg:     cfg,
		log:     slog.Default().With("module", "timeout_tracker"),
		pending: make(map[domain.OrderID]pendingOp),
	}, nil
}

// Start launches the checker goroutine. Idempotent.
func (t *TimeoutTracker) Start() {
	if t.running.Swap(true) {
		return
	}
	t.done = make(chan struct{})
	t.wg.Add(1)
	go t.checkLoop()
}

// Stop joins the checker. Idempotent.
func (t *TimeoutTracker) Stop() {
	if !t.running.Swap(false) {
		return
	}
	close(t.done)
	t.wg.Wait()
}

func (t *TimeoutTracker) TrackSubmit(id domain.OrderID)  { t.track(id, OpSubmit) }
func (t *TimeoutTracker) TrackCancel(id domain.OrderID)  { t.track(id, OpCancel) }
func (t *TimeoutTracker) TrackReplace(id domain.OrderID) { t.track(id, OpReplace) }

func (t *TimeoutTracker) track(id domain.OrderID, op OpType) {
	t.mu.Lock()
	t.pending[id] = pendingOp{op: op, started: time.Now()}
	t.mu.Unlock()
}

// ClearPending removes the entry; clearing an unknown id is a no-op.
func (t *TimeoutTracker) ClearPending(id domain.OrderID) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// HasPending reports whether the id has an in-flight operation.
func (t *TimeoutTracker) HasPending(id domain.OrderID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[id]
	return ok
}

// PendingCount returns the number of in-flight operations.
func (t *TimeoutTracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *TimeoutTracker) checkLoop() {
	defer t.wg.Done()
	for t.running.Load() {
		t.checkTimeouts()
		t.sleep(t.cfg.CheckInterval)
	}
}

// sleep waits in <=50ms chunks so Stop returns promptly.
func (t *TimeoutTracker) sleep(d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		chunk := remaining
		if chunk > 50*time.Millisecond {
			chunk = 50 * time.Millisecond
		}
		timer := time.NewTimer(chunk)
		select {
		case <-t.done:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

type timedOut struct {
	id domain.OrderID
	op OpType
}

func (t *TimeoutTracker) checkTimeouts() {
	now := time.Now()
	var expired []timedOut

	t.mu.Lock()
	for id, op := range t.pending {
		if now.Sub(op.started) >= t.timeoutFor(op.op) {
			expired = append(expired, timedOut{id: id, op: op.op})
			delete(t.pending, id)
		}
	}
	t.mu.Unlock()

	// Policy actions run outside the lock.
	for _, e := range expired {
		opName := e.op.String()
		switch t.cfg.Mode {
		case TimeoutReject:
			t.log.Warn("rejecting timed out order",
				slog.Uint64("order_id", uint64(e.id)), slog.String("op", opName))
			if t.cfg.OnReject != nil {
				t.cfg.OnReject(e.id, opName+" timeout")
			}

		case TimeoutCallback:
			if t.cfg.OnTimeout != nil {
				t.cfg.OnTimeout(e.id, opName)
			} else {
				t.log.Warn("timeout with no callback",
					slog.Uint64("order_id", uint64(e.id)), slog.String("op", opName))
			}

		case TimeoutReconcile:
			t.log.Info("reconcile needed",
				slog.Uint64("order_id", uint64(e.id)), slog.String("op", opName))
			if t.cfg.OnTimeout != nil {
				t.cfg.OnTimeout(e.id, opName)
			}

		default: // TimeoutLogOnly
			t.log.Warn("operation timed out",
				slog.Uint64("order_id", uint64(e.id)), slog.String("op", opName))
		}
	}
}

func (t *TimeoutTracker) timeoutFor(op OpType) time.Duration {
	switch op {
	case OpCancel:
		return t.cfg.CancelTimeout
	case OpReplace:
		return t.cfg.ReplaceTimeout
	default:
		return t.cfg.SubmitTimeout
	}
}
