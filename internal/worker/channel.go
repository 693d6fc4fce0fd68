package worker

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State describes the channel lifecycle.
//
// Uninitialized -> Initializing -> Ready -> {Busy -> Ready}* and back to
// Uninitialized on crash or cancel. Closed is terminal.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateBusy
	StateClosed
)

// String returns a readable state name for logs and test failures.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// outcome is the correlated reply delivered to a waiting Send call.
type outcome struct {
	result Result
	err    error
}

// Channel dispatches requests to one-shot compute units and correlates
// replies by request id.
//
// Execution is serialized: the compute unit is resource-intensive, so even
// though Send may be called concurrently, at most one unit runs at a time.
// Requests queued behind an in-flight invocation remain in the pending
// table and are rejected en masse if the channel crashes or is cancelled.
type Channel struct {
	factory UnitFactory
	log     *slog.Logger

	mu      sync.Mutex
	state   State
	epoch   int64 // bumped on every reset; guards stale crash reports
	warm    Unit  // unit pre-created by Init, consumed by the next request
	current Unit  // unit executing right now, Kill target
	nextID  int64
	pending map[int64]chan outcome

	// execMu serializes actual unit execution across Send calls.
	execMu sync.Mutex

	initGroup singleflight.Group
}

// NewChannel creates a channel around the given unit factory.
// A nil logger discards debug output.
func NewChannel(factory UnitFactory, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Channel{
		factory: factory,
		log:     log,
		pending: make(map[int64]chan outcome),
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Init prepares the channel for requests. It is idempotent: a ready
// channel returns immediately, and concurrent callers share a single
// in-flight initialization (no duplicate units are created).
//
// Initialization creates one unit up front. That both validates the
// environment (a missing engine binary fails here, not on first render)
// and pre-pays creation cost for the first request.
func (c *Channel) Init(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return &ChannelError{Code: ErrCodeClosed, Message: "channel is closed"}
	case StateReady, StateBusy:
		c.mu.Unlock()
		return nil
	}
	c.state = StateInitializing
	c.mu.Unlock()

	_, err, _ := c.initGroup.Do("init", func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u, err := c.factory()
		if err != nil {
			return nil, &ChannelError{Code: ErrCodeInitFailed, Message: "unit creation failed", Err: err}
		}
		// Stored here, inside the deduplicated section: every shared
		// caller sees the same single unit.
		c.mu.Lock()
		c.warm = u
		c.mu.Unlock()
		return nil, nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return &ChannelError{Code: ErrCodeClosed, Message: "channel is closed"}
	}
	if err != nil {
		c.state = StateUninitialized
		return err
	}
	if c.state == StateInitializing {
		c.state = StateReady
	}
	return nil
}

// Send dispatches one request and blocks until the correlated reply,
// a channel-level rejection, or ctx expiry.
//
// Each request runs on a fresh unit; the unit created by Init serves the
// first request, every later request creates its own. If ctx expires the
// wait is abandoned but the unit is not terminated; Cancel is the only
// primitive that kills an in-flight unit.
func (c *Channel) Send(ctx context.Context, req Request) (Result, error) {
	if err := c.Init(ctx); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return Result{}, &ChannelError{Code: ErrCodeClosed, Message: "channel is closed"}
	}
	c.nextID++
	id := c.nextID
	ch := make(chan outcome, 1)
	c.pending[id] = ch
	epoch := c.epoch
	c.mu.Unlock()

	c.log.Debug("dispatching request", "id", id, "args", req.Args)
	go c.invoke(id, epoch, req)

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return Result{}, ctx.Err()
	}
}

// invoke runs one request on a fresh unit. Runs on its own goroutine so
// Send can observe cancellation while queued behind other work.
func (c *Channel) invoke(id, epoch int64, req Request) {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	c.mu.Lock()
	if _, waiting := c.pending[id]; !waiting || c.epoch != epoch {
		// Rejected (cancel/crash) or abandoned while queued.
		c.mu.Unlock()
		return
	}
	unit := c.warm
	c.warm = nil
	c.mu.Unlock()

	if unit == nil {
		u, err := c.factory()
		if err != nil {
			c.reject(epoch, &ChannelError{Code: ErrCodeCrashed, Message: "unit creation failed", Err: err})
			return
		}
		unit = u
	}

	c.mu.Lock()
	c.current = unit
	if c.state == StateReady {
		c.state = StateBusy
	}
	c.mu.Unlock()

	res, err := unit.Invoke(context.Background(), req)

	c.mu.Lock()
	c.current = nil
	if c.state == StateBusy {
		c.state = StateReady
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Debug("unit crashed", "id", id, "err", err)
		c.reject(epoch, &ChannelError{Code: ErrCodeCrashed, Message: "compute unit terminated abnormally", Err: err})
		return
	}
	c.resolve(id, res)
}

// resolve delivers a successful result to its waiter, if still waiting.
func (c *Channel) resolve(id int64, res Result) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		ch <- outcome{result: res}
	}
}

// reject fails every pending request and resets the channel so the next
// call re-initializes. Stale reports from a previous epoch (a unit killed
// by an earlier Cancel) are ignored.
func (c *Channel) reject(epoch int64, err error) {
	c.mu.Lock()
	if c.epoch != epoch || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	chans := c.drainLocked()
	c.mu.Unlock()

	for _, ch := range chans {
		ch <- outcome{err: err}
	}
}

// drainLocked empties the pending table, discards the warm unit, bumps
// the epoch, and resets state. Caller must hold c.mu and deliver the
// returned channels after unlocking.
func (c *Channel) drainLocked() []chan outcome {
	chans := make([]chan outcome, 0, len(c.pending))
	for _, ch := range c.pending {
		chans = append(chans, ch)
	}
	c.pending = make(map[int64]chan outcome)
	c.warm = nil
	c.epoch++
	if c.state != StateClosed {
		c.state = StateUninitialized
	}
	return chans
}

// Cancel force-terminates the in-flight unit, rejects every pending
// request with a cancellation error, and resets the channel. The next
// call re-initializes transparently.
func (c *Channel) Cancel() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	cur := c.current
	c.current = nil
	chans := c.drainLocked()
	c.mu.Unlock()

	if cur != nil {
		cur.Kill()
	}
	cancelErr := &ChannelError{Code: ErrCodeCancelled, Message: "request cancelled"}
	for _, ch := range chans {
		ch <- outcome{err: cancelErr}
	}
	c.log.Debug("channel cancelled", "rejected", len(chans))
}

// Close permanently shuts the channel down. In-flight work is terminated
// and pending requests are rejected as cancelled; all further Init and
// Send calls fail with a closed error.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	cur := c.current
	c.current = nil
	chans := c.drainLocked()
	c.state = StateClosed
	c.mu.Unlock()

	if cur != nil {
		cur.Kill()
	}
	cancelErr := &ChannelError{Code: ErrCodeCancelled, Message: "request cancelled"}
	for _, ch := range chans {
		ch <- outcome{err: cancelErr}
	}
}

// PendingCount returns the number of in-flight requests. Intended for
// tests and introspection.
func (c *Channel) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
