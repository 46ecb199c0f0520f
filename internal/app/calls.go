package app

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shhac/battp/internal/domain"
)

// CallResult is the outcome of one execution of a saved request.
type CallResult struct {
	InvocationID string
	WorkspaceID  string
	RequestID    int64
	Response     *domain.Response
	Err          error
	// Stale is set when a newer invocation of the same request began before
	// this one finished. Stale results are never recorded as the latest.
	Stale bool
}

type callKey struct {
	workspaceID string
	requestID   int64
}

// Calls tracks in-flight executions by invocation id so each can be
// cancelled, and keeps the latest result per saved request.
type Calls struct {
	mu      sync.Mutex
	newest  map[callKey]string
	cancels map[string]context.CancelFunc
	results map[callKey]CallResult
}

// NewCalls creates an empty tracker.
func NewCalls() *Calls {
	return &Calls{
		newest:  make(map[callKey]string),
		cancels: make(map[string]context.CancelFunc),
		results: make(map[callKey]CallResult),
	}
}

// Begin registers a new invocation of a saved request. It returns the
// invocation id and a context that Cancel(id) cancels. Earlier invocations
// of the same request keep running but will finish stale.
func (c *Calls) Begin(ctx context.Context, workspaceID string, requestID int64) (string, context.Context) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.newest[callKey{workspaceID, requestID}] = id
	c.cancels[id] = cancel
	return id, ctx
}

// Finish completes an invocation. The result is recorded as the latest for
// its request unless a newer invocation has begun, in which case it comes
// back with Stale set.
func (c *Calls) Finish(res CallResult) CallResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cancel, ok := c.cancels[res.InvocationID]; ok {
		cancel()
		delete(c.cancels, res.InvocationID)
	}

	key := callKey{res.WorkspaceID, res.RequestID}
	res.Stale = c.newest[key] != res.InvocationID
	if !res.Stale {
		c.results[key] = res
	}
	return res
}

// Cancel aborts an in-flight invocation. It reports whether one was found.
func (c *Calls) Cancel(invocationID string) bool {
	c.mu.Lock()
	cancel, ok := c.cancels[invocationID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// CancelAll aborts every in-flight invocation.
func (c *Calls) CancelAll() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.cancels))
	for _, cancel := range c.cancels {
		cancels = append(cancels, cancel)
	}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// InFlight returns the number of unfinished invocations.
func (c *Calls) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cancels)
}

// Latest returns the newest recorded result for a saved request.
func (c *Calls) Latest(workspaceID string, requestID int64) (CallResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.results[callKey{workspaceID, requestID}]
	return res, ok
}

// Forget drops tracking state for a request, for example after it is
// deleted.
func (c *Calls) Forget(workspaceID string, requestID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := callKey{workspaceID, requestID}
	delete(c.newest, key)
	delete(c.results, key)
}
