package protocol

import (
	"slices"
	"sync"
	"time"

	"github.com/wagiedev/dvl-a50-sdk-go/internal/errors"
)

// pendingRequest tracks an outgoing command awaiting its reply.
type pendingRequest struct {
	id       string
	command  string
	issuedAt time.Time
	timeout  time.Duration
	future   *Future
}

// expired reports whether the request has outlived its timeout at now.
func (r *pendingRequest) expired(now time.Time) bool {
	return now.Sub(r.issuedAt) >= r.timeout
}

// pendingTable maps a command type to the FIFO queue of its outstanding
// requests.
//
// A request leaves the table exactly once, through popOldest, remove, expire
// or drain. Whoever takes it out owns its completion.
type pendingTable struct {
	mu       sync.Mutex
	queues   map[string][]*pendingRequest
	count    int
	maxDepth int

	// closed is set by drain; later pushes fail with it.
	closed error
}

func newPendingTable(maxDepth int) *pendingTable {
	return &pendingTable{
		queues:   make(map[string][]*pendingRequest, 8),
		maxDepth: maxDepth,
	}
}

// push appends req to the queue of its command type.
func (t *pendingTable) push(req *pendingRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed != nil {
		return t.closed
	}

	q := t.queues[req.command]
	if t.maxDepth > 0 && len(q) >= t.maxDepth {
		return errors.ErrQueueFull
	}

	t.queues[req.command] = append(q, req)
	t.count++

	return nil
}

// popOldest removes and returns the oldest request for command, or nil.
func (t *pendingTable) popOldest(command string) *pendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.queues[command]
	if len(q) == 0 {
		return nil
	}

	req := q[0]
	q[0] = nil

	if len(q) == 1 {
		delete(t.queues, command)
	} else {
		t.queues[command] = q[1:]
	}

	t.count--

	return req
}

// remove takes req out of the table. It returns false if another goroutine
// already removed it.
func (t *pendingTable) remove(req *pendingRequest) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.queues[req.command]

	i := slices.Index(q, req)
	if i < 0 {
		return false
	}

	q = slices.Delete(q, i, i+1)
	if len(q) == 0 {
		delete(t.queues, req.command)
	} else {
		t.queues[req.command] = q
	}

	t.count--

	return true
}

// expire removes every request whose timeout has elapsed at now, keeping the
// order of the survivors.
func (t *pendingTable) expire(now time.Time) []*pendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []*pendingRequest

	for command, q := range t.queues {
		q = slices.DeleteFunc(q, func(req *pendingRequest) bool {
			if req.expired(now) {
				expired = append(expired, req)

				return true
			}

			return false
		})

		if len(q) == 0 {
			delete(t.queues, command)
		} else {
			t.queues[command] = q
		}
	}

	t.count -= len(expired)

	return expired
}

// drain empties the table and refuses further pushes with reason.
func (t *pendingTable) drain(reason error) []*pendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed == nil {
		t.closed = reason
	}

	drained := make([]*pendingRequest, 0, t.count)
	for _, q := range t.queues {
		drained = append(drained, q...)
	}

	clear(t.queues)
	t.count = 0

	return drained
}

// len returns the number of outstanding requests.
func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.count
}

// depth returns the number of outstanding requests for command.
func (t *pendingTable) depth(command string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.queues[command])
}
