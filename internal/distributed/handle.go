package distributed

import (
	"context"
	"sync"
	"time"

	"yqhp/matmul-engine/pkg/types"
)

// TaskHandle tracks the completion of one dispatched row task.
// It is pending until completed exactly once with a result.
type TaskHandle struct {
	row  int
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	member string
	result types.TaskResult
}

func newTaskHandle(row int) *TaskHandle {
	return &TaskHandle{row: row, done: make(chan struct{})}
}

// Row returns the row index the handle tracks.
func (h *TaskHandle) Row() int {
	return h.row
}

// State returns the current lifecycle state.
func (h *TaskHandle) State() types.TaskState {
	select {
	case <-h.done:
		return h.result.State()
	default:
		return types.TaskStatePending
	}
}

func (h *TaskHandle) assign(memberID string) {
	h.mu.Lock()
	h.member = memberID
	h.mu.Unlock()
}

func (h *TaskHandle) assigned() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.member
}

// complete resolves the handle. Later calls are ignored.
func (h *TaskHandle) complete(result types.TaskResult) {
	h.once.Do(func() {
		result.RowIndex = h.row
		h.result = result
		close(h.done)
	})
}

func (h *TaskHandle) fail(memberID string, err error) {
	h.complete(types.TaskResult{MemberID: memberID, Err: err})
}

// Wait blocks until the handle resolves, timeout elapses, or ctx is done.
// A timeout resolves with types.ErrTaskTimeout; the remote side may keep computing.
func (h *TaskHandle) Wait(ctx context.Context, timeout time.Duration) types.TaskResult {
	select {
	case <-h.done:
		return h.result
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.result
	case <-timer.C:
		return types.TaskResult{RowIndex: h.row, MemberID: h.assigned(), Err: types.ErrTaskTimeout}
	case <-ctx.Done():
		// a result that raced with cancellation still wins
		select {
		case <-h.done:
			return h.result
		default:
		}
		return types.TaskResult{RowIndex: h.row, MemberID: h.assigned(), Err: ctx.Err()}
	}
}
