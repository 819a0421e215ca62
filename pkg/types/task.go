package types

// RowTask is the unit of distributed work: one row of A times the full matrix B.
// B is shared by every task of one multiplication and is never mutated while tasks run.
type RowTask struct {
	RowIndex int
	Row      []float64
	B        *Matrix
}

// NewRowTask builds the task for row i of a.
func NewRowTask(i int, a, b *Matrix) RowTask {
	return RowTask{RowIndex: i, Row: a.Row(i), B: b}
}

// TaskState is the lifecycle state of a dispatched task.
type TaskState string

const (
	// TaskStatePending indicates the task result is not yet available.
	TaskStatePending TaskState = "pending"
	// TaskStateCompleted indicates the task produced its row.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed indicates the task could not be completed.
	TaskStateFailed TaskState = "failed"
)

// TaskResult is the outcome of one RowTask. Err is non-nil for a failed task.
type TaskResult struct {
	RowIndex int
	Values   []float64
	MemberID string
	Err      error
}

// State returns the terminal state described by the result.
func (r TaskResult) State() TaskState {
	if r.Err != nil {
		return TaskStateFailed
	}
	return TaskStateCompleted
}
