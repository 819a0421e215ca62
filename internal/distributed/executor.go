package distributed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"yqhp/matmul-engine/internal/cluster"
	"yqhp/matmul-engine/internal/executor"
	"yqhp/matmul-engine/pkg/logger"
	"yqhp/matmul-engine/pkg/types"
)

var _ executor.Multiplier = (*Executor)(nil)

// Executor multiplies A x B by computing each row of C on a cluster member.
// It owns its worker pool and its transport; both are released by Shutdown.
type Executor struct {
	membership cluster.Membership
	transport  Transport
	pool       *ants.Pool
	opts       Options
	latency    *LatencyRecorder

	ctx    context.Context
	cancel context.CancelFunc

	next         atomic.Uint64
	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates the executor and its pool.
func New(membership cluster.Membership, transport Transport, opts Options) (*Executor, error) {
	if membership == nil {
		return nil, errors.New("membership cannot be nil")
	}
	if transport == nil {
		return nil, errors.New("transport cannot be nil")
	}
	opts = opts.withDefaults()

	pool, err := ants.NewPool(opts.PoolSize, ants.WithLogger(poolLogger{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create task pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		membership: membership,
		transport:  transport,
		pool:       pool,
		opts:       opts,
		latency:    NewLatencyRecorder(),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Name implements executor.Multiplier.
func (e *Executor) Name() string {
	return Name
}

// Multiply implements executor.Multiplier. Rows are dispatched asynchronously and
// collected in row order. The first failed row aborts the call with a
// *types.DistributedTaskFailure and no matrix; rows not yet started are cancelled.
func (e *Executor) Multiply(ctx context.Context, a, b *types.Matrix) (*types.Matrix, error) {
	if e.closed.Load() {
		return nil, types.ErrExecutorShutdown
	}
	if err := types.CheckMultiplicable(a, b); err != nil {
		return nil, err
	}

	members, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	rows := a.Rows()
	handles := make([]*TaskHandle, rows)
	for i := range handles {
		handles[i] = newTaskHandle(i)
	}
	go e.dispatch(callCtx, a, b, members, handles)

	c := types.Zeros(rows, b.Cols())
	wait := e.opts.collectTimeout()
	for i, h := range handles {
		result := h.Wait(callCtx, wait)
		if result.Err == nil && len(result.Values) != b.Cols() {
			result.Err = fmt.Errorf("member returned %d values, expected %d", len(result.Values), b.Cols())
		}
		if result.Err != nil {
			cancel()
			if e.closed.Load() && errors.Is(result.Err, context.Canceled) {
				result.Err = types.ErrExecutorShutdown
			}
			logger.Warn("distributed multiply aborted",
				zap.Int("row", i),
				zap.String("member", result.MemberID),
				zap.Error(result.Err))
			return nil, &types.DistributedTaskFailure{Row: i, MemberID: result.MemberID, Cause: result.Err}
		}
		if err := c.SetRow(i, result.Values); err != nil {
			return nil, &types.DistributedTaskFailure{Row: i, MemberID: result.MemberID, Cause: err}
		}
	}
	return c, nil
}

func (e *Executor) snapshot(ctx context.Context) ([]*types.MemberInfo, error) {
	qctx, cancel := context.WithTimeout(ctx, e.opts.MembershipTimeout)
	defer cancel()

	members, err := e.membership.Members(qctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMembershipUnavailable, err)
	}
	if len(members) == 0 {
		return nil, types.ErrMembershipUnavailable
	}
	return members, nil
}

// dispatch submits one task per row. Submission may block on a full pool; the caller
// is already collecting by then.
func (e *Executor) dispatch(ctx context.Context, a, b *types.Matrix, members []*types.MemberInfo, handles []*TaskHandle) {
	base := int(e.next.Add(uint64(len(handles))) - uint64(len(handles)))
	for i, h := range handles {
		if err := ctx.Err(); err != nil {
			failRemaining(handles[i:], err)
			return
		}
		task := types.NewRowTask(i, a, b)
		first := (base + i) % len(members)
		h.assign(members[first].ID)

		err := e.pool.Submit(func() {
			e.run(ctx, members, first, task, h)
		})
		if err != nil {
			if errors.Is(err, ants.ErrPoolClosed) {
				err = types.ErrExecutorShutdown
			}
			failRemaining(handles[i:], err)
			return
		}
	}
}

func failRemaining(handles []*TaskHandle, err error) {
	for _, h := range handles {
		h.fail(h.assigned(), err)
	}
}

// run executes one row, retrying on the following members of the snapshot.
func (e *Executor) run(ctx context.Context, members []*types.MemberInfo, first int, task types.RowTask, h *TaskHandle) {
	defer func() {
		if r := recover(); r != nil {
			h.fail(h.assigned(), fmt.Errorf("row task panicked: %v", r))
		}
	}()

	var (
		member *types.MemberInfo
		err    error
	)
	for attempt := 0; attempt <= e.opts.Retries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err == nil {
				err = cerr
			}
			break
		}
		member = members[(first+attempt)%len(members)]
		h.assign(member.ID)

		values, execErr := e.execute(ctx, member, task)
		if execErr == nil {
			h.complete(types.TaskResult{Values: values, MemberID: member.ID})
			return
		}
		err = execErr
		logger.Debug("row task failed",
			zap.Int("row", task.RowIndex),
			zap.String("member", member.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(execErr))
	}
	memberID := h.assigned()
	h.fail(memberID, err)
}

func (e *Executor) execute(ctx context.Context, member *types.MemberInfo, task types.RowTask) ([]float64, error) {
	tctx, cancel := context.WithTimeout(ctx, e.opts.TaskTimeout)
	defer cancel()

	start := time.Now()
	values, err := e.transport.Execute(tctx, member, task)
	e.latency.Record(time.Since(start))
	if err != nil {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", types.ErrTaskTimeout, err)
		}
		return nil, err
	}
	if len(values) != task.B.Cols() {
		return nil, fmt.Errorf("member %s returned %d values, expected %d", member.ID, len(values), task.B.Cols())
	}
	return values, nil
}

// CurrentMembershipSize returns the number of joined members, or 0 when membership
// cannot be queried.
func (e *Executor) CurrentMembershipSize() int {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.MembershipTimeout)
	defer cancel()

	n, err := e.membership.Size(ctx)
	if err != nil {
		logger.Warn("failed to query membership size", zap.Error(err))
		return 0
	}
	return n
}

// LatencyStats returns per-task round-trip latency percentiles.
func (e *Executor) LatencyStats() LatencySnapshot {
	return e.latency.Snapshot()
}

// Running returns the number of row tasks currently executing.
func (e *Executor) Running() int {
	return e.pool.Running()
}

// Shutdown cancels outstanding work, releases the pool, and closes the transport.
// Only the first call has an effect.
func (e *Executor) Shutdown() error {
	e.shutdownOnce.Do(func() {
		e.closed.Store(true)
		e.cancel()

		var errs []error
		if err := e.pool.ReleaseTimeout(e.opts.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to release task pool: %w", err))
		}
		if err := e.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
		}
		e.shutdownErr = errors.Join(errs...)
		logger.Info("distributed executor shut down")
	})
	return e.shutdownErr
}

type poolLogger struct{}

func (poolLogger) Printf(format string, args ...any) {
	logger.L().Sugar().Infof(format, args...)
}
