package distributed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"yqhp/matmul-engine/internal/executor"
	"yqhp/matmul-engine/pkg/types"
)

// LocalScheme prefixes the address of an in-process member.
const LocalScheme = "inproc://"

// Transport delivers a row task to a member and returns the computed row.
type Transport interface {
	Execute(ctx context.Context, member *types.MemberInfo, task types.RowTask) ([]float64, error)
	Close() error
}

// LocalAddress returns the in-process address for id.
func LocalAddress(id string) string {
	return LocalScheme + id
}

// IsLocal reports whether address names an in-process member.
func IsLocal(address string) bool {
	return strings.HasPrefix(address, LocalScheme)
}

// LocalTransport computes row tasks in process. Faults and latency can be injected
// per row or per member.
type LocalTransport struct {
	kernel executor.RowKernel

	mu           sync.RWMutex
	latency      time.Duration
	memberDelay  map[string]time.Duration
	rowFaults    map[int]error
	memberFaults map[string]error
	calls        map[string]int
	closed       bool
}

// NewLocalTransport creates an in-process transport using the checked row kernel.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		kernel:       executor.CheckedMultiplyRow,
		rowFaults:    make(map[int]error),
		memberFaults: make(map[string]error),
		memberDelay:  make(map[string]time.Duration),
		calls:        make(map[string]int),
	}
}

// SetLatency delays every task by d before computing it.
func (t *LocalTransport) SetLatency(d time.Duration) {
	t.mu.Lock()
	t.latency = d
	t.mu.Unlock()
}

// SetMemberLatency delays every task sent to memberID by d, overriding SetLatency.
func (t *LocalTransport) SetMemberLatency(memberID string, d time.Duration) {
	t.mu.Lock()
	t.memberDelay[memberID] = d
	t.mu.Unlock()
}

// FailRow makes every attempt of row fail with err.
func (t *LocalTransport) FailRow(row int, err error) {
	t.mu.Lock()
	t.rowFaults[row] = err
	t.mu.Unlock()
}

// FailMember makes every task sent to memberID fail with err.
func (t *LocalTransport) FailMember(memberID string, err error) {
	t.mu.Lock()
	t.memberFaults[memberID] = err
	t.mu.Unlock()
}

// Calls returns how many tasks memberID received.
func (t *LocalTransport) Calls(memberID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calls[memberID]
}

// Execute implements Transport.
func (t *LocalTransport) Execute(ctx context.Context, member *types.MemberInfo, task types.RowTask) ([]float64, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.New("local transport is closed")
	}
	t.calls[member.ID]++
	latency := t.latency
	if d, ok := t.memberDelay[member.ID]; ok {
		latency = d
	}
	rowErr := t.rowFaults[task.RowIndex]
	memberErr := t.memberFaults[member.ID]
	t.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	if memberErr != nil {
		return nil, memberErr
	}
	if rowErr != nil {
		return nil, rowErr
	}
	return t.kernel(task.Row, task.B)
}

// Close implements Transport.
func (t *LocalTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// MuxTransport sends tasks for in-process members to local and everything else to remote.
type MuxTransport struct {
	local  Transport
	remote Transport
}

// NewMuxTransport creates a routing transport. Either side may be nil.
func NewMuxTransport(local, remote Transport) *MuxTransport {
	return &MuxTransport{local: local, remote: remote}
}

// Execute implements Transport.
func (m *MuxTransport) Execute(ctx context.Context, member *types.MemberInfo, task types.RowTask) ([]float64, error) {
	target := m.remote
	if IsLocal(member.Address) {
		target = m.local
	}
	if target == nil {
		return nil, fmt.Errorf("no transport for member %s at %s", member.ID, member.Address)
	}
	return target.Execute(ctx, member, task)
}

// Close implements Transport.
func (m *MuxTransport) Close() error {
	var errs []error
	for _, t := range []Transport{m.local, m.remote} {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
