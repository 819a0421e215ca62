package cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"yqhp/matmul-engine/pkg/logger"
	"yqhp/matmul-engine/pkg/types"
)

// DefaultLivenessTimeout is the heartbeat window after which a member is considered left.
const DefaultLivenessTimeout = 15 * time.Second

// MemoryOption configures an InMemoryMembership.
type MemoryOption func(*InMemoryMembership)

// WithClock sets the clock used for liveness bookkeeping.
func WithClock(clock clockwork.Clock) MemoryOption {
	return func(m *InMemoryMembership) {
		m.clock = clock
	}
}

// WithLivenessTimeout sets the heartbeat window.
func WithLivenessTimeout(d time.Duration) MemoryOption {
	return func(m *InMemoryMembership) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// InMemoryMembership keeps the member table in process memory.
type InMemoryMembership struct {
	members map[string]*types.MemberInfo
	status  map[string]*types.MemberStatus
	mu      sync.RWMutex

	events  broadcaster
	clock   clockwork.Clock
	timeout time.Duration
}

// NewInMemoryMembership creates an empty in-memory membership.
func NewInMemoryMembership(opts ...MemoryOption) *InMemoryMembership {
	m := &InMemoryMembership{
		members: make(map[string]*types.MemberInfo),
		status:  make(map[string]*types.MemberStatus),
		clock:   clockwork.NewRealClock(),
		timeout: DefaultLivenessTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register implements Membership.
func (m *InMemoryMembership) Register(ctx context.Context, member *types.MemberInfo) error {
	if err := validateMember(member); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.members[member.ID]; exists {
		return fmt.Errorf("%w: %s", ErrMemberExists, member.ID)
	}

	info := *member
	now := m.clock.Now()
	if info.JoinedAt.IsZero() {
		info.JoinedAt = now
	}
	m.members[info.ID] = &info
	m.status[info.ID] = &types.MemberStatus{State: types.MemberStateJoined, LastSeen: now}

	logger.Info("member joined", zap.String("member", info.ID), zap.String("address", info.Address))
	m.events.publish(&types.MemberEvent{Type: types.MemberEventJoined, MemberID: info.ID, Member: &info})
	return nil
}

// Heartbeat implements Membership.
func (m *InMemoryMembership) Heartbeat(ctx context.Context, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, exists := m.status[memberID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	status.LastSeen = m.clock.Now()
	return nil
}

// Leave implements Membership.
func (m *InMemoryMembership) Leave(ctx context.Context, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, exists := m.members[memberID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	m.remove(memberID)

	logger.Info("member left", zap.String("member", memberID))
	m.events.publish(&types.MemberEvent{Type: types.MemberEventLeft, MemberID: memberID, Member: member})
	return nil
}

// Members implements Membership.
func (m *InMemoryMembership) Members(ctx context.Context) ([]*types.MemberInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.MemberInfo, 0, len(m.members))
	for _, member := range m.members {
		copied := *member
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Size implements Membership.
func (m *InMemoryMembership) Size(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members), nil
}

// Status returns the liveness view of a joined member.
func (m *InMemoryMembership) Status(memberID string) (types.MemberStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.status[memberID]
	if !exists {
		return types.MemberStatus{State: types.MemberStateLeft}, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	return *status, nil
}

// Watch implements Membership.
func (m *InMemoryMembership) Watch(ctx context.Context) (<-chan *types.MemberEvent, error) {
	return m.events.watch(ctx), nil
}

// Sweep removes members whose last heartbeat is older than the liveness timeout
// and returns their IDs.
func (m *InMemoryMembership) Sweep() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var expired []string
	for id, status := range m.status {
		if now.Sub(status.LastSeen) <= m.timeout {
			continue
		}
		member := m.members[id]
		m.remove(id)
		expired = append(expired, id)

		logger.Warn("member expired",
			zap.String("member", id),
			zap.Duration("since_last_seen", now.Sub(status.LastSeen)))
		m.events.publish(&types.MemberEvent{Type: types.MemberEventExpired, MemberID: id, Member: member})
	}
	sort.Strings(expired)
	return expired
}

// Close ends all watches.
func (m *InMemoryMembership) Close() error {
	m.events.closeAll()
	return nil
}

// remove must be called with mu held.
func (m *InMemoryMembership) remove(id string) {
	delete(m.members, id)
	delete(m.status, id)
}
