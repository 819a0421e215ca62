// Package cluster tracks which worker nodes are available to receive row tasks.
package cluster

import (
	"context"
	"errors"

	"yqhp/matmul-engine/pkg/types"
)

var (
	// ErrMemberNotFound is returned for operations on an unknown or departed member.
	ErrMemberNotFound = errors.New("member not found")
	// ErrMemberExists is returned when registering an ID that is already joined.
	ErrMemberExists = errors.New("member already registered")
)

// Membership is the cluster view consumed by the distributed executor and the coordinator.
// Implementations only guarantee eventual agreement between observers.
type Membership interface {
	// Register moves a member from unknown to joined.
	Register(ctx context.Context, member *types.MemberInfo) error
	// Heartbeat refreshes the liveness of a joined member.
	Heartbeat(ctx context.Context, memberID string) error
	// Leave moves a joined member to left.
	Leave(ctx context.Context, memberID string) error
	// Members returns a snapshot of the joined members ordered by ID.
	Members(ctx context.Context) ([]*types.MemberInfo, error)
	// Size returns the number of joined members.
	Size(ctx context.Context) (int, error)
	// Watch streams membership events until ctx is done.
	Watch(ctx context.Context) (<-chan *types.MemberEvent, error)
}

func validateMember(member *types.MemberInfo) error {
	if member == nil {
		return errors.New("member cannot be nil")
	}
	if member.ID == "" {
		return errors.New("member ID cannot be empty")
	}
	if member.Address == "" {
		return errors.New("member address cannot be empty")
	}
	return nil
}
