package types

import "time"

// MemberInfo contains the registration information of a worker node.
type MemberInfo struct {
	ID       string            `json:"id"`
	Address  string            `json:"address"`
	Labels   map[string]string `json:"labels,omitempty"`
	JoinedAt time.Time         `json:"joined_at"`
}

// MemberState represents the membership state of a worker node.
type MemberState string

const (
	// MemberStateJoined indicates the member is registered and reachable.
	MemberStateJoined MemberState = "joined"
	// MemberStateLeft indicates the member left or stopped responding.
	MemberStateLeft MemberState = "left"
)

// MemberStatus is the liveness view of a member.
type MemberStatus struct {
	State    MemberState `json:"state"`
	LastSeen time.Time   `json:"last_seen"`
}

// MemberEventType defines the type of membership event.
type MemberEventType string

const (
	// MemberEventJoined indicates a member registered.
	MemberEventJoined MemberEventType = "joined"
	// MemberEventLeft indicates a member left gracefully.
	MemberEventLeft MemberEventType = "left"
	// MemberEventExpired indicates a member missed its liveness timeout.
	MemberEventExpired MemberEventType = "expired"
)

// MemberEvent represents a membership lifecycle event.
type MemberEvent struct {
	Type     MemberEventType
	MemberID string
	Member   *MemberInfo
}
