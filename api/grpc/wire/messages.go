package wire

// RowTaskRequest asks a worker to compute one output row.
type RowTaskRequest struct {
	RowIndex int         `json:"row_index"`
	Row      []float64   `json:"row"`
	B        [][]float64 `json:"b"`
	MemberID string      `json:"member_id,omitempty"`
}

// RowTaskResponse carries a computed row.
type RowTaskResponse struct {
	RowIndex      int       `json:"row_index"`
	Values        []float64 `json:"values"`
	MemberID      string    `json:"member_id"`
	ComputeMicros int64     `json:"compute_micros"`
}

// Member is the wire form of types.MemberInfo.
type Member struct {
	ID           string            `json:"id"`
	Address      string            `json:"address"`
	Labels       map[string]string `json:"labels,omitempty"`
	JoinedAtUnix int64             `json:"joined_at_unix_ms,omitempty"`
}

// RegisterRequest announces a worker to the coordinator.
type RegisterRequest struct {
	Member *Member `json:"member"`
}

// RegisterResponse reports whether the registration was accepted.
type RegisterResponse struct {
	Accepted            bool   `json:"accepted"`
	Error               string `json:"error,omitempty"`
	MemberID            string `json:"member_id"`
	HeartbeatIntervalMs int64  `json:"heartbeat_interval_ms"`
	LivenessTimeoutMs   int64  `json:"liveness_timeout_ms"`
}

// HeartbeatRequest refreshes a member's liveness.
type HeartbeatRequest struct {
	MemberID  string `json:"member_id"`
	Timestamp int64  `json:"timestamp"`
}

// HeartbeatResponse acknowledges a heartbeat.
type HeartbeatResponse struct {
	ServerTime int64 `json:"server_time"`
}

// LeaveRequest removes a member.
type LeaveRequest struct {
	MemberID string `json:"member_id"`
}

// LeaveResponse acknowledges a leave.
type LeaveResponse struct{}

// ListMembersRequest asks for the joined members.
type ListMembersRequest struct{}

// ListMembersResponse lists the joined members.
type ListMembersResponse struct {
	Members []*Member `json:"members"`
}
