package wire

import (
	"fmt"
	"time"

	"yqhp/matmul-engine/pkg/types"
)

// RowTaskToRequest converts a row task to its wire form. The rows of B are shared, not copied.
func RowTaskToRequest(task types.RowTask, memberID string) *RowTaskRequest {
	b := make([][]float64, task.B.Rows())
	for i := range b {
		b[i] = task.B.Row(i)
	}
	return &RowTaskRequest{
		RowIndex: task.RowIndex,
		Row:      task.Row,
		B:        b,
		MemberID: memberID,
	}
}

// RequestToRowTask validates and converts a wire request.
func RequestToRowTask(req *RowTaskRequest) (types.RowTask, error) {
	if req == nil {
		return types.RowTask{}, fmt.Errorf("request cannot be nil")
	}
	if req.RowIndex < 0 {
		return types.RowTask{}, fmt.Errorf("invalid row index %d", req.RowIndex)
	}
	b, err := types.NewMatrix(req.B)
	if err != nil {
		return types.RowTask{}, fmt.Errorf("invalid matrix B: %w", err)
	}
	if len(req.Row) != b.Rows() {
		return types.RowTask{}, &types.DimensionMismatchError{ARows: 1, ACols: len(req.Row), BRows: b.Rows(), BCols: b.Cols()}
	}
	return types.RowTask{RowIndex: req.RowIndex, Row: req.Row, B: b}, nil
}

// MemberToWire converts member info to its wire form.
func MemberToWire(info *types.MemberInfo) *Member {
	if info == nil {
		return nil
	}
	m := &Member{
		ID:      info.ID,
		Address: info.Address,
		Labels:  info.Labels,
	}
	if !info.JoinedAt.IsZero() {
		m.JoinedAtUnix = info.JoinedAt.UnixMilli()
	}
	return m
}

// WireToMember converts a wire member to member info.
func WireToMember(m *Member) *types.MemberInfo {
	if m == nil {
		return nil
	}
	info := &types.MemberInfo{
		ID:      m.ID,
		Address: m.Address,
		Labels:  m.Labels,
	}
	if m.JoinedAtUnix > 0 {
		info.JoinedAt = time.UnixMilli(m.JoinedAtUnix)
	}
	return info
}

// MembersToWire converts a member list.
func MembersToWire(members []*types.MemberInfo) []*Member {
	out := make([]*Member, 0, len(members))
	for _, m := range members {
		out = append(out, MemberToWire(m))
	}
	return out
}

// WireToMembers converts a wire member list.
func WireToMembers(members []*Member) []*types.MemberInfo {
	out := make([]*types.MemberInfo, 0, len(members))
	for _, m := range members {
		if info := WireToMember(m); info != nil {
			out = append(out, info)
		}
	}
	return out
}
