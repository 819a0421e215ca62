package rest

import (
	"yqhp/matmul-engine/internal/distributed"
	"yqhp/matmul-engine/pkg/types"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// MemberListResponse lists the joined members.
type MemberListResponse struct {
	Members []*types.MemberInfo `json:"members"`
	Total   int                 `json:"total"`
}

// SizeResponse reports the membership size.
type SizeResponse struct {
	Size int `json:"size"`
}

// StatsResponse reports executor latency statistics.
type StatsResponse struct {
	Latency distributed.LatencySnapshot `json:"latency"`
	Running int                         `json:"running"`
}
