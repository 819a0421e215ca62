package types

// BenchmarkRecord is one measurement of a strategy at a matrix size.
type BenchmarkRecord struct {
	Algorithm     string  `json:"algorithm" gorm:"column:algorithm;size:64"`
	MatrixSize    int     `json:"matrix_size" gorm:"column:matrix_size"`
	ExecMs        int64   `json:"exec_ms" gorm:"column:exec_ms"`
	MemMB         float64 `json:"mem_mb" gorm:"column:mem_mb"`
	CPUPct        float64 `json:"cpu_pct" gorm:"column:cpu_pct"`
	NodesUsed     int     `json:"nodes_used" gorm:"column:nodes_used"`
	NetOverheadMs int64   `json:"net_overhead_ms" gorm:"column:net_overhead_ms"`
	TransferMs    int64   `json:"transfer_ms" gorm:"column:transfer_ms"`
}
