package notification

// DeliveryStats is the windowed aggregation over delivery_logs consumed by
// the debug dashboard. Latency fields cover DELIVERED rows only.
type DeliveryStats struct {
	Total        int64   `json:"total"`
	Delivered    int64   `json:"delivered"`
	Polled       int64   `json:"polled"`
	Failed       int64   `json:"failed"`
	Pending      int64   `json:"pending"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MinLatencyMs int64   `json:"min_latency_ms"`
	MaxLatencyMs int64   `json:"max_latency_ms"`
}
