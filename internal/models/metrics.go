package models

import "time"

// MetricsSnapshot aggregates process counters for the metrics summary endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	SlotMutations            uint64    `json:"slot_mutations"`
	SlotRejections           uint64    `json:"slot_rejections"`
	StoreCalls               uint64    `json:"store_calls"`
	AverageStoreCallMs       float64   `json:"average_store_call_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
