package metrics

import (
	"sync"
	"time"
)

// Store keeps the most recent call records in a ring buffer and running
// per-operation totals.
//
// Usage:
//
//	store := metrics.NewStore(100)
//	provider = metrics.Instrument(provider, nil, store)
//	summary := store.Summary()
type Store struct {
	mu sync.RWMutex

	history []CallRecord
	cap     int
	head    int
	size    int

	totalCalls   int64
	totalSuccess int64
	totalErrors  int64
	byOperation  map[string]*operationStats
}

type operationStats struct {
	count         int64
	successCount  int64
	images        int64
	totalDuration time.Duration
}

// DefaultHistoryCapacity is used when NewStore gets a non-positive capacity.
const DefaultHistoryCapacity = 100

// NewStore creates a store retaining up to capacity records.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &Store{
		history:     make([]CallRecord, capacity),
		cap:         capacity,
		byOperation: make(map[string]*operationStats),
	}
}

// Record implements Recorder.
func (s *Store) Record(rec CallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = rec
	s.head = (s.head + 1) % s.cap
	if s.size < s.cap {
		s.size++
	}

	s.totalCalls++
	if rec.Status == StatusSuccess {
		s.totalSuccess++
	} else {
		s.totalErrors++
	}

	key := rec.Provider + "/" + rec.Operation
	stats, ok := s.byOperation[key]
	if !ok {
		stats = &operationStats{}
		s.byOperation[key] = stats
	}
	stats.count++
	if rec.Status == StatusSuccess {
		stats.successCount++
	}
	stats.images += int64(rec.Images)
	stats.totalDuration += rec.Duration
}

// Summary returns the aggregated totals.
func (s *Store) Summary() CallMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := CallMetrics{
		TotalCalls:   s.totalCalls,
		TotalSuccess: s.totalSuccess,
		TotalErrors:  s.totalErrors,
		ByOperation:  make(map[string]*OperationMetrics, len(s.byOperation)),
	}
	for key, stats := range s.byOperation {
		m.ByOperation[key] = &OperationMetrics{
			Count:       stats.count,
			SuccessRate: float64(stats.successCount) / float64(stats.count) * 100,
			AvgDuration: stats.totalDuration / time.Duration(stats.count),
			Images:      stats.images,
		}
	}
	return m
}

// Recent returns up to limit records, oldest first.
func (s *Store) Recent(limit int) []CallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []CallRecord{}
	}
	limit = min(limit, s.size)

	result := make([]CallRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - limit + i + s.cap) % s.cap
		result[i] = s.history[idx]
	}
	return result
}

var _ Recorder = (*Store)(nil)
