package coverage

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// HistorySample is one analysed time point kept for trend display.
type HistorySample struct {
	AnalysisID   string    `json:"analysis_id"`
	Time         time.Time `json:"time"`
	VisibleCount int       `json:"visible_count"`
	Required     int       `json:"required"`
	Covered      bool      `json:"covered"`
}

// CoverageHistory is a bounded ring of the most recent samples. Appends of
// one analysis land atomically with respect to other appends.
type CoverageHistory struct {
	mu    sync.RWMutex
	buf   []HistorySample
	start int
	size  int
}

// NewCoverageHistory allocates a ring holding up to capacity samples.
func NewCoverageHistory(capacity int) *CoverageHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &CoverageHistory{buf: make([]HistorySample, capacity)}
}

// Append adds samples, evicting the oldest once full.
func (h *CoverageHistory) Append(samples ...HistorySample) {
	if h == nil || len(samples) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	capacity := len(h.buf)
	for _, s := range samples {
		if h.size < capacity {
			h.buf[(h.start+h.size)%capacity] = s
			h.size++
			continue
		}
		h.buf[h.start] = s
		h.start = (h.start + 1) % capacity
	}
}

// Samples returns the retained samples, oldest first.
func (h *CoverageHistory) Samples() []HistorySample {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistorySample, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Len returns the number of retained samples.
func (h *CoverageHistory) Len() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Capacity returns the ring size.
func (h *CoverageHistory) Capacity() int {
	if h == nil {
		return 0
	}
	return len(h.buf)
}

// HistoricalRecords implements HistoricalMetricsProvider: every retained
// sample becomes one up/down record.
func (h *CoverageHistory) HistoricalRecords(ctx context.Context, _ []model.SatelliteDescriptor) ([]HistoricalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	samples := h.Samples()
	out := make([]HistoricalRecord, len(samples))
	for i, s := range samples {
		out[i] = HistoricalRecord{ObservedAt: s.Time, Available: s.Covered}
	}
	return out, nil
}

// HistoricalRecord is one observed up/down outcome for the pool.
type HistoricalRecord struct {
	ObservedAt time.Time `json:"observed_at"`
	Available  bool      `json:"available"`
}

// HistoricalMetricsProvider supplies measured availability for a pool.
// Returning no records means no data; the assessor then falls back to the
// configured conservative default.
type HistoricalMetricsProvider interface {
	HistoricalRecords(ctx context.Context, pool []model.SatelliteDescriptor) ([]HistoricalRecord, error)
}

// StaticHistory serves a fixed record set, for callers that load telemetry
// elsewhere.
type StaticHistory []HistoricalRecord

// HistoricalRecords implements HistoricalMetricsProvider.
func (s StaticHistory) HistoricalRecords(context.Context, []model.SatelliteDescriptor) ([]HistoricalRecord, error) {
	return append([]HistoricalRecord(nil), s...), nil
}
