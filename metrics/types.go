// Package metrics records image generation calls: a Prometheus collector
// for scraping, an in-memory store for recent history and per-operation
// summaries, and Instrument, which wraps any imagegen.ImageProvider to feed
// both.
package metrics

import "time"

// CallRecord describes one completed provider call.
type CallRecord struct {
	// ID is the unique identifier for this call
	ID string `json:"id"`

	// Provider is the backend identifier, e.g. "SDAPI_V1"
	Provider string `json:"provider"`

	// Operation is one of the Op constants
	Operation string `json:"operation"`

	// Status is one of the Status constants
	Status string `json:"status"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Images is the number of images returned
	Images int `json:"images"`

	// ErrorMsg contains error details when Status is not success
	ErrorMsg string `json:"error_msg,omitempty"`
}

// CallMetrics aggregates every recorded call.
type CallMetrics struct {
	TotalCalls   int64 `json:"total_calls"`
	TotalSuccess int64 `json:"total_success"`
	TotalErrors  int64 `json:"total_errors"`

	// ByOperation is keyed by "<provider>/<operation>"
	ByOperation map[string]*OperationMetrics `json:"by_operation"`
}

// OperationMetrics summarizes one provider operation.
type OperationMetrics struct {
	Count int64 `json:"count"`

	// SuccessRate is the percentage of successful calls (0-100)
	SuccessRate float64 `json:"success_rate"`

	AvgDuration time.Duration `json:"avg_duration"`
	Images      int64         `json:"images"`
}

// Operation names.
const (
	OpTxt2Img = "txt2img"
	OpImg2Img = "img2img"
	OpUpscale = "upscale"
	OpInfos   = "infos"
)

// Status values for CallRecord.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusTimeout  = "timeout"
	StatusCanceled = "canceled"
)

// Recorder receives completed call records. Implementations must be safe
// for concurrent use.
type Recorder interface {
	Record(rec CallRecord)
}
