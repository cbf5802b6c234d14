package models

import "time"

// UrlResult is the outcome record for one submitted URL line
type UrlResult struct {
	URL        string           `json:"url" yaml:"url"`
	Status     ProcessingStatus `json:"status" yaml:"status"`
	Data       string           `json:"data,omitempty" yaml:"data,omitempty"`               // Content (done only)
	DataType   ProcessingMode   `json:"data_type,omitempty" yaml:"data_type,omitempty"`     // Mode active at submission (done only)
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`             // Short user-facing message (failed only)
	Reason     string           `json:"reason,omitempty" yaml:"reason,omitempty"`           // Policy stage explanation
	TokenCount int              `json:"token_count,omitempty" yaml:"token_count,omitempty"` // Approximate tokens in Data, -1 if unknown
}

// NewPendingResult returns the initial record for a URL that has just been submitted
func NewPendingResult(url string) UrlResult {
	return UrlResult{URL: url, Status: StatusPending}
}

// NewBlockedResult returns the record for a URL the policy stage refused
func NewBlockedResult(url, reason string) UrlResult {
	return UrlResult{URL: url, Status: StatusBlocked, Reason: reason}
}

// NewFailedResult returns the record for a URL whose processing failed.
// reason is empty when the failure happened before the policy stage produced one.
func NewFailedResult(url, message, reason string) UrlResult {
	return UrlResult{URL: url, Status: StatusFailed, Error: message, Reason: reason}
}

// HasData reports whether the result carries exportable content
func (r UrlResult) HasData() bool {
	return r.Status == StatusDone && r.Data != ""
}

// BatchRecord is the archived form of a finished batch
type BatchRecord struct {
	ID               string         `json:"id" yaml:"id"`
	Mode             ProcessingMode `json:"mode" yaml:"mode"`
	ExtractionPrompt string         `json:"extraction_prompt,omitempty" yaml:"extraction_prompt,omitempty"`
	CreatedAt        time.Time      `json:"created_at" yaml:"created_at"`
	CompletedAt      time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Cancelled        bool           `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Results          []UrlResult    `json:"results" yaml:"results"`
}

// StatusCounts tallies results by status
func (b BatchRecord) StatusCounts() map[ProcessingStatus]int {
	return CountStatuses(b.Results)
}

// CountStatuses tallies a results collection by status
func CountStatuses(results []UrlResult) map[ProcessingStatus]int {
	counts := make(map[ProcessingStatus]int, 4)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
