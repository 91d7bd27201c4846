package models

import "time"

// FailureReason classifies a failed unit of work for the error ledger.
type FailureReason string

const (
	// ReasonPageFailed marks a list page that could not be fetched after retries.
	ReasonPageFailed FailureReason = "page_failed"
	// ReasonPartitionAbandoned marks a partition given up on after repeated
	// consecutive page failures.
	ReasonPartitionAbandoned FailureReason = "partition_abandoned"
	// ReasonFetchFailed marks a detail page that was unreachable after retries.
	ReasonFetchFailed FailureReason = "fetch_failed"
	// ReasonSectionFailed marks a single section of an otherwise-emitted
	// detail record.
	ReasonSectionFailed FailureReason = "section_failed"
	// ReasonNoDetailURL marks a summary record with no usable detail locator.
	ReasonNoDetailURL FailureReason = "no_detail_url"
)

// ErrorEntry is one failed unit of work. Entries are append-only and never
// cause the run to abort; the ledger is the sole surface for per-item
// failures.
type ErrorEntry struct {
	ID         string        `json:"id"`
	Phase      string        `json:"phase"`
	RunID      string        `json:"run_id,omitempty"`
	Identity   string        `json:"identity,omitempty"` // identity key or partial locator
	Section    string        `json:"section,omitempty"`  // set for partial-item failures
	Reason     FailureReason `json:"reason"`
	Message    string        `json:"message"`
	RetryCount int           `json:"retry_count"`
	Timestamp  time.Time     `json:"timestamp"`
}
