package shared

import (
	"fmt"
	"sync"
)

// ItemOutcome is the result of one item inside a batch operation
type ItemOutcome struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// BatchResult collects per-item outcomes. It is safe for concurrent use so
// fan-out writers can record into it directly.
type BatchResult struct {
	mu    sync.Mutex
	Items []ItemOutcome `json:"items"`
}

// NewBatchResult creates an empty batch result
func NewBatchResult() *BatchResult {
	return &BatchResult{Items: make([]ItemOutcome, 0)}
}

// Succeed records a successful item
func (r *BatchResult) Succeed(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Items = append(r.Items, ItemOutcome{Key: key, Success: true})
}

// Fail records a failed item with the error's domain code
func (r *BatchResult) Fail(key string, err error) {
	code := CodeOf(err)
	if code == "" {
		code = CodeNetwork
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Items = append(r.Items, ItemOutcome{Key: key, Success: false, Code: code, Message: err.Error()})
}

// Failed returns the outcomes that did not succeed
func (r *BatchResult) Failed() []ItemOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	failed := make([]ItemOutcome, 0)
	for _, item := range r.Items {
		if !item.Success {
			failed = append(failed, item)
		}
	}
	return failed
}

// Succeeded returns the number of successful items
func (r *BatchResult) Succeeded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.Items {
		if item.Success {
			n++
		}
	}
	return n
}

// HasFailures reports whether any item failed
func (r *BatchResult) HasFailures() bool {
	return len(r.Failed()) > 0
}

// Err returns a PartialFailureError when any item failed, nil otherwise
func (r *BatchResult) Err(op string) error {
	if !r.HasFailures() {
		return nil
	}
	return &PartialFailureError{Op: op, Result: r}
}

// PartialFailureError reports a batch in which some items were applied and
// some were not. Applied items are not rolled back; callers reload state.
type PartialFailureError struct {
	Op     string
	Result *BatchResult
}

// Error implements the error interface
func (e *PartialFailureError) Error() string {
	failed := len(e.Result.Failed())
	return fmt.Sprintf("%s: %d of %d items failed", e.Op, failed, failed+e.Result.Succeeded())
}

// Is matches ErrPartialFailure
func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}
