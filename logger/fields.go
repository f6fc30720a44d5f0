package logger

// Standard field names for consistent structured logging across the
// harvester. Use these constants instead of raw strings.
const (
	// Identity and context
	FieldRunID  = "run_id"
	FieldSource = "source"

	// Operations
	FieldURL    = "url"
	FieldItemID = "item_id"
	FieldBatch  = "batch"

	// Counts and sizes
	FieldCount     = "count"
	FieldRecords   = "records"
	FieldTotal     = "total"
	FieldBatchSize = "batch_size"

	// Errors and retries
	FieldError   = "error"
	FieldAttempt = "attempt"
	FieldTimeout = "timeout"
)
