package constants

// RunStatus is the canonical status for rows in processing_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ItemStatus is reported per page image by batch processing.
type ItemStatus string

const (
	ItemStatusQueued     ItemStatus = "queued"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)
