package domain

// JournalEntry records one executed command.
type JournalEntry struct {
	ID        int64    `json:"id"`        // Unique identifier
	TraceID   string   `json:"traceId"`   // Request trace ID, if any
	Key       BlobKey  `json:"key"`       // Target key
	Command   string   `json:"command"`   // Normalized command name
	Args      []string `json:"args"`      // Arguments after the key
	Outcome   string   `json:"outcome"`   // "ok" or the error code
	Reply     string   `json:"reply"`     // Reply text
	Duration  int64    `json:"duration"`  // Execution time in microseconds
	CreatedAt int64    `json:"createdAt"` // Unix timestamp of execution
}
