package models

// RuntimeStatus is the outcome recorded in a RuntimeEvent.
type RuntimeStatus string

const (
	RuntimeStarted RuntimeStatus = "STARTED"
	RuntimeOK      RuntimeStatus = "OK"
	RuntimeWarning RuntimeStatus = "WARNING"
	RuntimeError   RuntimeStatus = "ERROR"
)

// RuntimeEvent is one line of runtime_events.jsonl.
type RuntimeEvent struct {
	Timestamp string        `json:"timestamp"`
	Action    string        `json:"action"`
	Status    RuntimeStatus `json:"status"`
	Stage     string        `json:"stage"`
	Details   interface{}   `json:"details,omitempty"`
}
