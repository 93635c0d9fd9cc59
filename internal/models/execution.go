package models

import "time"

// ExecutionStatus represents the status of a command execution.
type ExecutionStatus string

const (
	// StatusPending indicates the execution is queued and waiting to start.
	StatusPending ExecutionStatus = "pending"
	// StatusRunning indicates the execution is currently running.
	StatusRunning ExecutionStatus = "running"
	// StatusSuccess indicates the execution completed successfully.
	StatusSuccess ExecutionStatus = "success"
	// StatusError indicates the execution failed.
	StatusError ExecutionStatus = "error"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

// ExecutionLog is one entry in the execution history. CommandID is a weak
// reference: the definition it points at may have been deleted since the
// log was created. CommandName is a snapshot of the name at dispatch time.
type ExecutionLog struct {
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
	ID          string          `json:"id"`
	CommandID   string          `json:"commandId"`
	CommandName string          `json:"commandName"`
	RequestedBy string          `json:"requestedBy"`
	Status      ExecutionStatus `json:"status"`
	Output      string          `json:"output"`
	Error       string          `json:"error,omitempty"`
	Parameters  []string        `json:"parameters"`
}
