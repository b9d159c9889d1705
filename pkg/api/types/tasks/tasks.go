package tasks

import (
	"encoding/json"
)

// Receipt is the reply to a publish or run submission.
type Receipt struct {
	TaskID string `json:"task_id"`
}

// Pending statuses a task moves through before completing.
const (
	StatusReceived         = "received"
	StatusWaitingForEp     = "waiting-for-ep"
	StatusWaitingForNodes  = "waiting-for-nodes"
	StatusWaitingForLaunch = "waiting-for-launch"
	StatusRunning          = "running"
)

var pending = map[string]struct{}{
	StatusReceived:         {},
	StatusWaitingForEp:     {},
	StatusWaitingForNodes:  {},
	StatusWaitingForLaunch: {},
	StatusRunning:          {},
}

// Status is the progress report of a submitted task.
type Status struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Terminal reports whether the task has stopped moving, successfully
// or not. Unknown statuses count as terminal so pollers do not spin on
// a reply they cannot interpret.
func (s Status) Terminal() bool {
	_, isPending := pending[s.Status]
	return !isPending
}

// Failed reports whether the task stopped with an error.
func (s Status) Failed() bool {
	return s.Terminal() && s.Error != ""
}

func (s Status) Equal(o Status) bool {
	return s.Status == o.Status &&
		s.Error == o.Error &&
		string(s.Result) == string(o.Result)
}
