package scheduler

// State is the lifecycle position of a scheduled task.
type State int

const (
	StatePending State = iota
	StateRunning
	StateRetrying
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Event describes one task state transition, for observers such as the
// websocket event stream.
type Event struct {
	TaskID  string `json:"taskId"`
	Label   string `json:"label"`
	State   string `json:"state"`
	Attempt int    `json:"attempt"`
	Error   string `json:"error,omitempty"`
}

// Handle lets the enqueuer wait for one task to reach a terminal state.
type Handle struct {
	done chan struct{}
	err  error
}

// Done is closed once the task has succeeded or failed for good.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the terminal error, or nil on success. Only valid after
// Done is closed.
func (h *Handle) Err() error { return h.err }

type task struct {
	id      string
	label   string
	run     func() error
	attempt int
	handle  *Handle
}
