package importer

import "time"

// Command selects the query an import run uses.
type Command string

const (
	CommandFullImport  Command = "full-import"
	CommandDeltaImport Command = "delta-import"
)

// ParseCommand validates an import command name.
func ParseCommand(s string) (Command, bool) {
	switch c := Command(s); c {
	case CommandFullImport, CommandDeltaImport:
		return c, true
	}
	return "", false
}

// State is the lifecycle state of a run.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
)

// Counters tracks documents through a run.
type Counters struct {
	Fetched int `json:"fetched"`
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RunStatus describes a running or finished run.
type RunStatus struct {
	ID       string    `json:"id"`
	Entity   string    `json:"entity"`
	Command  Command   `json:"command"`
	State    State     `json:"state"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
	Counters Counters  `json:"counters"`
	Error    string    `json:"error,omitempty"`
}

// EntityStatus is the status of one configured entity.
type EntityStatus struct {
	Entity  string     `json:"entity"`
	Busy    bool       `json:"busy"`
	LastRun *RunStatus `json:"last_run,omitempty"`
}

// Request starts a run.
type Request struct {
	Entity  string
	Command Command
	// Clean deletes previously indexed rows of the entity before a full import.
	Clean bool
	// Params feed ${dih.request.<name>} query tokens.
	Params map[string]string
}
