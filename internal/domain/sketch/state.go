package sketch

// State is the transpile state of a single file path.
type State string

const (
	StateIdle          State = "idle"
	StateInFlight      State = "in_flight"
	StateInFlightDirty State = "in_flight_dirty" // Saved again while a transpile was running
)

// Status is a snapshot of the orchestrator bookkeeping for one path.
type Status struct {
	Path         string `json:"path"`
	State        State  `json:"state"`
	DirtyPending bool   `json:"dirty_pending"`
}

// SaveEvent is a save intent delivered by the editor or the file watcher.
type SaveEvent struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Modified bool   `json:"modified"` // Document has unsaved changes
}

// Outcome describes what the orchestrator did with one save event.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"    // Nothing to do
	OutcomeNotSketch Outcome = "not_sketch" // No sketch tag
	OutcomeWritten   Outcome = "written"    // Generated code saved
	OutcomeNotReady  Outcome = "not_ready"  // Workspace or assistant unavailable
	OutcomeFailed    Outcome = "failed"     // Remote or filesystem error, file marked dirty-pending
	OutcomeCoalesced Outcome = "coalesced"  // Another transpile was in flight
)

// Result is the final report of one transpile attempt.
type Result struct {
	Path       string  `json:"path"`
	Outcome    Outcome `json:"outcome"`
	Root       string  `json:"root,omitempty"`
	OutputPath string  `json:"output_path,omitempty"`
	Error      string  `json:"error,omitempty"`
}
