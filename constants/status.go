package constants

// State is the ingestion state of one source image within a single attempt.
type State string

// Stable values (these exact strings appear in logs).
const (
	StateDiscovered State = "DISCOVERED" // seen by the backlog scan or the watcher
	StateDebounced  State = "DEBOUNCED"  // settle delay elapsed
	StateExtracting State = "EXTRACTING" // pipeline running
	StateCommitted  State = "COMMITTED"  // record + marker committed, file archived
	StateSkipped    State = "SKIPPED"    // marker already present
	StateRejected   State = "REJECTED"   // attempt failed; file stays unmarked for retry
)

// Terminal reports whether the state ends the attempt.
func (s State) Terminal() bool {
	switch s {
	case StateCommitted, StateSkipped, StateRejected:
		return true
	}
	return false
}
