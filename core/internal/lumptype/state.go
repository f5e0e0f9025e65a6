package lumptype

// State tracks how an entry relates to the on-disk container.
type State uint8

const (
	// StateUnmodified means the entry matches what was last read or written.
	StateUnmodified State = iota

	// StateModified means the entry name or data changed since the last save.
	StateModified

	// StateNew means the entry was added since the last save.
	StateNew
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateUnmodified:
		return "unmodified"
	case StateModified:
		return "modified"
	case StateNew:
		return "new"
	default:
		return "unknown"
	}
}
