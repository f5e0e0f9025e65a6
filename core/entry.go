package lump

import (
	"maps"
	"sync"

	"github.com/opencontainers/go-digest"
)

// PropOffset is the property holding an entry's body offset in the backing
// container. It is recomputed on every save and absent for entries that
// have never been written.
const PropOffset = "Offset"

// Entry is one named resource inside an archive.
//
// Body bytes are present only once loaded. Entries of size zero are
// always considered loaded. Entry methods are safe for concurrent use;
// mutations go through the owning Archive.
type Entry struct {
	mu     sync.Mutex
	id     string
	parent *Archive
	name   string
	size   int64
	data   []byte
	loaded bool
	state  State
	typ    string
	props  map[string]any
}

func newEntry(parent *Archive, name string, size int64) *Entry {
	return &Entry{
		id:     parent.nextEntryID(),
		parent: parent,
		name:   name,
		size:   size,
		loaded: size == 0,
		props:  make(map[string]any),
	}
}

// Name returns the entry name.
func (e *Entry) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

// Size returns the body size in bytes.
func (e *Entry) Size() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.size
}

// Loaded reports whether the body is in memory.
func (e *Entry) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// State reports whether the entry changed since the last save.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Type returns the type assigned by the archive's classifier, or "" when
// the entry has not been classified.
func (e *Entry) Type() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typ
}

// Archive returns the owning archive, or nil once the entry was removed.
func (e *Entry) Archive() *Archive {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parent
}

// Data returns the loaded body, or nil when the body is not loaded.
// The slice is shared with the entry and must not be modified.
func (e *Entry) Data() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

// Offset returns the body offset in the backing container.
func (e *Entry) Offset() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offsetLocked()
}

func (e *Entry) offsetLocked() (int64, bool) {
	off, ok := e.props[PropOffset].(int64)
	return off, ok
}

// Prop returns a format-specific property.
func (e *Entry) Prop(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.props[key]
	return v, ok
}

// SetProp sets a format-specific property. Setting PropOffset is allowed
// but the value is replaced on the next save.
func (e *Entry) SetProp(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.props[key] = value
}

// Props returns a copy of the property bag.
func (e *Entry) Props() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.props)
}

// Digest returns the SHA-256 digest of the loaded body.
// ok is false when the body is not loaded.
func (e *Entry) Digest() (digest.Digest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return "", false
	}
	return digest.FromBytes(e.data), true
}

// touchLocked marks a saved entry as modified. New entries stay new.
func (e *Entry) touchLocked() {
	if e.state == StateUnmodified {
		e.state = StateModified
	}
}
