package lump

// EventKind identifies an archive change notification.
type EventKind uint8

// Archive events.
const (
	// EventOpened fires once after a container's directory has been parsed.
	EventOpened EventKind = iota

	// EventEntryAdded fires after AddEntry. Index is the new position.
	EventEntryAdded

	// EventEntryRemoved fires after RemoveEntry. Index is the old position.
	EventEntryRemoved

	// EventEntryModified fires after an entry is renamed or its data replaced.
	EventEntryModified

	// EventEntryMoved fires after MoveEntry or SwapEntries. Index is the new
	// position.
	EventEntryMoved

	// EventSaved fires after a successful Save or SaveAs.
	EventSaved

	// EventClosed fires when the archive is closed.
	EventClosed
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventEntryAdded:
		return "entry added"
	case EventEntryRemoved:
		return "entry removed"
	case EventEntryModified:
		return "entry modified"
	case EventEntryMoved:
		return "entry moved"
	case EventSaved:
		return "saved"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a change notification delivered to subscribers.
type Event struct {
	Kind  EventKind
	Entry *Entry
	Index int
}

// Listener receives archive events on the goroutine that caused them.
type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (a *Archive) Subscribe(fn Listener) (cancel func()) {
	a.listenMu.Lock()
	defer a.listenMu.Unlock()
	a.nextListener++
	id := a.nextListener
	a.listeners = append(a.listeners, subscription{id: id, fn: fn})
	return func() {
		a.listenMu.Lock()
		defer a.listenMu.Unlock()
		for i, s := range a.listeners {
			if s.id == id {
				a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
				return
			}
		}
	}
}

// Mute suppresses notifications until the returned function is called.
// Mutes nest; notifications resume when every mute has been released.
func (a *Archive) Mute() (unmute func()) {
	a.listenMu.Lock()
	a.muted++
	a.listenMu.Unlock()

	released := false
	return func() {
		a.listenMu.Lock()
		defer a.listenMu.Unlock()
		if !released {
			released = true
			a.muted--
		}
	}
}

// Muted reports whether notifications are suppressed.
func (a *Archive) Muted() bool {
	a.listenMu.Lock()
	defer a.listenMu.Unlock()
	return a.muted > 0
}

func (a *Archive) emit(kind EventKind, e *Entry, index int) {
	a.listenMu.Lock()
	if a.muted > 0 || len(a.listeners) == 0 {
		a.listenMu.Unlock()
		return
	}
	subs := make([]subscription, len(a.listeners))
	copy(subs, a.listeners)
	a.listenMu.Unlock()

	ev := Event{Kind: kind, Entry: e, Index: index}
	for _, s := range subs {
		s.fn(ev)
	}
}
