package lump

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/lump/core/cache"
)

// Archive is an ordered list of entries backed by a container.
//
// Mutations (AddEntry, RemoveEntry, Save and the like) must be serialized
// by the caller. Reads of entry bodies (LoadEntryData, ReadEntry,
// EntryReader) are safe to call concurrently with each other.
type Archive struct {
	format   Format
	filename string

	srcMu  sync.RWMutex
	source ByteSource // nil for archives never written to disk
	closer io.Closer  // closes source when the archive owns it

	entries  []*Entry
	modified bool
	closed   atomic.Bool
	entryID  atomic.Uint64

	listenMu     sync.Mutex
	listeners    []subscription
	nextListener int
	muted        int

	loadPolicy      LoadPolicy
	loadConcurrency int
	classifier      Classifier
	cache           cache.Cache        // nil = no caching
	loadGroup       singleflight.Group // zero value is valid
	progressMu      sync.Mutex
	progress        ProgressFunc
	backup          Backup
	logger          *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

func newArchive(f Format, opts []Option) *Archive {
	a := &Archive{
		format:          f,
		loadConcurrency: defaultLoadConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewArchive returns an empty archive of format f that is not bound to a
// file. Use SaveAs to write it.
func NewArchive(f Format, opts ...Option) *Archive {
	return newArchive(f, opts)
}

// Open opens the container at path, detecting its format from content.
// The archive owns the file handle; Close releases it.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-provided by design
	if err != nil {
		return nil, err
	}
	src, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	format, err := Detect(src)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	opts = append(slices.Clip(opts), WithFilename(path))
	a, err := open(src, format, f, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return a, nil
}

// OpenSource parses src, detecting its format from content.
// The caller keeps ownership of src.
func OpenSource(src ByteSource, opts ...Option) (*Archive, error) {
	format, err := Detect(src)
	if err != nil {
		return nil, err
	}
	return open(src, format, nil, opts)
}

// OpenFormat parses src as format f without probing other formats.
// It returns ErrUnknownFormat when the signature does not match and
// ErrCorrupt when the directory does not fit in src.
func OpenFormat(src ByteSource, f Format, opts ...Option) (*Archive, error) {
	return open(src, specialize(f, src), nil, opts)
}

func open(src ByteSource, f Format, closer io.Closer, opts []Option) (*Archive, error) {
	a := newArchive(f, opts)
	if err := a.readDirectory(src); err != nil {
		return nil, err
	}
	a.source = src
	a.closer = closer

	if a.loadPolicy == LoadEager {
		if err := a.loadAll(); err != nil {
			return nil, err
		}
	}

	a.log().Info("archive opened",
		"path", a.filename,
		"format", f.Name(),
		"entries", len(a.entries),
		"policy", a.loadPolicy.String())
	a.emit(EventOpened, nil, -1)
	return a, nil
}

// readDirectory builds the entry list. Notifications are muted while the
// list fills; a parse failure leaves the archive with no entries.
func (a *Archive) readDirectory(src ByteSource) error {
	unmute := a.Mute()
	defer unmute()

	records, err := a.format.ReadDirectory(src)
	if err != nil {
		return err
	}

	entries := make([]*Entry, 0, len(records))
	for i, r := range records {
		e := newEntry(a, r.Name, r.Size)
		e.props[PropOffset] = r.Offset
		entries = append(entries, e)
		a.report(ProgressEvent{Stage: StageReadingDirectory, Name: r.Name, Done: i + 1, Total: len(records)})
	}
	a.entries = entries

	a.log().Debug("directory parsed", "format", a.format.Name(), "entries", len(entries), "source", src.SourceID())
	return nil
}

func (a *Archive) report(ev ProgressEvent) {
	if a.progress == nil {
		return
	}
	a.progressMu.Lock()
	defer a.progressMu.Unlock()
	a.progress(ev)
}

// step counts one finished entry and reports it. Workers share done, and
// the count and the callback advance together so Done never goes backwards.
func (a *Archive) step(stage ProgressStage, name string, done *int, total int) {
	a.progressMu.Lock()
	defer a.progressMu.Unlock()
	*done++
	if a.progress != nil {
		a.progress(ProgressEvent{Stage: stage, Name: name, Done: *done, Total: total})
	}
}

func (a *Archive) nextEntryID() string {
	return strconv.FormatUint(a.entryID.Add(1), 10)
}

// Format returns the archive's format.
func (a *Archive) Format() Format {
	return a.format
}

// Filename returns the path the archive saves to, or "" when unbound.
func (a *Archive) Filename() string {
	return a.filename
}

// Modified reports whether the entry list changed since it was opened or
// last saved.
func (a *Archive) Modified() bool {
	return a.modified
}

// Closed reports whether Close has been called.
func (a *Archive) Closed() bool {
	return a.closed.Load()
}

// Entries returns a snapshot of the entry list in archive order.
func (a *Archive) Entries() []*Entry {
	return slices.Clone(a.entries)
}

// All returns an iterator over entries and their indexes.
func (a *Archive) All() iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		for i, e := range a.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// EntryCount returns the number of entries.
func (a *Archive) EntryCount() int {
	return len(a.entries)
}

// EntryAt returns the entry at index, or nil when index is out of range.
func (a *Archive) EntryAt(index int) *Entry {
	if index < 0 || index >= len(a.entries) {
		return nil
	}
	return a.entries[index]
}

// Entry returns the first entry whose name matches name, ignoring case.
func (a *Archive) Entry(name string) *Entry {
	for _, e := range a.entries {
		if strings.EqualFold(e.Name(), name) {
			return e
		}
	}
	return nil
}

// IndexOf returns the position of e, or -1 when e is not in the archive.
func (a *Archive) IndexOf(e *Entry) int {
	return slices.Index(a.entries, e)
}

// AddEntry inserts a new entry holding a copy of data at index. An index
// outside [0, EntryCount()] appends.
func (a *Archive) AddEntry(name string, data []byte, index int) (*Entry, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if name == "" {
		return nil, ErrNameEmpty
	}
	e := newEntry(a, name, int64(len(data)))
	e.data = slices.Clone(data)
	e.loaded = true
	e.state = StateNew

	if index < 0 || index > len(a.entries) {
		index = len(a.entries)
	}
	a.entries = slices.Insert(a.entries, index, e)
	a.modified = true
	a.emit(EventEntryAdded, e, index)
	return e, nil
}

// RemoveEntry removes e from the archive. The entry is detached and can
// no longer be loaded.
func (a *Archive) RemoveEntry(e *Entry) error {
	index, err := a.owned(e)
	if err != nil {
		return err
	}
	a.entries = slices.Delete(a.entries, index, index+1)
	e.mu.Lock()
	e.parent = nil
	e.mu.Unlock()
	a.modified = true
	a.emit(EventEntryRemoved, e, index)
	return nil
}

// RenameEntry changes the name of e. Names longer than the format's field
// are kept in memory and truncated when written.
func (a *Archive) RenameEntry(e *Entry, name string) error {
	index, err := a.owned(e)
	if err != nil {
		return err
	}
	if name == "" {
		return ErrNameEmpty
	}
	e.mu.Lock()
	e.name = name
	e.touchLocked()
	e.mu.Unlock()
	a.modified = true
	a.emit(EventEntryModified, e, index)
	return nil
}

// ImportEntry replaces the body of e with a copy of data. The previous
// type assignment is cleared.
func (a *Archive) ImportEntry(e *Entry, data []byte) error {
	index, err := a.owned(e)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.data = slices.Clone(data)
	e.size = int64(len(data))
	e.loaded = true
	e.typ = ""
	e.touchLocked()
	e.mu.Unlock()
	a.modified = true
	a.emit(EventEntryModified, e, index)
	return nil
}

// MoveEntry moves e to index. An index outside the list moves it to the end.
func (a *Archive) MoveEntry(e *Entry, index int) error {
	from, err := a.owned(e)
	if err != nil {
		return err
	}
	a.entries = slices.Delete(a.entries, from, from+1)
	if index < 0 || index > len(a.entries) {
		index = len(a.entries)
	}
	a.entries = slices.Insert(a.entries, index, e)
	if index != from {
		a.modified = true
	}
	a.emit(EventEntryMoved, e, index)
	return nil
}

// SwapEntries exchanges the positions of x and y.
func (a *Archive) SwapEntries(x, y *Entry) error {
	i, err := a.owned(x)
	if err != nil {
		return err
	}
	j, err := a.owned(y)
	if err != nil {
		return err
	}
	if i == j {
		return nil
	}
	a.entries[i], a.entries[j] = a.entries[j], a.entries[i]
	a.modified = true
	a.emit(EventEntryMoved, x, j)
	a.emit(EventEntryMoved, y, i)
	return nil
}

// Classify runs the archive's classifier over e, loading it first, and
// records the result as the entry type. Without a classifier it returns "".
func (a *Archive) Classify(e *Entry) (string, error) {
	if a.classifier == nil {
		return "", nil
	}
	if err := a.LoadEntryData(e); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typ = a.classifier.Classify(e.name, e.data)
	return e.typ, nil
}

// owned returns the index of e after checking that a is its parent.
func (a *Archive) owned(e *Entry) (int, error) {
	if a.closed.Load() {
		return -1, ErrClosed
	}
	if err := a.checkParent(e); err != nil {
		return -1, err
	}
	index := a.IndexOf(e)
	if index < 0 {
		return -1, ErrNotOwned
	}
	return index, nil
}

func (a *Archive) checkParent(e *Entry) error {
	if e == nil {
		return errors.New("lump: nil entry")
	}
	if e.Archive() != a {
		return ErrNotOwned
	}
	return nil
}
