// Package backup keeps compressed snapshots of archives before they are
// overwritten.
//
// Snapshots of an archive live in <dir>/<archive file name>/ next to a
// manifest.json listing them oldest first. Each snapshot records the
// digest of the uncompressed file, which Restore verifies.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
)

// ManifestName is the file listing an archive's snapshots.
const ManifestName = "manifest.json"

// DefaultKeepLast is the number of snapshots kept per archive when no
// WithKeepLast option is given.
const DefaultKeepLast = 10

// Sentinel errors.
var (
	// ErrNotFound is returned when a snapshot id is not in the manifest.
	ErrNotFound = errors.New("backup: snapshot not found")

	// ErrDigestMismatch is returned when restored content does not match
	// the digest recorded at snapshot time.
	ErrDigestMismatch = errors.New("backup: digest mismatch")
)

// Snapshot describes one stored copy of an archive.
type Snapshot struct {
	ID          string        `json:"id"`
	File        string        `json:"file"`
	Digest      digest.Digest `json:"digest"`
	Size        int64         `json:"size"`
	Compression Compression   `json:"compression"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Manifest lists the snapshots of one archive, oldest first.
type Manifest struct {
	Archive   string     `json:"archive"`
	Source    string     `json:"source"`
	Snapshots []Snapshot `json:"snapshots"`
}

// Store writes and restores snapshots under a root directory.
// It is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	dir         string
	keepLast    int
	compression Compression
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKeepLast sets how many snapshots are kept per archive.
// Values < 1 keep every snapshot.
func WithKeepLast(n int) Option {
	return func(s *Store) {
		s.keepLast = n
	}
}

// WithCompression selects the snapshot compression (default: zstd).
func WithCompression(c Compression) Option {
	return func(s *Store) {
		s.compression = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("backup dir is empty")
	}
	s := &Store{
		dir:         dir,
		keepLast:    DefaultKeepLast,
		compression: CompressionZstd,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.compression.extension(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Snapshot stores a compressed copy of the file at path and prunes old
// snapshots beyond the retention limit.
func (s *Store) Snapshot(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := filepath.Base(path)
	m, err := s.load(name)
	if err != nil {
		return err
	}
	if abs, err := filepath.Abs(path); err == nil {
		m.Source = abs
	}

	created := s.now().UTC()
	id := uniqueID(m, created.Format("20060102T150405.000000000Z"))
	ext, _ := s.compression.extension() //nolint:errcheck // validated in New
	snap := Snapshot{
		ID:          id,
		File:        id + filepath.Ext(name) + ext,
		Compression: s.compression,
		CreatedAt:   created,
	}

	snap.Digest, snap.Size, err = s.writeSnapshot(path, filepath.Join(s.dir, name, snap.File))
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	m.Snapshots = append(m.Snapshots, snap)

	for _, old := range prune(m, s.keepLast) {
		if err := os.Remove(filepath.Join(s.dir, name, old.File)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log().Warn("remove old snapshot", "file", old.File, "error", err)
		}
	}
	if err := s.save(m); err != nil {
		return err
	}
	s.log().Info("snapshot stored", "archive", name, "id", id, "size", snap.Size, "compression", string(s.compression))
	return nil
}

// writeSnapshot compresses src into dst and returns the digest and size of
// the uncompressed bytes.
func (s *Store) writeSnapshot(src, dst string) (digest.Digest, int64, error) {
	in, err := os.Open(src) //nolint:gosec // path comes from the archive being saved
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".snapshot-*")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw, err := s.compression.newWriter(tmp)
	if err != nil {
		return "", 0, err
	}
	digester := digest.Canonical.Digester()
	size, err := io.Copy(zw, io.TeeReader(in, digester.Hash()))
	if err != nil {
		zw.Close()
		return "", 0, err
	}
	if err := zw.Close(); err != nil {
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", 0, err
	}
	success = true
	return digester.Digest(), size, nil
}

// List returns the snapshots of the archive with the given file name,
// oldest first.
func (s *Store) List(name string) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load(filepath.Base(name))
	if err != nil {
		return nil, err
	}
	return m.Snapshots, nil
}

// Archives returns the names of archives that have snapshots.
func (s *Store) Archives() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, e.Name(), ManifestName)); err == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Restore decompresses snapshot id of archive name to dest, verifying its
// digest. dest is replaced atomically and only when verification passes.
// An empty id restores the newest snapshot.
func (s *Store) Restore(name, id, dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = filepath.Base(name)
	m, err := s.load(name)
	if err != nil {
		return err
	}
	snap, ok := find(m, id)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, name, id)
	}

	in, err := os.Open(filepath.Join(s.dir, name, snap.File))
	if err != nil {
		return err
	}
	defer in.Close()
	zr, err := snap.Compression.newReader(in)
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".restore-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	verifier := snap.Digest.Verifier()
	if _, err := io.Copy(io.MultiWriter(tmp, verifier), zr); err != nil {
		return fmt.Errorf("decompress %s: %w", snap.File, err)
	}
	if !verifier.Verified() {
		return fmt.Errorf("%w: %s", ErrDigestMismatch, snap.File)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return err
	}
	success = true
	s.log().Info("snapshot restored", "archive", name, "id", snap.ID, "dest", dest)
	return nil
}

func (s *Store) manifestPath(name string) string {
	return filepath.Join(s.dir, name, ManifestName)
}

func (s *Store) load(name string) (*Manifest, error) {
	data, err := os.ReadFile(s.manifestPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{Archive: name, Snapshots: []Snapshot{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.manifestPath(name), err)
	}
	return &m, nil
}

func (s *Store) save(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := s.manifestPath(m.Archive)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// prune drops the oldest snapshots beyond keepLast and returns them.
func prune(m *Manifest, keepLast int) []Snapshot {
	if keepLast <= 0 || len(m.Snapshots) <= keepLast {
		return nil
	}
	n := len(m.Snapshots) - keepLast
	removed := slices.Clone(m.Snapshots[:n])
	m.Snapshots = slices.Delete(m.Snapshots, 0, n)
	return removed
}

func find(m *Manifest, id string) (Snapshot, bool) {
	if len(m.Snapshots) == 0 {
		return Snapshot{}, false
	}
	if id == "" {
		return m.Snapshots[len(m.Snapshots)-1], true
	}
	for _, snap := range m.Snapshots {
		if snap.ID == id {
			return snap, true
		}
	}
	return Snapshot{}, false
}

// uniqueID appends a counter when two snapshots share a timestamp.
func uniqueID(m *Manifest, base string) string {
	id := base
	for n := 1; ; n++ {
		if _, taken := find(m, id); !taken {
			return id
		}
		id = base + "-" + strconv.Itoa(n)
	}
}
