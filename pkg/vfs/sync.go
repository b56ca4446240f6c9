package vfs

import (
	"sort"
	"sync"
	"time"
)

// SyncStatus describes how a path relates to the rest of the sync group.
type SyncStatus int

const (
	StatusSynced SyncStatus = iota
	StatusLocalModified
	StatusRemoteModified
	StatusConflict
	StatusSyncing
)

func (s SyncStatus) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusLocalModified:
		return "local-modified"
	case StatusRemoteModified:
		return "remote-modified"
	case StatusConflict:
		return "conflict"
	case StatusSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// OpKind discriminates the four operations the CRDT log can record.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
	OpMove
)

// Op is a single filesystem mutation. Metadata is populated for
// Create and Update only; Delete carries just the path, and Move
// carries just From/To, with the destination record taken from
// whatever is currently at From when the operation resolves.
type Op struct {
	Kind     OpKind
	Path     string
	Metadata *FileMetadata
	From     string
	To       string
}

// TimestampedOp wraps an Op with the wallclock time it was made, the
// node that made it, and that node's logical clock value at the time.
type TimestampedOp struct {
	Op        Op
	Timestamp time.Time
	NodeID    string
	Clock     uint64
}

// SyncState holds the merged view of the filesystem plus the CRDT
// operation log that produced it. The file map changes only through
// ApplyLocal, ApplyRemote and Merge; Update operations and merged
// records are resolved by last-writer-wins, while Create, Delete and
// Move apply as resolve describes.
type SyncState struct {
	mu         sync.Mutex
	files      map[string]*FileMetadata
	operations []TimestampedOp
	clock      uint64
	nodeID     string
	status     map[string]SyncStatus
}

// NewSyncState returns an empty state for the given node identity.
// nodeID is used as the Lamport-clock actor ID.
func NewSyncState(nodeID string) *SyncState {
	return &SyncState{
		files:  make(map[string]*FileMetadata),
		status: make(map[string]SyncStatus),
		nodeID: nodeID,
	}
}

// ApplyLocal records an operation originated by this node: it
// advances the local clock by one, resolves it into the file map, and
// appends it to the log.
func (s *SyncState) ApplyLocal(op Op, now time.Time) TimestampedOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock++
	top := TimestampedOp{Op: op, Timestamp: now, NodeID: s.nodeID, Clock: s.clock}
	s.resolve(top)
	s.operations = append(s.operations, top)
	return top
}

// ApplyRemote merges an operation received from another node. The
// local clock advances to max(local, remote) + 1, per Lamport clock
// rules. An operation already in the log (same node and clock) is then
// skipped; otherwise it is resolved as resolve describes (an Update
// by last-writer-wins against any existing metadata for its path).
func (s *SyncState) ApplyRemote(top TimestampedOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if top.Clock > s.clock {
		s.clock = top.Clock
	}
	s.clock++
	if s.hasOp(top.NodeID, top.Clock) {
		return
	}
	s.resolve(top)
	s.operations = append(s.operations, top)
	s.resort()
}

func (s *SyncState) hasOp(nodeID string, clock uint64) bool {
	for _, o := range s.operations {
		if o.NodeID == nodeID && o.Clock == clock {
			return true
		}
	}
	return false
}

// resolve applies top to the file map, assuming s.mu is already held.
// Create installs unconditionally, Update applies last-writer-wins
// against the existing record, Delete removes the path outright, and
// Move relocates the current record with its path rewritten.
func (s *SyncState) resolve(top TimestampedOp) {
	switch top.Op.Kind {
	case OpCreate:
		s.files[top.Op.Path] = top.Op.Metadata
		s.status[top.Op.Path] = StatusSynced
	case OpUpdate:
		existing, ok := s.files[top.Op.Path]
		if !ok || wins(top.Op.Metadata, existing) {
			s.files[top.Op.Path] = top.Op.Metadata
		}
		s.status[top.Op.Path] = StatusSynced
	case OpDelete:
		delete(s.files, top.Op.Path)
		delete(s.status, top.Op.Path)
	case OpMove:
		m, ok := s.files[top.Op.From]
		if !ok {
			return
		}
		moved := m.Clone()
		moved.Path = top.Op.To
		s.files[top.Op.To] = moved
		delete(s.files, top.Op.From)
		if st, ok := s.status[top.Op.From]; ok {
			s.status[top.Op.To] = st
			delete(s.status, top.Op.From)
		} else {
			s.status[top.Op.To] = StatusSynced
		}
	}
}

// wins reports whether a beats b under last-writer-wins: higher
// version first, then later modification time, then the
// lexicographically smaller writing node ID so that ties resolve the
// same way on every replica.
func wins(a, b *FileMetadata) bool {
	if a.Version != b.Version {
		return a.Version > b.Version
	}
	if !a.Modified.Equal(b.Modified) {
		return a.Modified.After(b.Modified)
	}
	return a.ModifiedBy < b.ModifiedBy
}

// Get returns the metadata for path, if present.
func (s *SyncState) Get(path string) (*FileMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.files[path]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// ListFiles returns every file's metadata, sorted by path.
func (s *SyncState) ListFiles() []*FileMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FileMetadata, 0, len(s.files))
	for _, m := range s.files {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// SetStatus records a path's sync status.
func (s *SyncState) SetStatus(path string, status SyncStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = status
}

// GetStatus returns a path's recorded sync status, defaulting to Synced.
func (s *SyncState) GetStatus(path string) SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[path]; ok {
		return st
	}
	return StatusSynced
}

// Clock returns the current Lamport clock value.
func (s *SyncState) Clock() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// OperationsSince returns every logged operation with a clock value
// strictly greater than clock, in clock order, for replication to a
// peer that has already seen everything up to clock.
func (s *SyncState) OperationsSince(clock uint64) []TimestampedOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TimestampedOp, 0)
	for _, op := range s.operations {
		if op.Clock > clock {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Clock < out[j].Clock })
	return out
}

// Merge folds another state into this one: the clock advances to
// max(local, other) + 1, every file in other is copied in (or
// resolved by last-writer-wins when the path exists locally), and
// operations not already in the log are appended before a re-sort by
// (Clock, Timestamp). The file-map result is commutative, associative,
// and idempotent: merging the same remote state twice, or merging two
// states in either order, converges to the same map.
func (s *SyncState) Merge(other *SyncState) {
	other.mu.Lock()
	otherFiles := make(map[string]*FileMetadata, len(other.files))
	for path, m := range other.files {
		otherFiles[path] = m.Clone()
	}
	ops := append([]TimestampedOp(nil), other.operations...)
	otherClock := other.clock
	other.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if otherClock > s.clock {
		s.clock = otherClock
	}
	s.clock++

	for path, m := range otherFiles {
		existing, ok := s.files[path]
		if !ok || wins(m, existing) {
			s.files[path] = m
			s.status[path] = StatusSynced
		}
	}

	for _, op := range ops {
		if !s.hasOp(op.NodeID, op.Clock) {
			s.operations = append(s.operations, op)
		}
	}
	s.resort()
}

// resort re-orders the operation log by (Clock, Timestamp) after a
// merge brings in entries out of arrival order. Assumes s.mu held.
func (s *SyncState) resort() {
	sort.SliceStable(s.operations, func(i, j int) bool {
		a, b := s.operations[i], s.operations[j]
		if a.Clock != b.Clock {
			return a.Clock < b.Clock
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}

// SyncEngine is the convenience layer over SyncState used by VFS: it
// turns filesystem-shaped calls (create/update/delete/move) into the
// Op values SyncState expects.
type SyncEngine struct {
	State *SyncState
}

// NewSyncEngine returns an engine for the given node identity.
func NewSyncEngine(nodeID string) *SyncEngine {
	return &SyncEngine{State: NewSyncState(nodeID)}
}

func (e *SyncEngine) CreateFile(m *FileMetadata, now time.Time) TimestampedOp {
	return e.State.ApplyLocal(Op{Kind: OpCreate, Path: m.Path, Metadata: m}, now)
}

func (e *SyncEngine) UpdateFile(m *FileMetadata, now time.Time) TimestampedOp {
	return e.State.ApplyLocal(Op{Kind: OpUpdate, Path: m.Path, Metadata: m}, now)
}

// DeleteFile removes path from the file map, reporting false if the
// path doesn't exist.
func (e *SyncEngine) DeleteFile(path string, now time.Time) (TimestampedOp, bool) {
	if _, ok := e.State.Get(path); !ok {
		return TimestampedOp{}, false
	}
	return e.State.ApplyLocal(Op{Kind: OpDelete, Path: path}, now), true
}

// MoveFile relocates the record at from to to, reporting false if
// from doesn't exist.
func (e *SyncEngine) MoveFile(from, to string, now time.Time) (TimestampedOp, bool) {
	if _, ok := e.State.Get(from); !ok {
		return TimestampedOp{}, false
	}
	return e.State.ApplyLocal(Op{Kind: OpMove, From: from, To: to}, now), true
}

// SyncWith merges another engine's state into this one, then the
// reverse, so both converge to the same view.
func (e *SyncEngine) SyncWith(other *SyncEngine) {
	e.State.Merge(other.State)
	other.State.Merge(e.State)
}
