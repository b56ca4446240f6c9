// Package vfs implements a content-addressed, deduplicating chunk
// store backing a CRDT-synchronized virtual filesystem: writes are
// split into fixed-size chunks, metadata changes are resolved by
// last-writer-wins, and every node can replay another node's
// operation log to converge on the same tree.
package vfs

import (
	"strings"
	"time"

	"github.com/HautlyS/secureshuttle/pkg/hash"
	"golang.org/x/text/unicode/norm"
)

// FsStats summarizes the current size of a VFS instance.
type FsStats struct {
	FileCount        int
	DirCount         int
	TotalSize        uint64
	ChunkCount       int
	ChunkStorageSize int
}

// VFS is the facade applications use: it combines a chunk Store with
// a SyncEngine so callers never need to touch chunk IDs or CRDT
// operations directly.
type VFS struct {
	chunks     *Store
	sync       *SyncEngine
	mountPoint string
	chunkSize  int
	nodeID     string
}

// NewVFS returns a VFS rooted at mountPoint, identified to the sync
// engine as nodeID.
func NewVFS(nodeID, mountPoint string) *VFS {
	return &VFS{
		chunks:     NewStore(),
		sync:       NewSyncEngine(nodeID),
		mountPoint: mountPoint,
		chunkSize:  DefaultChunkSize,
		nodeID:     nodeID,
	}
}

// WithChunkSize overrides the chunk size used by subsequent writes.
func (v *VFS) WithChunkSize(size int) *VFS {
	if size > 0 {
		v.chunkSize = size
	}
	return v
}

// normalizePath resolves path against the mount point (absolute paths
// are taken verbatim, relative paths live under the mount) and applies
// NFC normalization so two byte-distinct but canonically-equivalent
// paths (e.g. combining vs. precomposed accents) always resolve to the
// same filesystem entry.
func (v *VFS) normalizePath(path string) string {
	path = norm.NFC.String(strings.TrimSuffix(path, "/"))
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return strings.TrimSuffix(v.mountPoint, "/") + "/" + path
}

// Write stores data at path, chunking it and registering the chunks
// in the content store, then recording a Create or Update operation
// depending on whether the path already exists.
func (v *VFS) Write(path string, data []byte) (*FileMetadata, error) {
	path = v.normalizePath(path)
	if path == "" {
		return nil, &VFSError{Code: ErrCodeInvalidPath, Message: "path must not be empty"}
	}

	chunks := ChunkData(data, v.chunkSize)
	ids := make([]hash.ContentHash, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, v.chunks.Put(c))
	}
	contentHash := hash.Sum(data)
	now := time.Now()

	existing, ok := v.sync.State.Get(path)
	if ok {
		m := existing.Clone()
		m.Size = uint64(len(data))
		m.ContentHash = &contentHash
		m.Chunks = ids
		m.Touch(v.nodeID, now)
		v.sync.UpdateFile(m, now)
		return m, nil
	}

	m := NewFileMetadata(path, uint64(len(data)), contentHash, ids, v.nodeID, now)
	v.sync.CreateFile(m, now)
	return m, nil
}

// Read reassembles and returns the bytes stored at path, verifying
// the result against the recorded content hash.
func (v *VFS) Read(path string) ([]byte, error) {
	path = v.normalizePath(path)
	m, ok := v.sync.State.Get(path)
	if !ok {
		return nil, &VFSError{Code: ErrCodeFileNotFound, Message: "no such file: " + path}
	}
	if m.IsDirectory() {
		return nil, &VFSError{Code: ErrCodeIsADirectory, Message: path + " is a directory"}
	}
	if m.ContentHash == nil {
		return nil, &VFSError{Code: ErrCodeContentHashMissing, Message: "file has no content hash: " + path}
	}

	chunks := make([]*Chunk, 0, len(m.Chunks))
	for _, id := range m.Chunks {
		c, err := v.chunks.Get(id)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	data := ReassembleChunks(chunks)
	if actual := hash.Sum(data); actual != *m.ContentHash {
		return nil, &VFSError{
			Code:    ErrCodeHashMismatch,
			Message: "reassembled content does not match recorded hash for " + path,
			Expected: m.ContentHash.HexString(),
			Actual:   actual.HexString(),
		}
	}
	return data, nil
}

// Delete removes path and drops its chunks from the store. Chunk
// removal is unconditional (no refcounting): a chunk the deleted file
// shares with another file is removed too, and reading that other file
// then fails with ErrCodeChunkNotFound.
func (v *VFS) Delete(path string) error {
	path = v.normalizePath(path)
	existing, ok := v.sync.State.Get(path)
	if !ok {
		return &VFSError{Code: ErrCodeFileNotFound, Message: "no such file: " + path}
	}
	for _, id := range existing.Chunks {
		v.chunks.Remove(id)
	}
	v.sync.DeleteFile(path, time.Now())
	return nil
}

// Mkdir creates a directory entry at path.
func (v *VFS) Mkdir(path string) (*FileMetadata, error) {
	path = v.normalizePath(path)
	if path == "" {
		return nil, &VFSError{Code: ErrCodeInvalidPath, Message: "path must not be empty"}
	}
	if existing, ok := v.sync.State.Get(path); ok {
		if existing.IsDirectory() {
			return existing, nil
		}
		return nil, &VFSError{Code: ErrCodeAlreadyExists, Message: path + " already exists and is not a directory"}
	}
	m := NewDirectoryMetadata(path, v.nodeID, time.Now())
	v.sync.CreateFile(m, time.Now())
	return m, nil
}

// List returns every entry whose path is a direct child of dir.
func (v *VFS) List(dir string) ([]*FileMetadata, error) {
	dir = v.normalizePath(dir)
	if dir != "" {
		parent, ok := v.sync.State.Get(dir)
		if !ok {
			return nil, &VFSError{Code: ErrCodeFileNotFound, Message: "no such directory: " + dir}
		}
		if !parent.IsDirectory() {
			return nil, &VFSError{Code: ErrCodeNotADirectory, Message: dir + " is not a directory"}
		}
	}

	prefix := dir + "/"
	var out []*FileMetadata
	for _, m := range v.sync.State.ListFiles() {
		rest := strings.TrimPrefix(m.Path, prefix)
		if rest == m.Path || rest == "" {
			continue
		}
		if strings.Contains(rest, "/") {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Stat returns metadata for path without reading its contents.
func (v *VFS) Stat(path string) (*FileMetadata, error) {
	path = v.normalizePath(path)
	m, ok := v.sync.State.Get(path)
	if !ok {
		return nil, &VFSError{Code: ErrCodeFileNotFound, Message: "no such file: " + path}
	}
	return m, nil
}

// Exists reports whether path currently resolves to a live entry.
func (v *VFS) Exists(path string) bool {
	_, ok := v.sync.State.Get(v.normalizePath(path))
	return ok
}

// SyncStatus returns the recorded sync status for path.
func (v *VFS) SyncStatus(path string) SyncStatus {
	return v.sync.State.GetStatus(v.normalizePath(path))
}

// Stats summarizes the current size of the filesystem.
func (v *VFS) Stats() FsStats {
	var stats FsStats
	for _, m := range v.sync.State.ListFiles() {
		switch m.FileType {
		case FileTypeDirectory:
			stats.DirCount++
		default:
			stats.FileCount++
			stats.TotalSize += m.Size
		}
	}
	stats.ChunkCount = v.chunks.Len()
	stats.ChunkStorageSize = v.chunks.TotalSize()
	return stats
}

// GarbageCollect removes chunks no longer referenced by any live
// file, returning the count removed and bytes freed.
func (v *VFS) GarbageCollect() (int, int) {
	referenced := make(map[hash.ContentHash]struct{})
	for _, m := range v.sync.State.ListFiles() {
		for _, id := range m.Chunks {
			referenced[id] = struct{}{}
		}
	}
	return v.chunks.GarbageCollect(referenced)
}

// Engine exposes the underlying sync engine for replication between nodes.
func (v *VFS) Engine() *SyncEngine { return v.sync }

// MountPoint returns the configured mount point string.
func (v *VFS) MountPoint() string { return v.mountPoint }
