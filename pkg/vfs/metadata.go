package vfs

import (
	"time"

	"github.com/HautlyS/secureshuttle/pkg/hash"
)

// FileType discriminates the kind of filesystem entry FileMetadata describes.
type FileType int

const (
	FileTypeFile FileType = iota
	FileTypeDirectory
	FileTypeSymlink
)

// Permissions mirrors the nine POSIX rwx bits for owner/group/other.
type Permissions struct {
	OwnerRead, OwnerWrite, OwnerExecute bool
	GroupRead, GroupWrite, GroupExecute bool
	OtherRead, OtherWrite, OtherExecute bool
}

// DefaultFilePermissions matches a typical 0644 file.
func DefaultFilePermissions() Permissions {
	return PermissionsFromMode(0o644)
}

// DefaultDirPermissions matches a typical 0755 directory.
func DefaultDirPermissions() Permissions {
	return PermissionsFromMode(0o755)
}

// DefaultSymlinkPermissions matches a typical 0777 symlink.
func DefaultSymlinkPermissions() Permissions {
	return PermissionsFromMode(0o777)
}

// PermissionsFromMode decodes the low 9 bits of a POSIX mode into Permissions.
func PermissionsFromMode(mode uint32) Permissions {
	bit := func(shift uint) bool { return mode&(1<<shift) != 0 }
	return Permissions{
		OwnerRead: bit(8), OwnerWrite: bit(7), OwnerExecute: bit(6),
		GroupRead: bit(5), GroupWrite: bit(4), GroupExecute: bit(3),
		OtherRead: bit(2), OtherWrite: bit(1), OtherExecute: bit(0),
	}
}

// ToMode re-encodes Permissions as the low 9 bits of a POSIX mode.
func (p Permissions) ToMode() uint32 {
	set := func(v bool, shift uint) uint32 {
		if v {
			return 1 << shift
		}
		return 0
	}
	return set(p.OwnerRead, 8) | set(p.OwnerWrite, 7) | set(p.OwnerExecute, 6) |
		set(p.GroupRead, 5) | set(p.GroupWrite, 4) | set(p.GroupExecute, 3) |
		set(p.OtherRead, 2) | set(p.OtherWrite, 1) | set(p.OtherExecute, 0)
}

// FileMetadata is the CRDT-synchronized record for one path in the
// virtual filesystem: its type, content, permissions, and the
// version/timestamp pair used to resolve concurrent edits.
type FileMetadata struct {
	Path          string
	FileType      FileType
	Size          uint64
	ContentHash   *hash.ContentHash
	Chunks        []hash.ContentHash
	Permissions   Permissions
	Created       time.Time
	Modified      time.Time
	Accessed      time.Time
	SymlinkTarget *string
	Version       uint64
	ModifiedBy    string
}

// NewFileMetadata constructs metadata for a regular file given its
// content hash and constituent chunk IDs.
func NewFileMetadata(path string, size uint64, contentHash hash.ContentHash, chunks []hash.ContentHash, modifiedBy string, now time.Time) *FileMetadata {
	return &FileMetadata{
		Path:        path,
		FileType:    FileTypeFile,
		Size:        size,
		ContentHash: &contentHash,
		Chunks:      append([]hash.ContentHash(nil), chunks...),
		Permissions: DefaultFilePermissions(),
		Created:     now,
		Modified:    now,
		Accessed:    now,
		Version:     1,
		ModifiedBy:  modifiedBy,
	}
}

// NewDirectoryMetadata constructs metadata for a directory entry.
func NewDirectoryMetadata(path, modifiedBy string, now time.Time) *FileMetadata {
	return &FileMetadata{
		Path:        path,
		FileType:    FileTypeDirectory,
		Permissions: DefaultDirPermissions(),
		Created:     now,
		Modified:    now,
		Accessed:    now,
		Version:     1,
		ModifiedBy:  modifiedBy,
	}
}

// NewSymlinkMetadata constructs metadata for a symbolic link entry.
func NewSymlinkMetadata(path, target, modifiedBy string, now time.Time) *FileMetadata {
	return &FileMetadata{
		Path:          path,
		FileType:      FileTypeSymlink,
		Permissions:   DefaultSymlinkPermissions(),
		SymlinkTarget: &target,
		Created:       now,
		Modified:      now,
		Accessed:      now,
		Version:       1,
		ModifiedBy:    modifiedBy,
	}
}

func (m *FileMetadata) IsFile() bool      { return m.FileType == FileTypeFile }
func (m *FileMetadata) IsDirectory() bool { return m.FileType == FileTypeDirectory }
func (m *FileMetadata) IsSymlink() bool   { return m.FileType == FileTypeSymlink }

// Touch bumps the version and refreshes the modification timestamp,
// recording who made the change. Callers do this on every local
// mutation so concurrent edits can be ordered by (Version, Modified).
func (m *FileMetadata) Touch(modifiedBy string, now time.Time) {
	m.Version++
	m.Modified = now
	m.ModifiedBy = modifiedBy
}

// Clone returns a deep-enough copy safe for a caller to mutate
// without affecting the original (chunk slice and symlink target are
// copied; nested ContentHash values are copied by value).
func (m *FileMetadata) Clone() *FileMetadata {
	c := *m
	if m.ContentHash != nil {
		h := *m.ContentHash
		c.ContentHash = &h
	}
	if m.SymlinkTarget != nil {
		t := *m.SymlinkTarget
		c.SymlinkTarget = &t
	}
	c.Chunks = append([]hash.ContentHash(nil), m.Chunks...)
	return &c
}
