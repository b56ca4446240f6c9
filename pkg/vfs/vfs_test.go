package vfs

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	data := []byte("hello, virtual filesystem")
	if _, err := v.Write("/greeting.txt", data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := v.Read("/greeting.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read data does not match written data")
	}
}

func TestWriteUpdateBumpsVersion(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	v.Write("/f.txt", []byte("v1"))
	first, _ := v.Stat("/f.txt")

	v.Write("/f.txt", []byte("v2, longer now"))
	second, err := v.Stat("/f.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if second.Version <= first.Version {
		t.Fatalf("expected version to increase on update: %d -> %d", first.Version, second.Version)
	}
	data, _ := v.Read("/f.txt")
	if string(data) != "v2, longer now" {
		t.Fatalf("unexpected content after update: %q", data)
	}
}

func TestReadMissingFile(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	_, err := v.Read("/nope.txt")
	if !IsVFSError(err, ErrCodeFileNotFound) {
		t.Fatalf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestMkdirAndList(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	if _, err := v.Mkdir("/docs"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	v.Write("/docs/a.txt", []byte("a"))
	v.Write("/docs/b.txt", []byte("b"))
	v.Write("/other.txt", []byte("top level"))

	entries, err := v.List("/docs")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries under /docs, got %d", len(entries))
	}

	root, err := v.List("")
	if err != nil {
		t.Fatalf("List root: %v", err)
	}
	names := map[string]bool{}
	for _, e := range root {
		names[e.Path] = true
	}
	if !names["/docs"] || !names["/other.txt"] {
		t.Fatalf("expected root listing to include /docs and /other.txt, got %+v", root)
	}
	if names["/docs/a.txt"] {
		t.Fatal("root listing should not include nested entries")
	}
}

func TestDeleteRemovesFileAndChunks(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	v.Write("/gone.txt", []byte("will be deleted"))
	if !v.Exists("/gone.txt") {
		t.Fatal("file should exist before delete")
	}
	if err := v.Delete("/gone.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if v.Exists("/gone.txt") {
		t.Fatal("file should not exist after delete")
	}
	if _, err := v.Read("/gone.txt"); !IsVFSError(err, ErrCodeFileNotFound) {
		t.Fatalf("expected FILE_NOT_FOUND after delete, got %v", err)
	}
	if v.Stats().ChunkCount != 0 {
		t.Fatal("delete should drop the file's chunks from the store")
	}
}

func TestDeleteMissingFile(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	if err := v.Delete("/never-was.txt"); !IsVFSError(err, ErrCodeFileNotFound) {
		t.Fatalf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestGarbageCollectPreservesLiveChunks(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	v.Write("/keep.txt", []byte("shared content"))
	v.Write("/also-keep.txt", []byte("shared content")) // dedups to the same chunk

	removed, _ := v.GarbageCollect()
	if removed != 0 {
		t.Fatalf("expected no chunks reclaimed while both files live, got %d removed", removed)
	}
	data, err := v.Read("/keep.txt")
	if err != nil || string(data) != "shared content" {
		t.Fatalf("live file should still read correctly after GC: %v, %q", err, data)
	}
}

func TestStats(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	v.Mkdir("/d")
	v.Write("/d/a.txt", []byte("12345"))
	v.Write("/b.txt", []byte("67890"))

	stats := v.Stats()
	if stats.FileCount != 2 {
		t.Fatalf("expected 2 files, got %d", stats.FileCount)
	}
	if stats.DirCount != 1 {
		t.Fatalf("expected 1 directory, got %d", stats.DirCount)
	}
	if stats.TotalSize != 10 {
		t.Fatalf("expected total size 10, got %d", stats.TotalSize)
	}
}

func TestPathNormalization(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	v.Write("/café.txt", []byte("data"))
	// NFD-decomposed form of the same path should resolve identically
	// once normalized to NFC.
	if !v.Exists("/café.txt") {
		t.Fatal("NFD and NFC forms of the same path should both resolve")
	}
}

func TestRelativePathResolvesUnderMountPoint(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	if _, err := v.Write("notes.txt", []byte("relative")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	m, err := v.Stat("/mnt/notes.txt")
	if err != nil {
		t.Fatalf("relative write should land under the mount point: %v", err)
	}
	if m.Path != "/mnt/notes.txt" {
		t.Fatalf("unexpected resolved path %q", m.Path)
	}
	data, err := v.Read("notes.txt")
	if err != nil || string(data) != "relative" {
		t.Fatalf("relative and absolute forms should resolve alike: %v, %q", err, data)
	}
}

func TestWriteEmptyPathRejected(t *testing.T) {
	v := NewVFS("node-a", "/mnt")
	if _, err := v.Write("", []byte("x")); !IsVFSError(err, ErrCodeInvalidPath) {
		t.Fatalf("expected INVALID_PATH, got %v", err)
	}
}

func TestErrorCodesAreDescriptive(t *testing.T) {
	codes := []string{
		ErrCodeChunkNotFound, ErrCodeHashMismatch, ErrCodeFileNotFound,
		ErrCodeNotADirectory, ErrCodeIsADirectory, ErrCodeAlreadyExists,
		ErrCodeContentHashMissing, ErrCodeInvalidPath,
	}
	for _, c := range codes {
		if len(c) < 10 {
			t.Errorf("error code %q is shorter than 10 characters", c)
		}
	}
}
