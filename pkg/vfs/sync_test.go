package vfs

import (
	"testing"
	"time"

	"github.com/HautlyS/secureshuttle/pkg/hash"
)

func TestApplyLocalAdvancesClock(t *testing.T) {
	s := NewSyncState("node-a")
	now := time.Now()
	m := NewFileMetadata("/a.txt", 1, hash.Sum([]byte("a")), nil, "node-a", now)
	top := s.ApplyLocal(Op{Kind: OpCreate, Path: "/a.txt", Metadata: m}, now)
	if top.Clock != 1 {
		t.Fatalf("expected clock 1, got %d", top.Clock)
	}
	if s.Clock() != 1 {
		t.Fatalf("expected state clock 1, got %d", s.Clock())
	}
	got, ok := s.Get("/a.txt")
	if !ok || got.Path != "/a.txt" {
		t.Fatal("created file not retrievable")
	}
}

func TestApplyRemoteClockIsMaxPlusOne(t *testing.T) {
	s := NewSyncState("node-a")
	now := time.Now()
	m := NewFileMetadata("/a.txt", 1, hash.Sum([]byte("a")), nil, "node-b", now)
	remote := TimestampedOp{Op: Op{Kind: OpCreate, Path: "/a.txt", Metadata: m}, Timestamp: now, NodeID: "node-b", Clock: 5}
	s.ApplyRemote(remote)
	if s.Clock() != 6 {
		t.Fatalf("expected local clock to become max(0,5)+1=6, got %d", s.Clock())
	}
}

func TestLWWHigherVersionWins(t *testing.T) {
	s := NewSyncState("node-a")
	now := time.Now()
	old := NewFileMetadata("/a.txt", 1, hash.Sum([]byte("old")), nil, "node-a", now)
	s.ApplyLocal(Op{Kind: OpCreate, Path: "/a.txt", Metadata: old}, now)

	newer := old.Clone()
	newer.Version = 5
	newer.Size = 999
	s.ApplyRemote(TimestampedOp{Op: Op{Kind: OpUpdate, Path: "/a.txt", Metadata: newer}, Timestamp: now, NodeID: "node-b", Clock: 1})

	got, _ := s.Get("/a.txt")
	if got.Version != 5 || got.Size != 999 {
		t.Fatalf("expected higher-version update to win, got %+v", got)
	}
}

func TestLWWTieBreaksByLexicographicNodeID(t *testing.T) {
	now := time.Now()
	base := NewFileMetadata("/a.txt", 1, hash.Sum([]byte("a")), nil, "seed", now)
	base.Version = 3

	fromA := base.Clone()
	fromA.ModifiedBy = "a-node"
	fromA.Size = 111
	fromZ := base.Clone()
	fromZ.ModifiedBy = "z-node"
	fromZ.Size = 999

	// Version and modification time tie exactly, so the
	// lexicographically smaller writing node ("a-node") must win
	// regardless of arrival order.
	s := NewSyncState("observer")
	s.ApplyRemote(TimestampedOp{Op: Op{Kind: OpUpdate, Path: "/a.txt", Metadata: fromZ}, Timestamp: now, NodeID: "z-node", Clock: 1})
	s.ApplyRemote(TimestampedOp{Op: Op{Kind: OpUpdate, Path: "/a.txt", Metadata: fromA}, Timestamp: now, NodeID: "a-node", Clock: 2})
	got, _ := s.Get("/a.txt")
	if got.ModifiedBy != "a-node" || got.Size != 111 {
		t.Fatalf("expected a-node's write to win the tie, got %+v", got)
	}

	s2 := NewSyncState("observer2")
	s2.ApplyRemote(TimestampedOp{Op: Op{Kind: OpUpdate, Path: "/a.txt", Metadata: fromA}, Timestamp: now, NodeID: "a-node", Clock: 1})
	s2.ApplyRemote(TimestampedOp{Op: Op{Kind: OpUpdate, Path: "/a.txt", Metadata: fromZ}, Timestamp: now, NodeID: "z-node", Clock: 2})
	got2, _ := s2.Get("/a.txt")
	if got2.ModifiedBy != got.ModifiedBy || got2.Size != got.Size {
		t.Fatal("tie resolution should be independent of arrival order")
	}
}

func TestMergeIsCommutativeAndIdempotent(t *testing.T) {
	now := time.Now()
	a := NewSyncState("node-a")
	b := NewSyncState("node-b")

	ma := NewFileMetadata("/a.txt", 1, hash.Sum([]byte("a")), nil, "node-a", now)
	a.ApplyLocal(Op{Kind: OpCreate, Path: "/a.txt", Metadata: ma}, now)

	mb := NewFileMetadata("/b.txt", 1, hash.Sum([]byte("b")), nil, "node-b", now)
	b.ApplyLocal(Op{Kind: OpCreate, Path: "/b.txt", Metadata: mb}, now)

	// Merge a then b into c1, and b then a into c2 (commutative).
	c1 := NewSyncState("c1")
	c1.Merge(a)
	c1.Merge(b)
	c2 := NewSyncState("c2")
	c2.Merge(b)
	c2.Merge(a)

	if len(c1.ListFiles()) != 2 || len(c2.ListFiles()) != 2 {
		t.Fatalf("expected both merged states to see 2 files, got %d and %d", len(c1.ListFiles()), len(c2.ListFiles()))
	}

	// Merging again should not duplicate anything (idempotent).
	c1.Merge(a)
	c1.Merge(b)
	if len(c1.ListFiles()) != 2 {
		t.Fatalf("re-merge should be idempotent, got %d files", len(c1.ListFiles()))
	}
}

func TestDeleteRemovesFileFromState(t *testing.T) {
	now := time.Now()
	e := NewSyncEngine("node-a")
	m := NewFileMetadata("/a.txt", 1, hash.Sum([]byte("a")), nil, "node-a", now)
	e.CreateFile(m, now)

	if _, ok := e.DeleteFile("/a.txt", now.Add(time.Second)); !ok {
		t.Fatal("expected delete to succeed")
	}
	if _, ok := e.State.Get("/a.txt"); ok {
		t.Fatal("deleted file should not be retrievable")
	}
	if len(e.State.ListFiles()) != 0 {
		t.Fatal("deleted file should not appear in listing")
	}
}

func TestDeleteUnknownPathFails(t *testing.T) {
	e := NewSyncEngine("node-a")
	if _, ok := e.DeleteFile("/nope", time.Now()); ok {
		t.Fatal("expected delete of unknown path to fail")
	}
}

func TestMoveFileRelocatesRecord(t *testing.T) {
	now := time.Now()
	e := NewSyncEngine("node-a")
	m := NewFileMetadata("/old.txt", 1, hash.Sum([]byte("a")), nil, "node-a", now)
	e.CreateFile(m, now)

	if _, ok := e.MoveFile("/old.txt", "/new.txt", now.Add(time.Second)); !ok {
		t.Fatal("expected move to succeed")
	}
	if _, ok := e.State.Get("/old.txt"); ok {
		t.Fatal("origin path should no longer resolve after move")
	}
	got, ok := e.State.Get("/new.txt")
	if !ok || got.Path != "/new.txt" {
		t.Fatal("destination path should resolve after move")
	}
	if got.Size != m.Size || got.Version != m.Version {
		t.Fatalf("moved record should keep its metadata, got %+v", got)
	}
}

func TestMoveUnknownPathFails(t *testing.T) {
	e := NewSyncEngine("node-a")
	if _, ok := e.MoveFile("/nope", "/elsewhere", time.Now()); ok {
		t.Fatal("expected move of unknown path to fail")
	}
}

func TestOperationsSince(t *testing.T) {
	now := time.Now()
	e := NewSyncEngine("node-a")
	e.CreateFile(NewFileMetadata("/a.txt", 1, hash.Sum([]byte("a")), nil, "node-a", now), now)
	e.CreateFile(NewFileMetadata("/b.txt", 1, hash.Sum([]byte("b")), nil, "node-a", now), now)
	e.CreateFile(NewFileMetadata("/c.txt", 1, hash.Sum([]byte("c")), nil, "node-a", now), now)

	ops := e.State.OperationsSince(1)
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations since clock 1, got %d", len(ops))
	}
	for _, op := range ops {
		if op.Clock <= 1 {
			t.Fatalf("OperationsSince returned an operation at or before the cutoff: %+v", op)
		}
	}
}

func TestSyncWithConverges(t *testing.T) {
	now := time.Now()
	a := NewSyncEngine("node-a")
	b := NewSyncEngine("node-b")

	a.CreateFile(NewFileMetadata("/a.txt", 1, hash.Sum([]byte("a")), nil, "node-a", now), now)
	b.CreateFile(NewFileMetadata("/b.txt", 1, hash.Sum([]byte("b")), nil, "node-b", now), now)

	a.SyncWith(b)

	if len(a.State.ListFiles()) != 2 {
		t.Fatalf("expected node-a to see 2 files after sync, got %d", len(a.State.ListFiles()))
	}
	if len(b.State.ListFiles()) != 2 {
		t.Fatalf("expected node-b to see 2 files after sync, got %d", len(b.State.ListFiles()))
	}
}
