package vfs

import (
	"time"

	"github.com/HautlyS/secureshuttle/pkg/codec/cborcanon"
	"github.com/HautlyS/secureshuttle/pkg/hash"
)

// wireFileMetadata is the CBOR-friendly mirror of FileMetadata: chunk
// IDs and the optional content hash are flattened to plain 32-byte
// arrays, and the optional fields carry HasHash/HasSymlink flags, so
// the canonical encoder never has to special-case pointers.
type wireFileMetadata struct {
	Path          string
	FileType      FileType
	Size          uint64
	HasHash       bool
	ContentHash   [32]byte
	Chunks        [][32]byte
	Permissions   Permissions
	Created       time.Time
	Modified      time.Time
	Accessed      time.Time
	HasSymlink    bool
	SymlinkTarget string
	Version       uint64
	ModifiedBy    string
}

func toWireMetadata(m *FileMetadata) wireFileMetadata {
	w := wireFileMetadata{
		Path:        m.Path,
		FileType:    m.FileType,
		Size:        m.Size,
		Permissions: m.Permissions,
		Created:     m.Created,
		Modified:    m.Modified,
		Accessed:    m.Accessed,
		Version:     m.Version,
		ModifiedBy:  m.ModifiedBy,
	}
	if m.ContentHash != nil {
		w.HasHash = true
		w.ContentHash = [32]byte(*m.ContentHash)
	}
	if m.SymlinkTarget != nil {
		w.HasSymlink = true
		w.SymlinkTarget = *m.SymlinkTarget
	}
	w.Chunks = make([][32]byte, len(m.Chunks))
	for i, c := range m.Chunks {
		w.Chunks[i] = [32]byte(c)
	}
	return w
}

func (w wireFileMetadata) toMetadata() *FileMetadata {
	m := &FileMetadata{
		Path:        w.Path,
		FileType:    w.FileType,
		Size:        w.Size,
		Permissions: w.Permissions,
		Created:     w.Created,
		Modified:    w.Modified,
		Accessed:    w.Accessed,
		Version:     w.Version,
		ModifiedBy:  w.ModifiedBy,
	}
	if w.HasHash {
		h := hash.ContentHash(w.ContentHash)
		m.ContentHash = &h
	}
	if w.HasSymlink {
		t := w.SymlinkTarget
		m.SymlinkTarget = &t
	}
	m.Chunks = make([]hash.ContentHash, len(w.Chunks))
	for i, c := range w.Chunks {
		m.Chunks[i] = hash.ContentHash(c)
	}
	return m
}

// wireOp mirrors Op. Metadata travels only for Create/Update
// (HasMetadata false otherwise); Delete carries just Path and Move
// just From/To.
type wireOp struct {
	Kind        OpKind
	Path        string
	HasMetadata bool
	Metadata    wireFileMetadata
	From        string
	To          string
}

// wireTimestampedOp is the over-the-wire replication record for one
// logged operation, encoded as canonical CBOR so replicas that hash or
// sign the batch see byte-identical bytes for identical operations.
type wireTimestampedOp struct {
	Op        wireOp
	Timestamp time.Time
	NodeID    string
	Clock     uint64
}

// MarshalCBOR encodes a TimestampedOp in canonical CBOR form, suitable
// for inclusion in a replication batch sent over a secure channel.
func (t TimestampedOp) MarshalCBOR() ([]byte, error) {
	w := wireTimestampedOp{
		Op: wireOp{
			Kind: t.Op.Kind,
			Path: t.Op.Path,
			From: t.Op.From,
			To:   t.Op.To,
		},
		Timestamp: t.Timestamp,
		NodeID:    t.NodeID,
		Clock:     t.Clock,
	}
	if t.Op.Metadata != nil {
		w.Op.HasMetadata = true
		w.Op.Metadata = toWireMetadata(t.Op.Metadata)
	}
	return cborcanon.Marshal(w)
}

// UnmarshalCBOR decodes a TimestampedOp from canonical CBOR form.
func (t *TimestampedOp) UnmarshalCBOR(data []byte) error {
	var w wireTimestampedOp
	if err := cborcanon.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Op = Op{Kind: w.Op.Kind, Path: w.Op.Path, From: w.Op.From, To: w.Op.To}
	if w.Op.HasMetadata {
		t.Op.Metadata = w.Op.Metadata.toMetadata()
	}
	t.Timestamp = w.Timestamp
	t.NodeID = w.NodeID
	t.Clock = w.Clock
	return nil
}

// EncodeReplicationBatch canonically encodes a slice of operations for
// transmission to a peer, e.g. the result of SyncState.OperationsSince.
func EncodeReplicationBatch(ops []TimestampedOp) ([]byte, error) {
	return cborcanon.Marshal(ops)
}

// DecodeReplicationBatch decodes a batch produced by EncodeReplicationBatch.
func DecodeReplicationBatch(data []byte) ([]TimestampedOp, error) {
	var ops []TimestampedOp
	if err := cborcanon.Unmarshal(data, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}
