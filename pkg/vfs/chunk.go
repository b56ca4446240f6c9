package vfs

import (
	"sync"

	"github.com/HautlyS/secureshuttle/pkg/hash"
)

// DefaultChunkSize is the fixed chunk size used when callers don't
// request a different split size.
const DefaultChunkSize = 64 * 1024

// Chunk is a content-addressed block of file data. Its ID is the
// BLAKE3 hash of Data, so two chunks with identical bytes always
// carry the same ID regardless of which file they came from.
type Chunk struct {
	ID   hash.ContentHash
	Data []byte
}

// NewChunk hashes data and wraps it in a Chunk.
func NewChunk(data []byte) *Chunk {
	return &Chunk{ID: hash.Sum(data), Data: data}
}

// Size returns the chunk's payload size in bytes.
func (c *Chunk) Size() int { return len(c.Data) }

// Verify reports whether the chunk's ID still matches its data.
func (c *Chunk) Verify() bool {
	return hash.Sum(c.Data) == c.ID
}

// ChunkData splits data into fixed-size chunks of chunkSize bytes
// (the final chunk may be shorter), each content-addressed by its
// own hash. A zero or negative chunkSize falls back to DefaultChunkSize.
func ChunkData(data []byte, chunkSize int) []*Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunks := make([]*Chunk, 0, (len(data)+chunkSize-1)/chunkSize)
	for start := 0; start < len(data); start += chunkSize {
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, NewChunk(data[start:end]))
	}
	return chunks
}

// ReassembleChunks concatenates chunk payloads in order.
func ReassembleChunks(chunks []*Chunk) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c.Data)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out
}

// Store is a deduplicating, content-addressed chunk store. Chunks
// sharing the same hash are stored once regardless of how many files
// reference them; GarbageCollect reclaims chunks no longer referenced
// by any live file.
type Store struct {
	mu     sync.RWMutex
	chunks map[hash.ContentHash]*Chunk
}

// NewStore returns an empty chunk store.
func NewStore() *Store {
	return &Store{chunks: make(map[hash.ContentHash]*Chunk)}
}

// Put inserts chunk, deduplicating against an existing chunk with the
// same ID. Returns the chunk's ID.
func (s *Store) Put(chunk *Chunk) hash.ContentHash {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[chunk.ID]; !ok {
		s.chunks[chunk.ID] = chunk
	}
	return chunk.ID
}

// PutData hashes data, wraps it in a Chunk, and stores it.
func (s *Store) PutData(data []byte) hash.ContentHash {
	return s.Put(NewChunk(data))
}

// Get retrieves the chunk with the given ID.
func (s *Store) Get(id hash.ContentHash) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return nil, &VFSError{Code: ErrCodeChunkNotFound, Message: "chunk not found: " + id.HexString()}
	}
	return c, nil
}

// Has reports whether a chunk with the given ID is present.
func (s *Store) Has(id hash.ContentHash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[id]
	return ok
}

// Remove deletes and returns the chunk with the given ID, if present.
func (s *Store) Remove(id hash.ContentHash) (*Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if ok {
		delete(s.chunks, id)
	}
	return c, ok
}

// Len returns the number of distinct chunks stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// TotalSize returns the sum of all stored chunk payload sizes.
func (s *Store) TotalSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.chunks {
		total += len(c.Data)
	}
	return total
}

// ListIDs returns every chunk ID currently stored, in no particular order.
func (s *Store) ListIDs() []hash.ContentHash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]hash.ContentHash, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	return ids
}

// GarbageCollect removes every stored chunk whose ID is not present in
// referenced, returning the count of chunks removed and the bytes
// freed. The store does not track references itself; callers
// (typically the VFS facade) compute the live set from current file
// metadata and pass it in.
func (s *Store) GarbageCollect(referenced map[hash.ContentHash]struct{}) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, freed := 0, 0
	for id, c := range s.chunks {
		if _, live := referenced[id]; !live {
			delete(s.chunks, id)
			removed++
			freed += len(c.Data)
		}
	}
	return removed, freed
}

// Clear removes every chunk from the store, returning the count
// removed and the bytes freed.
func (s *Store) Clear() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, bytes := len(s.chunks), 0
	for _, c := range s.chunks {
		bytes += len(c.Data)
	}
	s.chunks = make(map[hash.ContentHash]*Chunk)
	return n, bytes
}
