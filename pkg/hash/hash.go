// Package hash provides BLAKE3-based content hashing and key derivation
// primitives used throughout secureshuttle: content addressing for the
// virtual filesystem, and password/high-entropy key derivation for the
// secure channel.
package hash

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"
	"lukechampine.com/blake3"
)

// Size is the length in bytes of a ContentHash.
const Size = 32

// ContentHash is a BLAKE3-256 digest over arbitrary content.
type ContentHash [Size]byte

// Sum computes the BLAKE3-256 hash of data.
func Sum(data []byte) ContentHash {
	var h ContentHash
	sum := blake3.Sum256(data)
	copy(h[:], sum[:])
	return h
}

// Bytes returns the raw digest bytes.
func (h ContentHash) Bytes() []byte {
	return h[:]
}

// HexString encodes the hash as lowercase hex.
func (h ContentHash) HexString() string {
	return hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h ContentHash) String() string {
	return h.HexString()
}

// Equals reports whether two hashes are byte-for-byte identical.
func (h ContentHash) Equals(other ContentHash) bool {
	return h == other
}

// IsZero reports whether h is the zero hash.
func (h ContentHash) IsZero() bool {
	return h == ContentHash{}
}

// FromHex parses a lowercase or uppercase hex string into a ContentHash.
func FromHex(s string) (ContentHash, error) {
	var h ContentHash
	if len(s) != Size*2 {
		return h, &HashError{
			Code:    ErrCodeInvalidHexLength,
			Message: fmt.Sprintf("invalid hex length: expected %d, got %d", Size*2, len(s)),
		}
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return h, &HashError{
			Code:    ErrCodeInvalidHexChar,
			Message: "invalid hex character in hash string",
			Cause:   err,
		}
	}
	copy(h[:], decoded)
	return h, nil
}

// Verify reports whether data hashes to expected.
func Verify(data []byte, expected ContentHash) bool {
	return Sum(data) == expected
}

// HashReader streams r in 8 KiB chunks and returns the BLAKE3-256 hash
// of everything read.
func HashReader(r io.Reader) (ContentHash, error) {
	hasher := NewIncrementalHasher()
	buf := make([]byte, 8192)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			var zero ContentHash
			return zero, &HashError{Code: ErrCodeIOFailure, Message: "failed reading stream for hashing", Cause: err}
		}
	}
	return hasher.Finalize(), nil
}

// HashFile opens path and returns the BLAKE3-256 hash of its contents,
// streamed in 8 KiB chunks rather than read into memory whole.
func HashFile(path string) (ContentHash, error) {
	var zero ContentHash
	f, err := os.Open(path)
	if err != nil {
		return zero, &HashError{Code: ErrCodeIOFailure, Message: "failed to open file for hashing", Cause: err}
	}
	defer f.Close()
	return HashReader(f)
}

// IncrementalHasher accumulates data incrementally and produces a
// ContentHash on demand, mirroring the one-shot Sum function's result
// for the same bytes fed in any chunking.
type IncrementalHasher struct {
	hasher         *blake3.Hasher
	bytesProcessed uint64
}

// NewIncrementalHasher returns a ready-to-use incremental hasher.
func NewIncrementalHasher() *IncrementalHasher {
	return &IncrementalHasher{hasher: blake3.New(Size, nil)}
}

// Write feeds more data into the hasher. It never returns an error.
func (h *IncrementalHasher) Write(data []byte) {
	h.hasher.Write(data)
	h.bytesProcessed += uint64(len(data))
}

// BytesProcessed returns the total number of bytes written so far.
func (h *IncrementalHasher) BytesProcessed() uint64 {
	return h.bytesProcessed
}

// Finalize returns the hash of everything written so far. It does not
// change the hasher's state, so more data may still be written.
func (h *IncrementalHasher) Finalize() ContentHash {
	var out ContentHash
	copy(out[:], h.hasher.Sum(nil))
	return out
}

// FinalizeReset returns the current hash and resets the hasher for reuse.
func (h *IncrementalHasher) FinalizeReset() ContentHash {
	out := h.Finalize()
	h.hasher.Reset()
	h.bytesProcessed = 0
	return out
}

// kdfPasswordIterations is the OWASP-recommended PBKDF2-HMAC-SHA256
// iteration count for password-based key derivation.
const kdfPasswordIterations = 600_000

// minSaltSize is the minimum salt length kdf_password will accept.
// A shorter salt defeats the purpose of salting and is a caller bug,
// not a recoverable runtime condition.
const minSaltSize = 16

// KDFPassword derives a 32-byte key from a low-entropy password using
// PBKDF2-HMAC-SHA256 with 600,000 iterations. It panics if salt is
// shorter than 16 bytes: a short salt is a precondition violation by
// the caller, not something the channel can safely continue from.
func KDFPassword(password, salt []byte) [32]byte {
	if len(salt) < minSaltSize {
		panic(fmt.Sprintf("hash: salt must be at least %d bytes for security, got %d", minSaltSize, len(salt)))
	}
	derived := pbkdf2.Key(password, salt, kdfPasswordIterations, 32, sha256.New)
	var out [32]byte
	copy(out[:], derived)
	return out
}

// kdfHighEntropyContext is the fixed BLAKE3 derive-key context for
// kdf_high_entropy. It is intentionally distinct from the secure
// channel's own key-derivation context string.
const kdfHighEntropyContext = "secureshuttle encryption key"

// KDFHighEntropy derives a 32-byte key from an already high-entropy
// secret (e.g. a shared secret from key agreement) using BLAKE3's
// extensible-output derive-key mode. It is fast: unlike KDFPassword it
// performs no iterated stretching, since the input is assumed to
// already carry enough entropy.
func KDFHighEntropy(secret, context []byte) [32]byte {
	keyMaterial := make([]byte, 0, len(secret)+len(context))
	keyMaterial = append(keyMaterial, secret...)
	keyMaterial = append(keyMaterial, context...)
	var out [32]byte
	blake3.DeriveKey(out[:], kdfHighEntropyContext, keyMaterial)
	return out
}

// GenerateSalt returns 32 cryptographically random bytes suitable for
// use with KDFPassword.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, &HashError{Code: ErrCodeRandomFailure, Message: "failed to generate salt", Cause: err}
	}
	return salt, nil
}
