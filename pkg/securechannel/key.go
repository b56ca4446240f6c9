package securechannel

import (
	"crypto/rand"
	"fmt"

	"github.com/HautlyS/secureshuttle/pkg/hash"
)

// KeySize is the AEAD key length in bytes.
const KeySize = 32

// EncryptionKey is a 256-bit symmetric AEAD key. Its raw bytes never
// appear in formatted output; use Bytes only where the key material is
// genuinely needed.
type EncryptionKey struct {
	key [KeySize]byte
}

// GenerateEncryptionKey returns a fresh cryptographically random key.
func GenerateEncryptionKey() (*EncryptionKey, error) {
	var k EncryptionKey
	if _, err := rand.Read(k.key[:]); err != nil {
		return nil, &ChannelError{Code: ErrCodeKeyGenerationFailed, Message: "failed to generate encryption key", Cause: err}
	}
	return &k, nil
}

// EncryptionKeyFromBytes wraps existing 32-byte key material.
func EncryptionKeyFromBytes(b [KeySize]byte) *EncryptionKey {
	return &EncryptionKey{key: b}
}

// EncryptionKeyFromPassword derives a key from a low-entropy password
// and salt via the slow password KDF. The salt must be at least 16
// bytes; a shorter salt is a caller bug and panics.
func EncryptionKeyFromPassword(password, salt []byte) *EncryptionKey {
	return &EncryptionKey{key: hash.KDFPassword(password, salt)}
}

// EncryptionKeyFromHighEntropySecret derives a key from an
// already-uniform secret (e.g. a key-agreement output) via the fast
// KDF.
func EncryptionKeyFromHighEntropySecret(secret, context []byte) *EncryptionKey {
	return &EncryptionKey{key: hash.KDFHighEntropy(secret, context)}
}

// Bytes returns the raw key material.
func (k *EncryptionKey) Bytes() [KeySize]byte {
	return k.key
}

// Zeroize overwrites the key material in place. Best-effort: Go gives
// no guarantee about copies the runtime may have made.
func (k *EncryptionKey) Zeroize() {
	for i := range k.key {
		k.key[i] = 0
	}
}

// String redacts the key material.
func (k *EncryptionKey) String() string {
	return "EncryptionKey{key: [REDACTED]}"
}

// GoString redacts the key material from %#v output.
func (k *EncryptionKey) GoString() string {
	return k.String()
}

// Format redacts the key material under every verb, including %+v.
func (k *EncryptionKey) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, k.String())
}

// Encrypt seals plaintext under this key with a fresh random nonce.
func (k *EncryptionKey) Encrypt(plaintext []byte) (*EncryptedMessage, error) {
	return encrypt(k.key, plaintext)
}

// Decrypt opens msg under this key, verifying both the AEAD tag and
// the recorded plaintext hash.
func (k *EncryptionKey) Decrypt(msg *EncryptedMessage) ([]byte, error) {
	return decrypt(k.key, msg)
}
