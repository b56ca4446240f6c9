// Package securechannel implements the X25519 + ChaCha20-Poly1305
// secure channel: ephemeral key agreement, a fixed handshake message
// pair, and an encrypt/decrypt channel with a sliding-window replay
// detector.
package securechannel

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"lukechampine.com/blake3"

	"github.com/HautlyS/secureshuttle/pkg/hash"
)

// Identity identifies a channel participant by their X25519 public key
// and a content hash of that key, used on the wire instead of the raw
// key so peers can cheaply compare identities.
type Identity struct {
	PublicKey  [32]byte
	Identifier hash.ContentHash
}

// IdentityFromPublicKey builds an Identity from a raw X25519 public key.
func IdentityFromPublicKey(pub [32]byte) Identity {
	return Identity{
		PublicKey:  pub,
		Identifier: hash.Sum(pub[:]),
	}
}

// IdentifierHex returns the identity's identifier as lowercase hex.
func (id Identity) IdentifierHex() string {
	return id.Identifier.HexString()
}

// GoString redacts the public key from debug output.
func (id Identity) GoString() string {
	return fmt.Sprintf("Identity{Identifier: %s, PublicKey: [REDACTED]}", id.IdentifierHex())
}

// KeyPair is a single-use X25519 key pair. Agree consumes it, matching
// the ephemeral, one-shot nature of the handshake keys it's used for.
type KeyPair struct {
	private [32]byte
	public  [32]byte
	used    bool
}

// GenerateKeyPair creates a fresh ephemeral X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, &ChannelError{Code: ErrCodeKeyGenerationFailed, Message: "failed to generate X25519 private key", Cause: err}
	}
	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &priv)
	return &KeyPair{private: priv, public: pub}, nil
}

// PublicKey returns the pair's public key.
func (kp *KeyPair) PublicKey() [32]byte {
	return kp.public
}

// Identity returns the Identity derived from this pair's public key.
func (kp *KeyPair) Identity() Identity {
	return IdentityFromPublicKey(kp.public)
}

// Agree performs X25519 with peerPublic, consuming the key pair. It is
// an error to call Agree twice on the same pair: the key is meant for
// single use.
func (kp *KeyPair) Agree(peerPublic [32]byte) (SharedSecret, error) {
	var zero SharedSecret
	if kp.used {
		return zero, &ChannelError{Code: ErrCodeKeyAlreadyConsumed, Message: "ephemeral key pair already used for agreement"}
	}
	kp.used = true
	shared, err := curve25519.X25519(kp.private[:], peerPublic[:])
	if err != nil {
		return zero, &ChannelError{Code: ErrCodeKeyAgreementFailed, Message: "X25519 key agreement failed", Cause: err}
	}
	var secret SharedSecret
	copy(secret[:], shared)
	return secret, nil
}

// SharedSecret is the raw output of an X25519 key agreement.
type SharedSecret [32]byte

// deriveKeysContext is the fixed BLAKE3 derive-key context used for
// all secure channel key derivation. It must never change without
// breaking every existing channel.
const deriveKeysContext = "secureshuttle secure channel keys"

// DerivedKeys holds the two directional keys produced by DeriveKeys.
type DerivedKeys struct {
	InitiatorKey [32]byte
	ResponderKey [32]byte
}

// DeriveKeys expands the shared secret into two directional 32-byte
// keys using BLAKE3's extensible-output derive-key mode, keyed by the
// fixed channel context over the shared secret concatenated with the
// caller-supplied handshake context (the initiator/responder public
// key concatenation). Both sides build the same concatenation, so
// both derive the same key pair.
func (s SharedSecret) DeriveKeys(context []byte) DerivedKeys {
	keyMaterial := make([]byte, 0, len(s)+len(context))
	keyMaterial = append(keyMaterial, s[:]...)
	keyMaterial = append(keyMaterial, context...)

	var output [64]byte
	blake3.DeriveKey(output[:], deriveKeysContext, keyMaterial)

	var keys DerivedKeys
	copy(keys.InitiatorKey[:], output[:32])
	copy(keys.ResponderKey[:], output[32:])
	return keys
}
