package securechannel

import (
	"crypto/rand"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/HautlyS/secureshuttle/pkg/hash"
)

// ChannelRole identifies which side of the handshake a channel plays,
// which determines the asymmetric assignment of encrypt/decrypt keys.
type ChannelRole int

const (
	RoleInitiator ChannelRole = iota
	RoleResponder
)

// EncryptedMessage is an AEAD-sealed payload plus the hash of the
// plaintext it was sealed from, computed before sealing so the
// receiver can detect tampering independent of AEAD tag verification.
type EncryptedMessage struct {
	Ciphertext    []byte
	Nonce         [chacha20poly1305.NonceSize]byte
	PlaintextHash hash.ContentHash
}

// SecureMessage is the wire envelope exchanged over an established
// channel: an encrypted payload, its send counter (for replay
// detection), and the sender's identifier (for cross-channel
// isolation — a message encrypted under one peer's key must not
// decrypt successfully purporting to be from another).
type SecureMessage struct {
	Encrypted EncryptedMessage
	Counter   uint64
	Sender    hash.ContentHash
}

// SecureChannel is an established, keyed channel between two parties.
// EncryptKey and DecryptKey are deliberately asymmetric: the
// initiator's encrypt key equals the responder's decrypt key, and
// vice versa, so that what one side seals the other can open.
type SecureChannel struct {
	role           ChannelRole
	encryptKey     [32]byte
	decryptKey     [32]byte
	localIdentity  Identity
	peerIdentity   Identity
	sendCounter    atomic.Uint64
	replayWindow   *ReplayWindow
}

// newSecureChannel builds a channel from derived keys and the two
// parties' identities, assigning encrypt/decrypt keys per role.
func newSecureChannel(role ChannelRole, derived DerivedKeys, local, peer Identity) *SecureChannel {
	ch := &SecureChannel{
		role:          role,
		localIdentity: local,
		peerIdentity:  peer,
		replayWindow:  NewReplayWindow(),
	}
	switch role {
	case RoleInitiator:
		ch.encryptKey = derived.InitiatorKey
		ch.decryptKey = derived.ResponderKey
	case RoleResponder:
		ch.encryptKey = derived.ResponderKey
		ch.decryptKey = derived.InitiatorKey
	}
	return ch
}

// LocalIdentity returns this side's identity.
func (c *SecureChannel) LocalIdentity() Identity { return c.localIdentity }

// PeerIdentity returns the other side's identity.
func (c *SecureChannel) PeerIdentity() Identity { return c.peerIdentity }

// Encrypt seals plaintext under the channel's encrypt key and wraps it
// in a SecureMessage with the next send counter value.
func (c *SecureChannel) Encrypt(plaintext []byte) (*SecureMessage, error) {
	msg, err := encrypt(c.encryptKey, plaintext)
	if err != nil {
		return nil, err
	}
	counter := c.sendCounter.Add(1) - 1
	return &SecureMessage{
		Encrypted: *msg,
		Counter:   counter,
		Sender:    c.localIdentity.Identifier,
	}, nil
}

// Decrypt verifies the sender identity and replay window, then opens
// msg under the channel's decrypt key.
func (c *SecureChannel) Decrypt(msg *SecureMessage) ([]byte, error) {
	if msg.Sender != c.peerIdentity.Identifier {
		return nil, &ChannelError{Code: ErrCodeAuthenticationFail, Message: "message sender does not match peer identity"}
	}
	if !c.replayWindow.CheckAndMark(msg.Counter) {
		return nil, &ChannelError{Code: ErrCodeReplayDetected, Message: "message counter rejected by replay window"}
	}
	return decrypt(c.decryptKey, &msg.Encrypted)
}

func encrypt(key [32]byte, plaintext []byte) (*EncryptedMessage, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, &ChannelError{Code: ErrCodeEncryptionFailed, Message: "failed to construct AEAD cipher", Cause: err}
	}
	var nonce [chacha20poly1305.NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, &ChannelError{Code: ErrCodeEncryptionFailed, Message: "failed to generate nonce", Cause: err}
	}
	plaintextHash := hash.Sum(plaintext)
	ciphertext := aead.Seal(nil, nonce[:], plaintext, nil)
	return &EncryptedMessage{
		Ciphertext:    ciphertext,
		Nonce:         nonce,
		PlaintextHash: plaintextHash,
	}, nil
}

func decrypt(key [32]byte, msg *EncryptedMessage) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, &ChannelError{Code: ErrCodeDecryptionFailed, Message: "failed to construct AEAD cipher", Cause: err}
	}
	plaintext, err := aead.Open(nil, msg.Nonce[:], msg.Ciphertext, nil)
	if err != nil {
		// Covers wrong key, truncation, and tampering uniformly: AEAD
		// open failure never distinguishes the cause.
		return nil, &ChannelError{Code: ErrCodeDecryptionFailed, Message: "AEAD open failed: wrong key, truncated, or tampered ciphertext", Cause: err}
	}
	if hash.Sum(plaintext) != msg.PlaintextHash {
		return nil, &ChannelError{Code: ErrCodeAuthenticationFail, Message: "decrypted plaintext hash does not match expected hash"}
	}
	return plaintext, nil
}
