package securechannel

import (
	"github.com/HautlyS/secureshuttle/pkg/codec/cborcanon"
	"github.com/HautlyS/secureshuttle/pkg/hash"
)

// wireSecureMessage and wireHandshakeMessage are plain, exported-field
// mirrors of the in-memory types, used only as the CBOR encode/decode
// target. Keeping them separate from SecureMessage/HandshakeMessage
// lets the in-memory types keep their own shape (like the
// HandshakeMessage union's Init/Resp pointer fields) without CBOR tags
// leaking into the public API.
type wireSecureMessage struct {
	Ciphertext    []byte
	Nonce         [12]byte
	PlaintextHash [32]byte
	Counter       uint64
	Sender        [32]byte
}

// MarshalCBOR encodes a SecureMessage in canonical CBOR form.
func (m *SecureMessage) MarshalCBOR() ([]byte, error) {
	w := wireSecureMessage{
		Ciphertext:    m.Encrypted.Ciphertext,
		Nonce:         m.Encrypted.Nonce,
		PlaintextHash: [32]byte(m.Encrypted.PlaintextHash),
		Counter:       m.Counter,
		Sender:        [32]byte(m.Sender),
	}
	return cborcanon.Marshal(w)
}

// UnmarshalCBOR decodes a SecureMessage from canonical CBOR form.
func (m *SecureMessage) UnmarshalCBOR(data []byte) error {
	var w wireSecureMessage
	if err := cborcanon.Unmarshal(data, &w); err != nil {
		return &ChannelError{Code: ErrCodeInvalidKeyFormat, Message: "failed to decode secure message", Cause: err}
	}
	m.Encrypted.Ciphertext = w.Ciphertext
	m.Encrypted.Nonce = w.Nonce
	m.Encrypted.PlaintextHash = hash.ContentHash(w.PlaintextHash)
	m.Counter = w.Counter
	m.Sender = hash.ContentHash(w.Sender)
	return nil
}

type wireHandshakeMessage struct {
	Type      HandshakeType
	PublicKey [32]byte
	Identity  [32]byte
}

// MarshalCBOR encodes a HandshakeMessage in canonical CBOR form.
func (h *HandshakeMessage) MarshalCBOR() ([]byte, error) {
	var w wireHandshakeMessage
	w.Type = h.Type
	switch h.Type {
	case HandshakeTypeInit:
		w.PublicKey = h.Init.PublicKey
		w.Identity = [32]byte(h.Init.Identity.Identifier)
	case HandshakeTypeResponse:
		w.PublicKey = h.Resp.PublicKey
		w.Identity = [32]byte(h.Resp.Identity.Identifier)
	}
	return cborcanon.Marshal(w)
}

// UnmarshalCBOR decodes a HandshakeMessage from canonical CBOR form.
func (h *HandshakeMessage) UnmarshalCBOR(data []byte) error {
	var w wireHandshakeMessage
	if err := cborcanon.Unmarshal(data, &w); err != nil {
		return &ChannelError{Code: ErrCodeInvalidKeyFormat, Message: "failed to decode handshake message", Cause: err}
	}
	h.Type = w.Type
	identity := Identity{PublicKey: w.PublicKey, Identifier: w.Identity}
	switch w.Type {
	case HandshakeTypeInit:
		h.Init = &HandshakeInit{PublicKey: w.PublicKey, Identity: identity}
	case HandshakeTypeResponse:
		h.Resp = &HandshakeResponse{PublicKey: w.PublicKey, Identity: identity}
	}
	return nil
}
