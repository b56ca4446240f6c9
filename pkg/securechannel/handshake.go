package securechannel

// HandshakeMessage is the two-message handshake exchanged to establish
// a channel: Init from the initiator, Response from the responder.
// Exactly one of the two fields is set, selected by Type.
type HandshakeMessage struct {
	Type HandshakeType
	Init *HandshakeInit
	Resp *HandshakeResponse
}

// HandshakeType discriminates the handshake message variants.
type HandshakeType int

const (
	HandshakeTypeInit HandshakeType = iota
	HandshakeTypeResponse
)

// HandshakeInit is sent by the initiator to open a handshake.
type HandshakeInit struct {
	PublicKey [32]byte
	Identity  Identity
}

// HandshakeResponse is sent by the responder to complete a handshake.
type HandshakeResponse struct {
	PublicKey [32]byte
	Identity  Identity
}

// SecureChannelBuilder drives one side of a handshake to a
// SecureChannel. A builder is single-use: its key pair is consumed by
// the agreement it performs.
type SecureChannelBuilder struct {
	localKeyPair  *KeyPair
	localIdentity Identity
}

// NewSecureChannelBuilder generates a fresh ephemeral key pair and
// returns a builder ready to initiate or respond to a handshake.
func NewSecureChannelBuilder() (*SecureChannelBuilder, error) {
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &SecureChannelBuilder{
		localKeyPair:  kp,
		localIdentity: kp.Identity(),
	}, nil
}

// CreateInitMessage returns the Init message for this builder, acting
// as the initiator.
func (b *SecureChannelBuilder) CreateInitMessage() HandshakeMessage {
	return HandshakeMessage{
		Type: HandshakeTypeInit,
		Init: &HandshakeInit{
			PublicKey: b.localKeyPair.PublicKey(),
			Identity:  b.localIdentity,
		},
	}
}

// ProcessInit consumes an Init message as the responder, producing an
// established SecureChannel and the Response message to send back.
// Key derivation always uses initiator_pub || responder_pub as the
// context, regardless of which side computes it; here the peer (the
// sender of Init) is the initiator, so peer||local is that order.
func (b *SecureChannelBuilder) ProcessInit(init *HandshakeInit) (*SecureChannel, HandshakeMessage, error) {
	peerIdentity := init.Identity
	shared, err := b.localKeyPair.Agree(init.PublicKey)
	if err != nil {
		return nil, HandshakeMessage{}, err
	}

	localPub := b.localKeyPair.PublicKey()
	context := make([]byte, 0, 64)
	context = append(context, init.PublicKey[:]...)
	context = append(context, localPub[:]...)
	derived := shared.DeriveKeys(context)

	channel := newSecureChannel(RoleResponder, derived, b.localIdentity, peerIdentity)
	response := HandshakeMessage{
		Type: HandshakeTypeResponse,
		Resp: &HandshakeResponse{
			PublicKey: b.localKeyPair.PublicKey(),
			Identity:  b.localIdentity,
		},
	}
	return channel, response, nil
}

// ProcessResponse consumes a Response message as the initiator,
// completing the handshake and returning the established channel.
// Local is the initiator here, so local||peer is initiator||responder.
func (b *SecureChannelBuilder) ProcessResponse(resp *HandshakeResponse) (*SecureChannel, error) {
	peerIdentity := resp.Identity
	shared, err := b.localKeyPair.Agree(resp.PublicKey)
	if err != nil {
		return nil, err
	}

	localPub := b.localKeyPair.PublicKey()
	context := make([]byte, 0, 64)
	context = append(context, localPub[:]...)
	context = append(context, resp.PublicKey[:]...)
	derived := shared.DeriveKeys(context)

	return newSecureChannel(RoleInitiator, derived, b.localIdentity, peerIdentity), nil
}
