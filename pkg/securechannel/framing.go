package securechannel

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteMessage writes a length-prefixed message to w: a 4-byte
// big-endian length followed by exactly that many payload bytes. This
// is the framing used when secure channel records travel over a
// bidirectional byte stream rather than a datagram transport.
func WriteMessage(w io.Writer, data []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return &ChannelError{Code: ErrCodeStreamFailure, Message: "failed to write message length prefix", Cause: err}
	}
	if _, err := w.Write(data); err != nil {
		return &ChannelError{Code: ErrCodeStreamFailure, Message: "failed to write message payload", Cause: err}
	}
	return nil
}

// ReadMessage reads one length-prefixed message from r, rejecting any
// message whose declared length exceeds maxSize before reading the
// payload.
func ReadMessage(r io.Reader, maxSize uint32) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, &ChannelError{Code: ErrCodeStreamFailure, Message: "failed to read message length prefix", Cause: err}
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > maxSize {
		return nil, &ChannelError{
			Code:    ErrCodeMessageTooLarge,
			Message: fmt.Sprintf("message of %d bytes exceeds maximum %d", length, maxSize),
		}
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, &ChannelError{Code: ErrCodeStreamFailure, Message: "failed to read message payload", Cause: err}
	}
	return data, nil
}
