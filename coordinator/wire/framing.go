package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize caps a single framed message. A peer announcing more
// than this is treated as a transport error, not a syntax error.
const MaxMessageSize = 1 << 20

var (
	// ErrClosed reports an orderly close between messages.
	ErrClosed = errors.New("wire: connection closed")

	// ErrOversize reports a length prefix beyond MaxMessageSize.
	ErrOversize = errors.New("wire: message exceeds maximum size")
)

// ReadMessage reads one length-prefixed message: a 4-byte big-endian
// payload length followed by that many bytes of UTF-8 JSON. It returns
// ErrClosed when the peer closes the stream on a message boundary, and
// a transport error for truncated reads or invalid prefixes. The
// payload is not validated here; callers run it through Check/Decode.
func ReadMessage(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("wire: reading length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, errors.New("wire: zero-length message")
	}
	if length > MaxMessageSize {
		return nil, ErrOversize
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: reading %d-byte payload: %w", length, err)
	}
	return payload, nil
}

// WriteMessage frames and writes one message.
func WriteMessage(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return ErrOversize
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("wire: writing length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: writing payload: %w", err)
	}
	return nil
}
