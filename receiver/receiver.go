// Package receiver reads one framed backend message at a time off a byte
// stream, transparently absorbing asynchronous NoticeResponse messages that
// PostgreSQL may interleave at any point in the protocol.
package receiver

import (
	"encoding/binary"
	"io"

	"github.com/pgwire/pgwire/message"
	"github.com/pgwire/pgwire/pgerr"
)

// NoticeFunc is invoked for every NoticeResponse absorbed while waiting for
// the next non-notice message. It must not block for long: the receiver
// does not read ahead while the callback runs.
type NoticeFunc func(message.Message)

// Receiver reads framed messages from an io.Reader, reusing a single
// internal buffer across calls.
type Receiver struct {
	onNotice NoticeFunc
	buf      []byte
}

// New returns a Receiver. onNotice may be nil, in which case notices are
// silently discarded.
func New(onNotice NoticeFunc) *Receiver {
	return &Receiver{onNotice: onNotice}
}

// Receive reads and decodes the next message from rd, transparently
// skipping over any NoticeResponse messages (after passing each to the
// configured NoticeFunc). It returns pgerr.FramingLengthTooSmall if a
// length prefix is less than 4 (the minimum, which counts itself), and
// wraps any short read from rd in pgerr.IO.
func (r *Receiver) Receive(rd io.Reader) (message.Message, error) {
	for {
		msg, err := r.receiveOne(rd)
		if err != nil {
			return message.Message{}, err
		}
		if msg.Tag != message.TagNoticeResponse {
			return msg, nil
		}
		if r.onNotice != nil {
			r.onNotice(msg)
		}
	}
}

func (r *Receiver) receiveOne(rd io.Reader) (message.Message, error) {
	r.buf = r.buf[:0]
	r.buf = append(r.buf, 0, 0, 0, 0, 0) // tag + 4-byte length prefix

	if _, err := io.ReadFull(rd, r.buf); err != nil {
		return message.Message{}, pgerr.IO(err)
	}

	length := binary.BigEndian.Uint32(r.buf[1:5])
	if length < 4 {
		return message.Message{}, pgerr.FramingLengthTooSmall()
	}

	// length counts itself; bodyLen is what remains to be read after the
	// tag and the length prefix we already have.
	bodyLen := int(length) - 4
	r.buf = append(r.buf, make([]byte, bodyLen)...)
	if _, err := io.ReadFull(rd, r.buf[5:]); err != nil {
		return message.Message{}, pgerr.IO(err)
	}

	return message.Decode(r.buf)
}
