package wire

import "github.com/pgwire/pgwire/pgerr"

// Writer builds a frontend message body, growing a byte slice and
// backpatching length prefixes.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// PutUint8 appends one byte.
func (w *Writer) PutUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutInt16 appends a big-endian signed 16-bit integer.
func (w *Writer) PutInt16(v int16) {
	w.PutUint16(uint16(v))
}

// PutUint16 appends a big-endian unsigned 16-bit integer.
func (w *Writer) PutUint16(v uint16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

// PutUint32 appends a big-endian unsigned 32-bit integer.
func (w *Writer) PutUint32(v uint32) {
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// PutBytes appends raw bytes verbatim.
func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutCString appends s followed by a NUL terminator. It fails if s itself
// contains a zero byte, since that would desynchronize the reader.
func (w *Writer) PutCString(s []byte) error {
	for _, b := range s {
		if b == 0 {
			return pgerr.InteriorNul()
		}
	}
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	return nil
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// BeginMessage appends a one-byte tag (pass 0 for an untagged frontend
// message such as StartupMessage or SSLRequest) followed by a four-byte
// zero placeholder for the length, and returns the offset of that
// placeholder for a matching FinishMessage call. A zero tag writes no byte
// at all — callers that need an explicit tag pass it; untagged messages
// pass 0 and must not have intended a literal NUL tag (none exists in the
// protocol).
func (w *Writer) BeginMessage(tag byte) int {
	if tag != 0 {
		w.buf = append(w.buf, tag)
	}
	offset := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return offset
}

// FinishMessage backpatches the four-byte length placeholder at offset with
// len(buf)-offset, the length of everything from the placeholder onward
// (the length field counts itself, per the wire format).
func (w *Writer) FinishMessage(offset int) {
	length := uint32(len(w.buf) - offset)
	w.buf[offset] = byte(length >> 24)
	w.buf[offset+1] = byte(length >> 16)
	w.buf[offset+2] = byte(length >> 8)
	w.buf[offset+3] = byte(length)
}
