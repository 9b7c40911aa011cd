// Package sslrequest performs the pre-startup SSLRequest exchange: a
// frontend may ask whether the backend is willing to negotiate TLS before
// ever sending a StartupMessage.
package sslrequest

import (
	"io"

	"github.com/pgwire/pgwire/pgerr"
)

// sslRequestFrame is the complete SSLRequest message: the length 8, then the
// magic protocol-version value (1234 in the high 16 bits, 5679 in the low
// 16 bits) that identifies an SSLRequest rather than a StartupMessage.
var sslRequestFrame = []byte{0x00, 0x00, 0x00, 0x08, 0x04, 0xD2, 0x16, 0x2F}

// Request sends an SSLRequest on stream and reads the backend's one-byte
// reply. A nil return means the backend replied 'S' and the caller should
// proceed to negotiate TLS on stream before sending StartupMessage. A
// pgerr.KindSSLServerUnwilling error means the backend replied 'N' and the
// caller should continue in cleartext. Any other reply byte is
// pgerr.KindSSLRequestGibberish: the backend does not speak this protocol
// at all (some other server, or an old pre-SSL PostgreSQL that interprets
// the request as the start of a query).
func Request(stream io.ReadWriter) error {
	if _, err := stream.Write(sslRequestFrame); err != nil {
		return pgerr.IO(err)
	}

	var reply [1]byte
	if _, err := io.ReadFull(stream, reply[:]); err != nil {
		return pgerr.IO(err)
	}

	switch reply[0] {
	case 'S':
		return nil
	case 'N':
		return pgerr.SSLServerUnwilling()
	default:
		return pgerr.SSLRequestGibberish(reply[0])
	}
}
