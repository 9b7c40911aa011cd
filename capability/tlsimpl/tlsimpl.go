// Package tlsimpl implements capability.TLS using crypto/tls.
package tlsimpl

import (
	"crypto/tls"
	"io"
	"net"

	"github.com/pgwire/pgwire/pgerr"
)

// Upgrader implements capability.TLS by running a client-side TLS
// handshake over the existing connection.
type Upgrader struct {
	Config *tls.Config
}

// Upgrade wraps stream in a *tls.Conn and completes the handshake. stream
// must be a net.Conn, since tls.Client requires one; any other
// io.ReadWriteCloser returns pgerr.SSLHandshake.
func (u Upgrader) Upgrade(stream io.ReadWriteCloser) (io.ReadWriteCloser, error) {
	conn, ok := stream.(net.Conn)
	if !ok {
		return nil, pgerr.SSLHandshake(errNotNetConn)
	}

	cfg := u.Config
	if cfg == nil {
		cfg = &tls.Config{}
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, pgerr.SSLHandshake(err)
	}
	return tlsConn, nil
}

var errNotNetConn = plainError("stream is not a net.Conn")

type plainError string

func (e plainError) Error() string { return string(e) }
