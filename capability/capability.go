// Package capability declares the pluggable behaviors the startup state
// machine needs from its caller: computing an MD5 password hash,
// upgrading a stream to TLS, and running a SASL mechanism. Each has a
// trivial "always fails" implementation so a caller that never needs one
// of these capabilities doesn't have to import crypto/md5, crypto/tls, or
// a SASL mechanism at all.
package capability

import (
	"io"

	"github.com/pgwire/pgwire/pgerr"
)

// MD5 computes the PostgreSQL MD5 password hash: md5(md5(password+user)+salt),
// hex-encoded and prefixed with "md5".
type MD5 interface {
	HashPassword(user, password []byte, salt [4]byte) ([]byte, error)
}

// TLS upgrades stream to an encrypted connection after the backend has
// agreed to SSLRequest.
type TLS interface {
	Upgrade(stream io.ReadWriteCloser) (io.ReadWriteCloser, error)
}

// SASL drives one SASL mechanism's client side to completion, returning the
// raw bytes to send as the initial SASLInitialResponse.
type SASL interface {
	// Mechanisms returns the mechanism names this implementation can drive,
	// in preference order.
	Mechanisms() []string

	// InitialResponse returns the client-first-message for mechanism.
	InitialResponse(mechanism string) ([]byte, error)

	// Continue consumes one AuthenticationSASLContinue payload and returns
	// the next message to send.
	Continue(serverData []byte) ([]byte, error)

	// Final validates an AuthenticationSASLFinal payload, confirming the
	// server proved knowledge of the password.
	Final(serverData []byte) error
}

// MD5Unavailable is the default MD5 implementation: it always fails. Use it
// when the caller never intends to authenticate against an md5-password
// server.
type MD5Unavailable struct{}

// HashPassword always returns pgerr.AuthenticationUnsupported.
func (MD5Unavailable) HashPassword(user, password []byte, salt [4]byte) ([]byte, error) {
	return nil, pgerr.AuthenticationUnsupported()
}

// TLSUnavailable is the default TLS implementation: it always fails.
type TLSUnavailable struct{}

// Upgrade always returns pgerr.SSLHandshake.
func (TLSUnavailable) Upgrade(stream io.ReadWriteCloser) (io.ReadWriteCloser, error) {
	return nil, pgerr.SSLHandshake(errTLSUnavailable)
}

var errTLSUnavailable = plainError("no TLS implementation configured")

type plainError string

func (e plainError) Error() string { return string(e) }

// SASLUnavailable is the default SASL implementation: it offers no
// mechanisms and always fails.
type SASLUnavailable struct{}

// Mechanisms always returns nil.
func (SASLUnavailable) Mechanisms() []string { return nil }

// InitialResponse always returns pgerr.AuthenticationUnsupported.
func (SASLUnavailable) InitialResponse(mechanism string) ([]byte, error) {
	return nil, pgerr.AuthenticationUnsupported()
}

// Continue always returns pgerr.AuthenticationUnsupported.
func (SASLUnavailable) Continue(serverData []byte) ([]byte, error) {
	return nil, pgerr.AuthenticationUnsupported()
}

// Final always returns pgerr.AuthenticationUnsupported.
func (SASLUnavailable) Final(serverData []byte) error {
	return pgerr.AuthenticationUnsupported()
}
