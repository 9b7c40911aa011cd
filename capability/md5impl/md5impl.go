// Package md5impl implements capability.MD5 using crypto/md5. No
// third-party package in the dependency set offers this hash; it's part
// of the Go standard library specifically because the wire protocol
// mandates it, not as a cryptographic recommendation.
package md5impl

import (
	"crypto/md5"
	"encoding/hex"
)

// Hasher implements capability.MD5.
type Hasher struct{}

// HashPassword computes md5(md5(password+user)+salt), hex-encoded and
// prefixed with "md5", per the wire protocol's AuthenticationMD5Password
// exchange.
func (Hasher) HashPassword(user, password []byte, salt [4]byte) ([]byte, error) {
	inner := md5.Sum(append(append([]byte{}, password...), user...))
	innerHex := hex.EncodeToString(inner[:])

	outer := md5.Sum(append([]byte(innerHex), salt[:]...))
	outerHex := hex.EncodeToString(outer[:])

	return append([]byte("md5"), outerHex...), nil
}
