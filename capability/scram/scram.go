// Package scram implements SCRAM-SHA-256 (RFC 5802 / RFC 7677) client-side
// authentication as a capability.SASL. It is not part of the protocol
// core: a caller that never expects a SCRAM server can use
// capability.SASLUnavailable and skip this package and its
// golang.org/x/crypto/pbkdf2 dependency entirely.
package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const mechanismName = "SCRAM-SHA-256"

// gs2Header is the channel-binding/authzid prefix we always send: no
// channel binding, no SASL authorization identity.
const gs2Header = "n,,"

// Client drives one SCRAM-SHA-256 exchange to completion. A Client is
// single-use: construct a fresh one per authentication attempt.
type Client struct {
	user     string
	password string

	clientNonce     string
	clientFirstBare string
	saltedPassword  []byte
	authMessage     string
}

// NewClient returns a Client authenticating user with password.
func NewClient(user, password string) *Client {
	return &Client{user: user, password: password}
}

// Mechanisms returns the one mechanism this package drives.
func (c *Client) Mechanisms() []string { return []string{mechanismName} }

// InitialResponse builds the client-first-message for mechanism, which
// must be "SCRAM-SHA-256".
func (c *Client) InitialResponse(mechanism string) ([]byte, error) {
	if mechanism != mechanismName {
		return nil, fmt.Errorf("scram: unsupported mechanism %q", mechanism)
	}

	nonceBytes := make([]byte, 18)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("scram: generating nonce: %w", err)
	}
	c.clientNonce = base64.StdEncoding.EncodeToString(nonceBytes)
	c.clientFirstBare = fmt.Sprintf("n=%s,r=%s", escapeUsername(c.user), c.clientNonce)

	return []byte(gs2Header + c.clientFirstBare), nil
}

// Continue consumes the server-first-message and returns the
// client-final-message.
func (c *Client) Continue(serverData []byte) ([]byte, error) {
	serverNonce, salt, iterations, err := parseServerFirst(string(serverData))
	if err != nil {
		return nil, fmt.Errorf("scram: parsing server-first-message: %w", err)
	}
	if !strings.HasPrefix(serverNonce, c.clientNonce) {
		return nil, fmt.Errorf("scram: server nonce does not start with client nonce")
	}

	c.saltedPassword = pbkdf2.Key([]byte(c.password), salt, iterations, sha256.Size, sha256.New)

	clientKey := hmacSHA256(c.saltedPassword, []byte("Client Key"))
	storedKey := sha256Sum(clientKey)

	channelBinding := "c=" + base64.StdEncoding.EncodeToString([]byte(gs2Header))
	clientFinalWithoutProof := fmt.Sprintf("%s,r=%s", channelBinding, serverNonce)

	c.authMessage = c.clientFirstBare + "," + string(serverData) + "," + clientFinalWithoutProof

	clientSignature := hmacSHA256(storedKey, []byte(c.authMessage))
	clientProof := xorBytes(clientKey, clientSignature)

	clientFinal := clientFinalWithoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	return []byte(clientFinal), nil
}

// Final verifies the server-final-message's signature, proving the server
// also knows the password.
func (c *Client) Final(serverData []byte) error {
	serverKey := hmacSHA256(c.saltedPassword, []byte("Server Key"))
	expectedSig := hmacSHA256(serverKey, []byte(c.authMessage))
	want := "v=" + base64.StdEncoding.EncodeToString(expectedSig)

	if string(serverData) != want {
		return fmt.Errorf("scram: server signature mismatch")
	}
	return nil
}

func parseServerFirst(msg string) (nonce string, salt []byte, iterations int, err error) {
	for _, part := range strings.Split(msg, ",") {
		switch {
		case strings.HasPrefix(part, "r="):
			nonce = part[2:]
		case strings.HasPrefix(part, "s="):
			salt, err = base64.StdEncoding.DecodeString(part[2:])
			if err != nil {
				return "", nil, 0, fmt.Errorf("decoding salt: %w", err)
			}
		case strings.HasPrefix(part, "i="):
			iterations, err = strconv.Atoi(part[2:])
			if err != nil {
				return "", nil, 0, fmt.Errorf("parsing iteration count: %w", err)
			}
		}
	}
	if nonce == "" || salt == nil || iterations == 0 {
		return "", nil, 0, fmt.Errorf("incomplete server-first-message: %q", msg)
	}
	return nonce, salt, iterations, nil
}

// escapeUsername replaces "=" with "=3D" and "," with "=2C" per RFC 5802.
func escapeUsername(user string) string {
	user = strings.ReplaceAll(user, "=", "=3D")
	user = strings.ReplaceAll(user, ",", "=2C")
	return user
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
