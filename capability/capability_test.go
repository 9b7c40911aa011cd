package capability

import (
	"errors"
	"testing"

	"github.com/pgwire/pgwire/pgerr"
)

func TestMD5UnavailableFails(t *testing.T) {
	_, err := MD5Unavailable{}.HashPassword(nil, nil, [4]byte{})
	assertUnsupported(t, err)
}

func TestTLSUnavailableFails(t *testing.T) {
	_, err := TLSUnavailable{}.Upgrade(nil)
	var pe *pgerr.Error
	if !errors.As(err, &pe) || pe.Kind != pgerr.KindSSLHandshake {
		t.Fatalf("got %v, want KindSSLHandshake", err)
	}
}

func TestSASLUnavailableFails(t *testing.T) {
	if got := (SASLUnavailable{}).Mechanisms(); got != nil {
		t.Errorf("expected nil mechanisms, got %v", got)
	}

	_, err := SASLUnavailable{}.InitialResponse("SCRAM-SHA-256")
	assertUnsupported(t, err)

	_, err = SASLUnavailable{}.Continue(nil)
	assertUnsupported(t, err)

	err = SASLUnavailable{}.Final(nil)
	assertUnsupported(t, err)
}

func assertUnsupported(t *testing.T, err error) {
	t.Helper()
	var pe *pgerr.Error
	if !errors.As(err, &pe) || pe.Kind != pgerr.KindAuthenticationUnsupported {
		t.Fatalf("got %v, want KindAuthenticationUnsupported", err)
	}
}
