package startup

import (
	"errors"
	"io"
	"net"
	"testing"

	"github.com/pgwire/pgwire/capability"
	"github.com/pgwire/pgwire/capability/md5impl"
	"github.com/pgwire/pgwire/pgerr"
	"github.com/pgwire/pgwire/receiver"
)

func serverPipe(t *testing.T, respond func(server net.Conn)) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go respond(server)
	return client
}

func frame(tag byte, body []byte) []byte {
	out := []byte{tag, 0, 0, 0, 0}
	length := uint32(4 + len(body))
	out[1] = byte(length >> 24)
	out[2] = byte(length >> 16)
	out[3] = byte(length >> 8)
	out[4] = byte(length)
	return append(out, body...)
}

func authOk() []byte        { return frame('R', []byte{0, 0, 0, 0}) }
func readyForQuery() []byte { return frame('Z', []byte{'I'}) }
func paramStatus(k, v string) []byte {
	return frame('S', append([]byte(k+"\x00"), v+"\x00"...))
}
func backendKeyData(pid, secret uint32) []byte {
	body := []byte{
		byte(pid >> 24), byte(pid >> 16), byte(pid >> 8), byte(pid),
		byte(secret >> 24), byte(secret >> 16), byte(secret >> 8), byte(secret),
	}
	return frame('K', body)
}
func errorResponse(fields map[byte]string) []byte {
	var body []byte
	for typ, val := range fields {
		body = append(body, typ)
		body = append(body, val+"\x00"...)
	}
	body = append(body, 0)
	return frame('E', body)
}

// readUntaggedFrame consumes one untagged frontend message (StartupMessage
// or SSLRequest): a 4-byte length prefix followed by length-4 more bytes.
func readUntaggedFrame(conn net.Conn) []byte {
	head := make([]byte, 4)
	if _, err := io.ReadFull(conn, head); err != nil {
		return nil
	}
	length := int(head[0])<<24 | int(head[1])<<16 | int(head[2])<<8 | int(head[3])
	body := make([]byte, length-4)
	io.ReadFull(conn, body)
	return append(head, body...)
}

// readTaggedFrame consumes one tagged frontend message such as
// PasswordMessage ('p'): a 1-byte tag, 4-byte length, then length-4 bytes.
func readTaggedFrame(conn net.Conn) []byte {
	head := make([]byte, 5)
	if _, err := io.ReadFull(conn, head); err != nil {
		return nil
	}
	length := int(head[1])<<24 | int(head[2])<<16 | int(head[3])<<8 | int(head[4])
	body := make([]byte, length-4)
	io.ReadFull(conn, body)
	return append(head, body...)
}

func TestRunTrivialAuthOk(t *testing.T) {
	client := serverPipe(t, func(server net.Conn) {
		readUntaggedFrame(server) // StartupMessage
		server.Write(authOk())
		server.Write(paramStatus("server_version", "16.1"))
		server.Write(backendKeyData(1234, 0xDEADBEEF))
		server.Write(readyForQuery())
	})

	recv := receiver.New(nil)
	info, err := Run(client, recv, capability.MD5Unavailable{}, capability.SASLUnavailable{}, Params{
		User:     []byte("postgres"),
		Database: []byte("postgres"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if info.BackendPID != 1234 || info.BackendSecret != 0xDEADBEEF {
		t.Errorf("info = %+v", info)
	}
	if string(info.Parameters["server_version"]) != "16.1" {
		t.Errorf("parameters = %v", info.Parameters)
	}
}

func TestRunMD5Password(t *testing.T) {
	var gotPasswordMsg []byte
	client := serverPipe(t, func(server net.Conn) {
		readUntaggedFrame(server) // StartupMessage

		server.Write(frame('R', []byte{0, 0, 0, 5, 1, 2, 3, 4})) // AuthenticationMD5Password, salt

		gotPasswordMsg = readTaggedFrame(server)

		server.Write(authOk())
		server.Write(readyForQuery())
	})

	recv := receiver.New(nil)
	_, err := Run(client, recv, md5impl.Hasher{}, capability.SASLUnavailable{}, Params{
		User:     []byte("postgres"),
		Password: []byte("secret"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotPasswordMsg == nil || gotPasswordMsg[0] != 'p' {
		t.Fatalf("expected a PasswordMessage, got %v", gotPasswordMsg)
	}
}

func TestRunErrorDuringAuthIsAuthenticationFailed(t *testing.T) {
	client := serverPipe(t, func(server net.Conn) {
		readUntaggedFrame(server)
		server.Write(errorResponse(map[byte]string{'S': "FATAL", 'C': "28P01", 'M': "password authentication failed"}))
	})

	recv := receiver.New(nil)
	_, err := Run(client, recv, capability.MD5Unavailable{}, capability.SASLUnavailable{}, Params{User: []byte("postgres")})

	var pe *pgerr.Error
	if !errors.As(err, &pe) || pe.Kind != pgerr.KindAuthenticationFailed {
		t.Fatalf("got %v, want KindAuthenticationFailed", err)
	}
	if len(pe.Fields) != 3 {
		t.Errorf("fields = %+v", pe.Fields)
	}
}

func TestRunErrorDuringParameterCollectionIsStartupFailed(t *testing.T) {
	client := serverPipe(t, func(server net.Conn) {
		readUntaggedFrame(server)
		server.Write(authOk())
		server.Write(errorResponse(map[byte]string{'M': "out of memory"}))
	})

	recv := receiver.New(nil)
	_, err := Run(client, recv, capability.MD5Unavailable{}, capability.SASLUnavailable{}, Params{User: []byte("postgres")})

	var pe *pgerr.Error
	if !errors.As(err, &pe) || pe.Kind != pgerr.KindStartupFailed {
		t.Fatalf("got %v, want KindStartupFailed", err)
	}
}

func TestRunUnsupportedAuthMethod(t *testing.T) {
	client := serverPipe(t, func(server net.Conn) {
		readUntaggedFrame(server)
		server.Write(frame('R', []byte{0, 0, 0, 7})) // AuthenticationGSS
	})

	recv := receiver.New(nil)
	_, err := Run(client, recv, capability.MD5Unavailable{}, capability.SASLUnavailable{}, Params{User: []byte("postgres")})

	var pe *pgerr.Error
	if !errors.As(err, &pe) || pe.Kind != pgerr.KindAuthenticationUnsupported {
		t.Fatalf("got %v, want KindAuthenticationUnsupported", err)
	}
}
