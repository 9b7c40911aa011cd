// Package startup drives the StartupMessage / authentication dialogue: the
// frontend's very first words on a connection, ending either in
// ReadyForQuery or a fatal ErrorResponse.
package startup

import (
	"io"

	"github.com/pgwire/pgwire/capability"
	"github.com/pgwire/pgwire/message"
	"github.com/pgwire/pgwire/pgerr"
	"github.com/pgwire/pgwire/receiver"
	"github.com/pgwire/pgwire/wire"
)

// protocolVersion3 is 3.0 encoded as (major<<16 | minor), per the wire format.
const protocolVersion3 = 3 << 16

// Params are the values sent in a StartupMessage and used to answer
// whatever authentication challenge the backend issues.
type Params struct {
	User     []byte
	Password []byte
	Database []byte

	// RuntimeParams carries any additional key/value pairs to include in
	// the StartupMessage (e.g. application_name, client_encoding).
	RuntimeParams map[string][]byte
}

// Info is everything collected over the course of a successful startup:
// the backend's cancellation credentials and the server parameters it
// announced via ParameterStatus.
type Info struct {
	BackendPID    uint32
	BackendSecret uint32
	Parameters    map[string][]byte

	// Status is the transaction status indicator ('I', 'T', or 'E') from
	// the ReadyForQuery message that concludes startup. Stored for callers
	// that want it; the startup dialogue itself doesn't act on it.
	Status byte
}

// Run sends a StartupMessage on stream, answers whatever authentication
// request the backend issues using md5/sasl, and collects parameters until
// ReadyForQuery. md5 and sasl may be capability.MD5Unavailable /
// capability.SASLUnavailable if the caller never expects those auth
// methods; attempting to use an unavailable capability surfaces as
// pgerr.KindAuthenticationUnsupported. An ErrorResponse before
// AuthenticationOk surfaces as pgerr.KindAuthenticationFailed, and one after
// it as pgerr.KindStartupFailed, either way with its fields preserved.
func Run(stream io.ReadWriter, recv *receiver.Receiver, md5 capability.MD5, sasl capability.SASL, params Params) (Info, error) {
	if err := sendStartupMessage(stream, params); err != nil {
		return Info{}, err
	}

	info := Info{Parameters: make(map[string][]byte)}
	var saslMechanism string
	authenticated := false

	for {
		msg, err := recv.Receive(stream)
		if err != nil {
			return Info{}, err
		}

		switch msg.Tag {
		case message.TagAuthentication:
			ok, err := handleAuth(stream, msg, params, md5, sasl, &saslMechanism)
			if err != nil {
				return Info{}, err
			}
			authenticated = authenticated || ok

		case message.TagParameterStatus:
			info.Parameters[string(msg.ParameterStatusName())] = cloneBytes(msg.ParameterStatusValue())

		case message.TagBackendKeyData:
			info.BackendPID = msg.BackendPID()
			info.BackendSecret = msg.BackendSecret()

		case message.TagReadyForQuery:
			info.Status = msg.TransactionStatus()
			return info, nil

		case message.TagErrorResponse:
			fields := collectFields(msg.ErrorFields())
			if authenticated {
				return Info{}, pgerr.StartupFailed(fields)
			}
			return Info{}, pgerr.AuthenticationFailed(fields)

		case message.TagNegotiateProtocolVersion:
			// The backend only speaks an older minor version and is telling
			// us which of our requested options it didn't recognize; startup
			// proceeds unaffected.

		default:
			// Anything else this early is unexpected but not fatal; the
			// backend-proper message loop (outside startup) is where it
			// would actually matter.
		}
	}
}

func handleAuth(stream io.ReadWriter, msg message.Message, params Params, md5 capability.MD5, sasl capability.SASL, saslMechanism *string) (bool, error) {
	switch msg.AuthType {
	case message.AuthOk:
		return true, nil

	case message.AuthCleartextPassword:
		return false, sendPasswordMessage(stream, params.Password)

	case message.AuthMD5Password:
		hashed, err := md5.HashPassword(params.User, params.Password, msg.MD5Salt())
		if err != nil {
			return false, err
		}
		return false, sendPasswordMessage(stream, hashed)

	case message.AuthSASL:
		mech, err := chooseMechanism(msg.SASLMechanisms(), sasl)
		if err != nil {
			return false, err
		}
		*saslMechanism = mech
		initial, err := sasl.InitialResponse(mech)
		if err != nil {
			return false, err
		}
		return false, sendSASLInitialResponse(stream, mech, initial)

	case message.AuthSASLContinue:
		resp, err := sasl.Continue(msg.SASLOrGSSData())
		if err != nil {
			return false, err
		}
		return false, sendSASLResponse(stream, resp)

	case message.AuthSASLFinal:
		return false, sasl.Final(msg.SASLOrGSSData())

	default:
		return false, pgerr.AuthenticationUnsupported()
	}
}

func chooseMechanism(offered message.StringArray, sasl capability.SASL) (string, error) {
	supported := sasl.Mechanisms()
	for {
		name, ok := offered.Next()
		if !ok {
			break
		}
		for _, s := range supported {
			if s == string(name) {
				return s, nil
			}
		}
	}
	return "", pgerr.AuthenticationUnsupported()
}

func sendStartupMessage(stream io.ReadWriter, params Params) error {
	w := wire.NewWriter()
	off := w.BeginMessage(0)
	w.PutUint32(protocolVersion3)

	if err := w.PutCString([]byte("user")); err != nil {
		return err
	}
	if err := w.PutCString(params.User); err != nil {
		return err
	}
	if len(params.Database) > 0 {
		if err := w.PutCString([]byte("database")); err != nil {
			return err
		}
		if err := w.PutCString(params.Database); err != nil {
			return err
		}
	}
	for k, v := range params.RuntimeParams {
		if err := w.PutCString([]byte(k)); err != nil {
			return err
		}
		if err := w.PutCString(v); err != nil {
			return err
		}
	}
	w.PutUint8(0)
	w.FinishMessage(off)

	_, err := stream.Write(w.Bytes())
	if err != nil {
		return pgerr.IO(err)
	}
	return nil
}

func sendPasswordMessage(stream io.ReadWriter, data []byte) error {
	w := wire.NewWriter()
	off := w.BeginMessage('p')
	w.PutBytes(data)
	w.PutUint8(0)
	w.FinishMessage(off)

	if _, err := stream.Write(w.Bytes()); err != nil {
		return pgerr.IO(err)
	}
	return nil
}

// sendSASLInitialResponse sends a SASLInitialResponse, which reuses the
// PasswordMessage tag 'p' but carries a mechanism name and an explicit
// length-prefixed (not NUL-terminated) response body.
func sendSASLInitialResponse(stream io.ReadWriter, mechanism string, initial []byte) error {
	w := wire.NewWriter()
	off := w.BeginMessage('p')
	if err := w.PutCString([]byte(mechanism)); err != nil {
		return err
	}
	w.PutUint32(uint32(len(initial)))
	w.PutBytes(initial)
	w.FinishMessage(off)

	if _, err := stream.Write(w.Bytes()); err != nil {
		return pgerr.IO(err)
	}
	return nil
}

// sendSASLResponse sends a SASLResponse: tag 'p' with a raw, non-NUL-terminated
// body, unlike the cleartext/MD5 PasswordMessage that also uses tag 'p'.
func sendSASLResponse(stream io.ReadWriter, data []byte) error {
	w := wire.NewWriter()
	off := w.BeginMessage('p')
	w.PutBytes(data)
	w.FinishMessage(off)

	if _, err := stream.Write(w.Bytes()); err != nil {
		return pgerr.IO(err)
	}
	return nil
}

func collectFields(it message.FieldArray) []pgerr.Field {
	var fields []pgerr.Field
	for {
		f, ok := it.Next()
		if !ok {
			break
		}
		fields = append(fields, pgerr.Field{Type: f.Type, Value: f.Value})
	}
	return fields
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
