// Package message decodes a single framed PostgreSQL backend message body
// into a tagged Message value, and exposes lazy, restartable iterators over
// the embedded variable-length arrays a handful of variants carry.
//
// The decoder is total: Decode never panics, and a structurally valid frame
// whose tail is malformed yields a Message whose array iterator simply
// stops early rather than failing the whole message. This lets an
// ErrorResponse whose last field is missing its value still surface
// whatever fields parsed cleanly.
package message

import (
	"github.com/pgwire/pgwire/pgerr"
	"github.com/pgwire/pgwire/wire"
)

// Message tags, one ASCII byte per backend variant (spec protocol 3.0).
const (
	TagAuthentication           byte = 'R'
	TagBackendKeyData           byte = 'K'
	TagBindComplete             byte = '2'
	TagCloseComplete            byte = '3'
	TagCommandComplete          byte = 'C'
	TagCopyData                 byte = 'd'
	TagCopyDone                 byte = 'c'
	TagCopyInResponse           byte = 'G'
	TagCopyOutResponse          byte = 'H'
	TagCopyBothResponse         byte = 'W'
	TagDataRow                  byte = 'D'
	TagEmptyQueryResponse       byte = 'I'
	TagErrorResponse            byte = 'E'
	TagFunctionCallResponse     byte = 'V'
	TagNegotiateProtocolVersion byte = 'v'
	TagNoData                   byte = 'n'
	TagNoticeResponse           byte = 'N'
	TagNotificationResponse     byte = 'A'
	TagParameterDescription     byte = 't'
	TagParameterStatus          byte = 'S'
	TagParseComplete            byte = '1'
	TagPortalSuspended          byte = 's'
	TagReadyForQuery            byte = 'Z'
	TagRowDescription           byte = 'T'
)

// Authentication sub-type discriminants, valid when Tag == TagAuthentication.
const (
	AuthOk                = 0
	AuthKerberosV5        = 2
	AuthCleartextPassword = 3
	AuthMD5Password       = 5
	AuthSCMCredential     = 6
	AuthGSS               = 7
	AuthGSSContinue       = 8
	AuthSSPI              = 9
	AuthSASL              = 10
	AuthSASLContinue      = 11
	AuthSASLFinal         = 12
)

// Message is a decoded backend message. Exactly one set of accessor
// methods is meaningful for any given Tag/AuthType combination; calling an
// accessor that does not apply to the decoded variant returns the zero
// value rather than panicking.
type Message struct {
	Tag      byte
	AuthType uint32

	md5Salt       [4]byte
	backendPID    uint32
	backendSecret uint32
	commandTag    []byte
	copyData      []byte
	copyFormat    uint8
	int16Tail     []byte // CopyIn/Out/BothResponse column format codes
	dataRowTail   []byte
	fieldTail     []byte // ErrorResponse / NoticeResponse fields
	funcResult    []byte
	funcResultSet bool
	negotiateVer  uint32
	stringTail    []byte // NegotiateProtocolVersion / AuthenticationSASL names
	notifPID      uint32
	notifChannel  []byte
	notifPayload  []byte
	int32Tail     []byte // ParameterDescription OIDs
	paramName     []byte
	paramValue    []byte
	readyStatus   byte
	rowDescTail   []byte
	bytesTail     []byte // GSSContinue / SASLContinue / SASLFinal opaque payload
}

// Decode parses one complete framed message (tag byte, 4-byte length, and
// body) into a Message. It returns a *pgerr.Error with Kind ==
// KindMalformed if the frame cannot be dispatched or its fixed-shape
// fields cannot be read; variable-length array fields are never a decode
// failure — their iterators simply stop early.
func Decode(frame []byte) (Message, error) {
	c := wire.NewCursor(frame)
	tag, err := c.ReadUint8()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	// The length field was already validated by the receiver; skip it.
	if _, err := c.ReadUint32(); err != nil {
		return Message{}, pgerr.Malformed()
	}
	body := c.Remaining()

	switch tag {
	case TagAuthentication:
		return decodeAuthentication(body)
	case TagBackendKeyData:
		return decodeBackendKeyData(body)
	case TagBindComplete:
		return Message{Tag: tag}, nil
	case TagCloseComplete:
		return Message{Tag: tag}, nil
	case TagCommandComplete:
		return decodeCommandComplete(body)
	case TagCopyData:
		return Message{Tag: tag, copyData: body}, nil
	case TagCopyDone:
		return Message{Tag: tag}, nil
	case TagCopyInResponse, TagCopyOutResponse, TagCopyBothResponse:
		return decodeCopyResponse(tag, body)
	case TagDataRow:
		return decodeDataRow(body)
	case TagEmptyQueryResponse:
		return Message{Tag: tag}, nil
	case TagErrorResponse:
		return decodeErrorOrNotice(tag, body)
	case TagFunctionCallResponse:
		return decodeFunctionCallResponse(body)
	case TagNegotiateProtocolVersion:
		return decodeNegotiateProtocolVersion(body)
	case TagNoData:
		return Message{Tag: tag}, nil
	case TagNoticeResponse:
		return decodeErrorOrNotice(tag, body)
	case TagNotificationResponse:
		return decodeNotificationResponse(body)
	case TagParameterDescription:
		return decodeParameterDescription(body)
	case TagParameterStatus:
		return decodeParameterStatus(body)
	case TagParseComplete:
		return Message{Tag: tag}, nil
	case TagPortalSuspended:
		return Message{Tag: tag}, nil
	case TagReadyForQuery:
		return decodeReadyForQuery(body)
	case TagRowDescription:
		return decodeRowDescription(body)
	default:
		return Message{}, pgerr.Malformed()
	}
}

func decodeAuthentication(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	subType, err := c.ReadUint32()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	msg := Message{Tag: TagAuthentication, AuthType: subType}

	switch subType {
	case AuthOk, AuthKerberosV5, AuthCleartextPassword, AuthSCMCredential, AuthGSS, AuthSSPI:
		return msg, nil
	case AuthMD5Password:
		salt, err := c.ReadBytes(4)
		if err != nil {
			return Message{}, pgerr.Malformed()
		}
		copy(msg.md5Salt[:], salt)
		return msg, nil
	case AuthGSSContinue, AuthSASLContinue, AuthSASLFinal:
		msg.bytesTail = c.Remaining()
		return msg, nil
	case AuthSASL:
		msg.stringTail = c.Remaining()
		return msg, nil
	default:
		return Message{}, pgerr.Malformed()
	}
}

func decodeBackendKeyData(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	pid, err := c.ReadUint32()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	secret, err := c.ReadUint32()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagBackendKeyData, backendPID: pid, backendSecret: secret}, nil
}

func decodeCommandComplete(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	tagStr, err := c.ReadCString()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagCommandComplete, commandTag: tagStr}, nil
}

func decodeCopyResponse(tag byte, body []byte) (Message, error) {
	c := wire.NewCursor(body)
	format, err := c.ReadUint8()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	if _, err := c.ReadUint16(); err != nil { // declared column count, ignored
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: tag, copyFormat: format, int16Tail: c.Remaining()}, nil
}

func decodeDataRow(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	if _, err := c.ReadUint16(); err != nil { // declared column count, ignored
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagDataRow, dataRowTail: c.Remaining()}, nil
}

func decodeErrorOrNotice(tag byte, body []byte) (Message, error) {
	if len(body) == 0 {
		return Message{}, pgerr.Malformed()
	}
	// A well-formed body ends in a 0x00 terminator, which FieldArray.Next
	// reads as a zero type code and treats as end-of-iteration. A body
	// truncated before that terminator stops the same way, once Next runs
	// out of bytes mid-field: either way the caller gets every field that
	// parsed cleanly instead of losing the whole message.
	return Message{Tag: tag, fieldTail: body}, nil
}

func decodeFunctionCallResponse(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	length, err := c.ReadUint32()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	if length == 0xFFFFFFFF {
		return Message{Tag: TagFunctionCallResponse, funcResultSet: false}, nil
	}
	value, err := c.ReadBytes(int(length))
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagFunctionCallResponse, funcResult: value, funcResultSet: true}, nil
}

func decodeNegotiateProtocolVersion(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	newestMinor, err := c.ReadUint32()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	if _, err := c.ReadUint32(); err != nil { // declared option count, ignored
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagNegotiateProtocolVersion, negotiateVer: newestMinor, stringTail: c.Remaining()}, nil
}

func decodeNotificationResponse(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	pid, err := c.ReadUint32()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	channel, err := c.ReadCString()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	payload, err := c.ReadCString()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagNotificationResponse, notifPID: pid, notifChannel: channel, notifPayload: payload}, nil
}

func decodeParameterDescription(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	if _, err := c.ReadUint16(); err != nil { // declared parameter count, ignored
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagParameterDescription, int32Tail: c.Remaining()}, nil
}

func decodeParameterStatus(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	name, err := c.ReadCString()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	value, err := c.ReadCString()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagParameterStatus, paramName: name, paramValue: value}, nil
}

func decodeReadyForQuery(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	status, err := c.ReadUint8()
	if err != nil {
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagReadyForQuery, readyStatus: status}, nil
}

func decodeRowDescription(body []byte) (Message, error) {
	c := wire.NewCursor(body)
	if _, err := c.ReadUint16(); err != nil { // declared field count, ignored
		return Message{}, pgerr.Malformed()
	}
	return Message{Tag: TagRowDescription, rowDescTail: c.Remaining()}, nil
}

/* ------------------------------- Accessors ------------------------------- */

// MD5Salt returns the 4-byte salt of an AuthenticationMD5Password message.
func (m Message) MD5Salt() [4]byte { return m.md5Salt }

// BackendPID returns the process id of a BackendKeyData message.
func (m Message) BackendPID() uint32 { return m.backendPID }

// BackendSecret returns the secret key of a BackendKeyData message.
func (m Message) BackendSecret() uint32 { return m.backendSecret }

// CommandTag returns the command tag string of a CommandComplete message.
func (m Message) CommandTag() []byte { return m.commandTag }

// CopyPayload returns the raw bytes of a CopyData message.
func (m Message) CopyPayload() []byte { return m.copyData }

// CopyOverallFormat returns the format byte of a Copy{In,Out,Both}Response message.
func (m Message) CopyOverallFormat() uint8 { return m.copyFormat }

// CopyFormatCodes returns the per-column format code iterator of a
// Copy{In,Out,Both}Response message.
func (m Message) CopyFormatCodes() Int16Array { return Int16Array{tail: m.int16Tail} }

// DataRowValues returns the column value iterator of a DataRow message.
func (m Message) DataRowValues() DataRowValueArray { return DataRowValueArray{tail: m.dataRowTail} }

// ErrorFields returns the field iterator of an ErrorResponse message.
func (m Message) ErrorFields() FieldArray { return FieldArray{tail: m.fieldTail} }

// NoticeFields returns the field iterator of a NoticeResponse message.
func (m Message) NoticeFields() FieldArray { return FieldArray{tail: m.fieldTail} }

// FunctionResult returns the result bytes and whether the value was
// non-NULL, for a FunctionCallResponse message.
func (m Message) FunctionResult() ([]byte, bool) { return m.funcResult, m.funcResultSet }

// NegotiateNewestMinor returns the newest supported minor protocol version
// of a NegotiateProtocolVersion message.
func (m Message) NegotiateNewestMinor() uint32 { return m.negotiateVer }

// UnrecognizedOptions returns the unrecognized option name iterator of a
// NegotiateProtocolVersion message.
func (m Message) UnrecognizedOptions() StringArray { return StringArray{tail: m.stringTail} }

// SASLMechanisms returns the offered mechanism name iterator of an
// AuthenticationSASL message.
func (m Message) SASLMechanisms() StringArray { return StringArray{tail: m.stringTail} }

// SASLOrGSSData returns the opaque payload of AuthenticationGSSContinue,
// AuthenticationSASLContinue, or AuthenticationSASLFinal.
func (m Message) SASLOrGSSData() []byte { return m.bytesTail }

// NotificationPID returns the sending backend's process id of a
// NotificationResponse message.
func (m Message) NotificationPID() uint32 { return m.notifPID }

// NotificationChannel returns the channel name of a NotificationResponse message.
func (m Message) NotificationChannel() []byte { return m.notifChannel }

// NotificationPayload returns the payload of a NotificationResponse message.
func (m Message) NotificationPayload() []byte { return m.notifPayload }

// ParameterOIDs returns the type OID iterator of a ParameterDescription message.
func (m Message) ParameterOIDs() Int32Array { return Int32Array{tail: m.int32Tail} }

// ParameterStatusName returns the parameter name of a ParameterStatus message.
func (m Message) ParameterStatusName() []byte { return m.paramName }

// ParameterStatusValue returns the parameter value of a ParameterStatus message.
func (m Message) ParameterStatusValue() []byte { return m.paramValue }

// TransactionStatus returns the status byte ('I', 'T', or 'E') of a
// ReadyForQuery message.
func (m Message) TransactionStatus() byte { return m.readyStatus }

// RowDescriptionFields returns the field iterator of a RowDescription message.
func (m Message) RowDescriptionFields() RowDescriptionFieldArray {
	return RowDescriptionFieldArray{tail: m.rowDescTail}
}
