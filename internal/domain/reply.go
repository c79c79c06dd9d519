package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownReplyKind is returned when unmarshalling an unknown reply kind.
var ErrUnknownReplyKind = errors.New("unknown reply kind")

// Fixed reply texts.
const (
	MsgOK               = "OK"
	MsgInvalidArguments = "Invalid arguments"
	MsgWrongType        = "WRONGTYPE Operation against a key holding the wrong kind of value"
	MsgEmptyKey         = "empty key"
	MsgResizeFailed     = "Error resizing string key"
	MsgBadInputImage    = "bad input image"
	MsgUnknownFormat    = "unknown image format"
	MsgStoreUnavailable = "ERR store unavailable"
	MsgShuttingDown     = "ERR service shutting down"
	MsgInternal         = "ERR internal error"
)

// ReplyKind distinguishes the three shapes a command reply can take.
type ReplyKind int

const (
	// ReplyStatus is the bare "OK" acknowledgement of a mutating command.
	ReplyStatus ReplyKind = iota
	// ReplySimple carries a single string value.
	ReplySimple
	// ReplyError carries an error message and its ErrorCode.
	ReplyError
)

var replyKindNames = map[ReplyKind]string{ //nolint:gochecknoglobals
	ReplyStatus: "status",
	ReplySimple: "simple",
	ReplyError:  "error",
}

func (kind ReplyKind) String() string {
	if name, ok := replyKindNames[kind]; ok {
		return name
	}

	return fmt.Sprintf("ReplyKind(%d)", int(kind))
}

// MarshalText implements encoding.TextMarshaler.
func (kind ReplyKind) MarshalText() ([]byte, error) {
	return []byte(kind.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (kind *ReplyKind) UnmarshalText(text []byte) error {
	for k, name := range replyKindNames {
		if name == string(text) {
			*kind = k

			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownReplyKind, text)
}

// ErrorCode classifies an error reply by the stage that produced it.
type ErrorCode string

const (
	CodeNone            ErrorCode = ""
	CodeArgument        ErrorCode = "ArgumentError"
	CodeEmptyKey        ErrorCode = "EmptyKey"
	CodeStoreType       ErrorCode = "StoreTypeError"
	CodeStoreAccess     ErrorCode = "StoreAccessError"
	CodeCodecDecode     ErrorCode = "CodecDecodeError"
	CodeCodecTransform  ErrorCode = "CodecTransformError"
	CodeCodecEncode     ErrorCode = "CodecEncodeError"
	CodeUnknownCommand  ErrorCode = "UnknownCommand"
	CodeServiceShutdown ErrorCode = "ServiceShutdown"
	CodeInternal        ErrorCode = "InternalError"
)

// Reply is the single outcome of one command invocation.
type Reply struct {
	Kind ReplyKind `json:"kind"`
	Code ErrorCode `json:"code,omitempty"`
	Text string    `json:"text"`
}

// OKReply returns the status reply of a successful mutating command.
func OKReply() Reply {
	return Reply{Kind: ReplyStatus, Code: CodeNone, Text: MsgOK}
}

// SimpleReply returns a reply carrying a single string value.
func SimpleReply(text string) Reply {
	return Reply{Kind: ReplySimple, Code: CodeNone, Text: text}
}

// ErrorReply returns an error reply.
func ErrorReply(code ErrorCode, text string) Reply {
	return Reply{Kind: ReplyError, Code: code, Text: text}
}

// IsError reports whether the reply is an error reply.
func (r Reply) IsError() bool {
	return r.Kind == ReplyError
}

// Outcome returns a short label suitable for metrics: "ok" or the error code.
func (r Reply) Outcome() string {
	if r.IsError() {
		return string(r.Code)
	}

	return "ok"
}

// String renders the reply the way an interactive client shows it.
func (r Reply) String() string {
	if r.IsError() {
		return "(error) " + r.Text
	}

	return r.Text
}
