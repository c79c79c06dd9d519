package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrorPrefix starts every codec failure text shown to clients.
const ErrorPrefix = "image codec error"

// DiagnosticCapacity is the fixed size of a Channel's buffer, including the terminating
// byte the capacity historically reserved. Captured text never exceeds DiagnosticCapacity-1 bytes.
const DiagnosticCapacity = 100

// Severity classifies a codec failure. Values follow the GraphicsMagick exception numbering
// so that replies stay recognisable to existing clients.
type Severity int

const (
	SeverityResourceLimit   Severity = 400
	SeverityOption          Severity = 410
	SeverityMissingDelegate Severity = 420
	SeverityCorruptImage    Severity = 425
	SeverityCoder           Severity = 450
	SeverityImage           Severity = 465
)

func (s Severity) String() string {
	switch s {
	case SeverityResourceLimit:
		return "ResourceLimitError"
	case SeverityOption:
		return "OptionError"
	case SeverityMissingDelegate:
		return "MissingDelegateError"
	case SeverityCorruptImage:
		return "CorruptImageError"
	case SeverityCoder:
		return "CoderError"
	case SeverityImage:
		return "ImageError"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Diagnostic describes one codec failure.
type Diagnostic struct {
	Severity    Severity
	Reason      string
	Description string
}

// IsZero reports whether d carries no information.
func (d Diagnostic) IsZero() bool {
	return d.Reason == "" && d.Description == ""
}

// Format renders d the way it is shown to clients.
func (d Diagnostic) Format() string {
	return fmt.Sprintf("%s %d, %s: %s", ErrorPrefix, int(d.Severity), d.Reason, d.Description)
}

// DefaultErrorText returns the reply used when a failure left no diagnostic.
func DefaultErrorText(msg string) string {
	if msg == "" {
		return ErrorPrefix
	}

	return ErrorPrefix + " " + msg
}

// Channel holds the most recent codec failure description for one transform context.
// It is not safe for concurrent use; each invocation owns its own Channel.
type Channel struct {
	buf [DiagnosticCapacity - 1]byte
	n   int
}

// Capture formats a failure into the buffer, replacing what was there. Text longer than the
// buffer is cut at the last complete UTF-8 sequence that fits.
func (ch *Channel) Capture(severity Severity, reason, description string) {
	ch.store(Diagnostic{Severity: severity, Reason: reason, Description: description}.Format())
}

// CaptureError captures the diagnostic carried by err if err wraps a codec *Error.
// Returns whether anything was captured.
func (ch *Channel) CaptureError(err error) bool {
	var codecErr *Error
	if !errors.As(err, &codecErr) || codecErr.Diagnostic.IsZero() {
		return false
	}

	ch.store(codecErr.Diagnostic.Format())

	return true
}

// Clear empties the buffer.
func (ch *Channel) Clear() {
	ch.n = 0
}

// Drain returns the buffered text and clears the buffer.
func (ch *Channel) Drain() string {
	text := string(ch.buf[:ch.n])
	ch.n = 0

	return text
}

// Len returns the number of buffered bytes.
func (ch *Channel) Len() int {
	return ch.n
}

func (ch *Channel) store(text string) {
	if len(text) > len(ch.buf) {
		cut := len(ch.buf)
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}

		text = text[:cut]
	}

	ch.n = copy(ch.buf[:], text)
}
