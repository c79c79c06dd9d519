package codec_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	. "github.com/mkrupp/homecase-imagekv/internal/codec"
)

func TestChannel_CaptureAndDrain(t *testing.T) {
	t.Parallel()

	var ch Channel

	assert.Equal(t, "", ch.Drain())

	ch.Capture(SeverityCorruptImage, "corrupt image", "unexpected EOF")
	assert.Equal(t, "image codec error 425, corrupt image: unexpected EOF", ch.Drain())
	assert.Equal(t, 0, ch.Len())

	ch.Capture(SeverityOption, "first", "a")
	ch.Capture(SeverityOption, "second", "b")
	assert.Equal(t, "image codec error 410, second: b", ch.Drain())

	ch.Capture(SeverityOption, "stale", "x")
	ch.Clear()
	assert.Equal(t, "", ch.Drain())
}

func TestChannel_Truncates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		description string
	}{
		{name: "ascii", description: strings.Repeat("x", 200)},
		{name: "multibyte", description: strings.Repeat("é", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var ch Channel

			ch.Capture(SeverityCorruptImage, "corrupt image", tt.description)
			text := ch.Drain()

			assert.LessOrEqual(t, len(text), DiagnosticCapacity-1)
			assert.True(t, utf8.ValidString(text))
			assert.True(t, strings.HasPrefix(text, "image codec error 425, corrupt image: "))
		})
	}
}

func TestChannel_CaptureError(t *testing.T) {
	t.Parallel()

	var ch Channel

	assert.False(t, ch.CaptureError(nil))

	err := NewError(StageTransform, SeverityOption, "invalid blur sigma", "0", nil)
	assert.True(t, ch.CaptureError(err))
	assert.Equal(t, "image codec error 410, invalid blur sigma: 0", ch.Drain())

	assert.False(t, ch.CaptureError(errors.New("plain failure")))
	assert.Equal(t, "", ch.Drain())

	assert.True(t, ch.CaptureError(fmt.Errorf("decode: %w", err)))
	assert.Equal(t, "image codec error 410, invalid blur sigma: 0", ch.Drain())

	assert.False(t, ch.CaptureError(&Error{Stage: StageEncode}))
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	err := NewError(StageEncode, SeverityCoder, "unable to encode image", "cause", cause)

	assert.ErrorIs(t, err, ErrEncode)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrDecode)
	assert.Equal(t, "encode: unable to encode image: cause", err.Error())
}

func TestDefaultErrorText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image codec error", DefaultErrorText(""))
	assert.Equal(t, "image codec error bad input image", DefaultErrorText("bad input image"))
}
