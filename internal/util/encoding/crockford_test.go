package encoding_test

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/homecase-imagekv/internal/util/encoding"
)

func TestEncodeCrockfordB32LC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input []byte
		want  string
	}{
		{input: []byte{}, want: ""},
		{input: []byte{0xF5}, want: "ym"},
		{input: []byte{0xF5, 0x3A}, want: "ymx0"},
		{input: []byte{0xF5, 0x3A, 0x58}, want: "ymx5g"},
		{input: []byte{0xF5, 0x3A, 0x58, 0x9B}, want: "ymx5h6r"},
		{input: []byte{0xF5, 0x3A, 0x58, 0x9B, 0xC4}, want: "ymx5h6y4"},
		{input: []byte{0, 0, 0, 0}, want: "0000000"},
		{input: []byte{255, 255, 255, 255}, want: "zzzzzzr"},
	}

	for _, tt := range tests {
		got := encoding.EncodeCrockfordB32LC(tt.input)
		assert.Equal(t, tt.want, got, "% x", tt.input)
		assert.Len(t, got, encoding.CrockfordB32Len(len(tt.input)))
	}
}

func TestEncodeCrockfordB32LC_KeyHash(t *testing.T) {
	t.Parallel()

	sum := sha256.Sum256([]byte("img"))
	got := encoding.EncodeCrockfordB32LC(sum[:])

	assert.Len(t, got, 52)
	assert.Equal(t, strings.ToLower(got), got)
	assert.NotContains(t, got, "i")
	assert.NotContains(t, got, "l")
	assert.NotContains(t, got, "o")
	assert.NotContains(t, got, "u")
}
