package encoding

import "strings"

// lowercase Crockford base32, without I, L, O and U
const crockfordAlphabetLC = "0123456789abcdefghjkmnpqrstvwxyz"

// CrockfordB32Len returns the length of the encoding of n bytes.
func CrockfordB32Len(n int) int {
	return (n*8 + 4) / 5 //nolint:mnd
}

// EncodeCrockfordB32LC encodes input with the lowercase Crockford base32 alphabet,
// most significant bits first and without padding. The output is safe for file names
// and HTTP headers.
func EncodeCrockfordB32LC(input []byte) string {
	var (
		sb    strings.Builder
		accum uint
		bits  uint
	)

	sb.Grow(CrockfordB32Len(len(input)))

	for _, b := range input {
		accum = accum<<8 | uint(b)
		bits += 8

		for bits >= 5 {
			bits -= 5
			sb.WriteByte(crockfordAlphabetLC[(accum>>bits)&0x1f])
		}

		accum &= 1<<bits - 1
	}

	if bits > 0 {
		sb.WriteByte(crockfordAlphabetLC[(accum<<(5-bits))&0x1f])
	}

	return sb.String()
}
