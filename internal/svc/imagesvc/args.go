package imagesvc

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidArguments is returned when a numeric argument does not parse.
var ErrInvalidArguments = errors.New("invalid arguments")

// parseDouble accepts what a Redis server accepts as a double: no surrounding
// whitespace, no trailing garbage, no NaN and no overflow. Infinities are allowed.
func parseDouble(s string) (float64, error) {
	if s == "" || unicode.IsSpace(rune(s[0])) || unicode.IsSpace(rune(s[len(s)-1])) ||
		strings.ContainsRune(s, '_') {
		return 0, ErrInvalidArguments
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) {
		return 0, ErrInvalidArguments
	}

	return value, nil
}

// parseLongLong accepts only the canonical decimal form of a 64-bit integer:
// an optional minus sign, no plus sign, no leading zeros and no whitespace.
func parseLongLong(s string) (int64, error) {
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil || strconv.FormatInt(value, 10) != s {
		return 0, ErrInvalidArguments
	}

	return value, nil
}

// parsePositiveInt parses a canonical integer that must be greater than zero and fit an int.
func parsePositiveInt(s string) (int, error) {
	value, err := parseLongLong(s)
	if err != nil || value <= 0 || value > math.MaxInt {
		return 0, ErrInvalidArguments
	}

	return int(value), nil
}
