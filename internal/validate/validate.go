package validate

import (
	"errors"
	"regexp"
	"strings"
)

var (
	reAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	reTxHash  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidTxHash  = errors.New("invalid transaction hash")
)

// IsAddress reports whether s is 0x followed by exactly 40 hex characters.
// Surrounding whitespace is not trimmed.
func IsAddress(s string) bool {
	return reAddress.MatchString(s)
}

func IsTxHash(s string) bool {
	return reTxHash.MatchString(s)
}

// Address trims s and returns it if it is a well-formed address.
func Address(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsAddress(s) {
		return "", ErrInvalidAddress
	}
	return s, nil
}

func TxHash(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsTxHash(s) {
		return "", ErrInvalidTxHash
	}
	return s, nil
}

// SameAddress compares two addresses ignoring hex case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
