package provider

import (
	"errors"
	"fmt"
)

// Error codes used by EIP-1193 wallets and JSON-RPC nodes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainUnrecognized = 4902
	CodeRequestPending    = -32002
	CodeInternal          = -32603
)

// Error is a failure reported by the wallet with a numeric code.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func NewError(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// CodeOf extracts the provider error code from err.
func CodeOf(err error) (int, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// MessageOf returns the provider's own message, or "" when err carries none.
func MessageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
