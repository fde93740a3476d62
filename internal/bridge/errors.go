package bridge

import (
	"errors"

	"github.com/pvzzle/wasi/internal/provider"
)

// Kind classifies a bridge failure. Callers switch on it instead of on raw
// provider codes.
type Kind int

const (
	KindUnclassified Kind = iota
	KindProviderUnavailable
	KindUserRejected
	KindRequestConflict
	KindChainUnregistered
	KindUnsupportedNetwork
)

func (k Kind) String() string {
	switch k {
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindUserRejected:
		return "user_rejected"
	case KindRequestConflict:
		return "request_conflict"
	case KindChainUnregistered:
		return "chain_unregistered"
	case KindUnsupportedNetwork:
		return "unsupported_network"
	default:
		return "unclassified"
	}
}

// Error is returned by every failing bridge operation. Reason is the
// human-readable text shown to the user.
type Error struct {
	Op     string
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string { return e.Op + ": " + e.Reason }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a bridge error, KindUnclassified otherwise.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnclassified
}

// ReasonOf returns the user-facing reason of a bridge error, or err.Error().
func ReasonOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ErrUnavailable is returned by New when no usable wallet is present.
var ErrUnavailable = &Error{
	Op:     "detect",
	Kind:   KindProviderUnavailable,
	Reason: "Wallet provider is not available. Please configure a wallet to continue.",
}

// messages holds the per-operation reasons for the codes each operation
// distinguishes. fallback is used when the provider supplies no message.
type messages struct {
	byCode   map[int]string
	fallback string
}

var (
	connectMessages = messages{
		byCode: map[int]string{
			provider.CodeUserRejected:   "Connection rejected by user",
			provider.CodeRequestPending: "Connection request already pending",
		},
		fallback: "Failed to connect to wallet",
	}
	signMessages = messages{
		byCode: map[int]string{
			provider.CodeUserRejected: "Signature rejected by user",
		},
		fallback: "Failed to sign message",
	}
	sendMessages = messages{
		byCode: map[int]string{
			provider.CodeUserRejected: "Transaction rejected by user",
			provider.CodeInternal:     "Internal error. Check your balance and try again.",
		},
		fallback: "Transaction failed",
	}
	balanceMessages = messages{fallback: "Failed to get balance"}
	networkMessages = messages{fallback: "Failed to get network information"}
)

// translate is the single place provider failures become bridge errors.
func translate(op string, err error, m messages) *Error {
	code, hasCode := provider.CodeOf(err)

	kind := KindUnclassified
	if hasCode {
		kind = kindForCode(code)
	}

	reason, ok := m.byCode[code]
	if !hasCode || !ok {
		reason = provider.MessageOf(err)
		if reason == "" {
			reason = m.fallback
		}
	}

	return &Error{Op: op, Kind: kind, Reason: reason, Err: err}
}

func kindForCode(code int) Kind {
	switch code {
	case provider.CodeUserRejected:
		return KindUserRejected
	case provider.CodeRequestPending:
		return KindRequestConflict
	case provider.CodeChainUnrecognized:
		return KindChainUnregistered
	default:
		return KindUnclassified
	}
}
