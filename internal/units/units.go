package units

import (
	"errors"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Decimals is the fixed exponent between the display unit and wei. Tokens with
// other decimal counts are not supported.
const Decimals = 18

// DisplayPlaces is the number of fractional digits in display strings.
const DisplayPlaces = 6

// reAmount is a plain decimal; exponents and signs are not accepted.
var reAmount = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidWei    = errors.New("invalid wei value")
)

// ToWei converts a decimal amount ("1.5", "0,25") to wei. Digits below one wei
// are truncated. Negative, non-numeric and exponent input is rejected; zero is allowed.
func ToWei(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, ",", ".")
	if !reAmount.MatchString(amount) {
		return nil, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(amount)
	if err != nil || d.IsNegative() {
		return nil, ErrInvalidAmount
	}

	return d.Shift(Decimals).Truncate(0).BigInt(), nil
}

// ToWeiHex is ToWei encoded as a 0x-prefixed hex quantity.
func ToWeiHex(amount string) (string, error) {
	wei, err := ToWei(amount)
	if err != nil {
		return "", err
	}
	return hexutil.EncodeBig(wei), nil
}

// FromWei renders wei in the display unit with six fractional digits,
// truncating the rest.
func FromWei(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	return decimal.NewFromBigInt(wei, -Decimals).Truncate(DisplayPlaces).StringFixed(DisplayPlaces)
}

// ParseWei accepts a decimal integer or a 0x-prefixed hex quantity.
func ParseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	if s == "" {
		return nil, ErrInvalidWei
	}
	out, ok := new(big.Int).SetString(s, base)
	if !ok || out.Sign() < 0 {
		return nil, ErrInvalidWei
	}
	return out, nil
}

// FromWeiString is ParseWei followed by FromWei.
func FromWeiString(s string) (string, error) {
	wei, err := ParseWei(s)
	if err != nil {
		return "", err
	}
	return FromWei(wei), nil
}

// PositiveWei converts amount and requires the result to be above zero.
func PositiveWei(amount string) (*big.Int, error) {
	wei, err := ToWei(amount)
	if err != nil {
		return nil, err
	}
	if wei.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return wei, nil
}

// Exact renders wei in the display unit without truncation ("1.5", "0.000000000000000001").
func Exact(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -Decimals).String()
}
