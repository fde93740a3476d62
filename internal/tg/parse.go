package tg

import (
	"errors"
	"strings"

	"github.com/pvzzle/wasi/internal/contacts"
	"github.com/pvzzle/wasi/internal/units"
	"github.com/pvzzle/wasi/internal/validate"
)

var ErrUnknownRecipient = errors.New("not an address or a contact name")

// ParseRecipient accepts an address or the exact name of a contact (case
// insensitive). The second result is the contact name, empty for a raw
// address.
func ParseRecipient(text string, book []contacts.Contact) (string, string, error) {
	text = strings.TrimSpace(text)
	if addr, err := validate.Address(text); err == nil {
		for _, c := range book {
			if validate.SameAddress(c.Address, addr) {
				return addr, c.Name, nil
			}
		}
		return addr, "", nil
	}

	for _, c := range book {
		if strings.EqualFold(c.Name, text) {
			return c.Address, c.Name, nil
		}
	}
	return "", "", ErrUnknownRecipient
}

// ParseAmount normalizes a positive amount ("1,5" → "1.5").
func ParseAmount(text string) (string, error) {
	wei, err := units.PositiveWei(text)
	if err != nil {
		return "", err
	}
	return units.Exact(wei), nil
}
