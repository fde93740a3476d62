package validate

import (
	"strings"
	"testing"
)

func TestIsAddress(t *testing.T) {
	valid := []string{
		"0x1234567890123456789012345678901234567890",
		"0x" + strings.Repeat("a", 40),
		"0x" + strings.Repeat("F", 40),
		"0xAbCdEf0123456789aBcDeF0123456789AbCdEf01",
	}
	for _, s := range valid {
		if !IsAddress(s) {
			t.Fatalf("expected valid address: %q", s)
		}
	}

	invalid := []string{
		"",
		"0x123",
		"987654321",
		strings.Repeat("a", 40),
		"0x" + strings.Repeat("b", 39),
		"0x" + strings.Repeat("b", 41),
		"0x" + strings.Repeat("g", 40),
		"0X" + strings.Repeat("a", 40),
		" 0x" + strings.Repeat("a", 40),
	}
	for _, s := range invalid {
		if IsAddress(s) {
			t.Fatalf("expected invalid address: %q", s)
		}
	}
}

func TestIsTxHash(t *testing.T) {
	if !IsTxHash("0x" + strings.Repeat("a", 64)) {
		t.Fatalf("expected valid tx hash")
	}
	if IsTxHash("0x123") {
		t.Fatalf("expected invalid tx hash")
	}
	if IsTxHash(strings.Repeat("a", 64)) {
		t.Fatalf("expected 0x prefix to be required")
	}
}

func TestAddress_Trims(t *testing.T) {
	in := "  0x" + strings.Repeat("c", 40) + "\n"
	got, err := Address(in)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != strings.TrimSpace(in) {
		t.Fatalf("expected trimmed address, got=%q", got)
	}

	if _, err := Address("0xnope"); err != ErrInvalidAddress {
		t.Fatalf("expected ErrInvalidAddress, got=%v", err)
	}
}

func TestSameAddress(t *testing.T) {
	a := "0xABCDEF0123456789ABCDEF0123456789ABCDEF01"
	b := strings.ToLower(a)
	if !SameAddress(a, b) {
		t.Fatalf("expected case-insensitive match")
	}
	if SameAddress(a, "0x"+strings.Repeat("0", 40)) {
		t.Fatalf("expected mismatch")
	}
}
