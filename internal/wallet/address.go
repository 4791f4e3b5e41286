package wallet

import (
	"errors"
	"fmt"
	"strings"
)

// AddressLength is the length of a 0x-prefixed 20-byte hex address.
const AddressLength = 42

// ErrInvalidAddress is returned for malformed wallet addresses.
var ErrInvalidAddress = errors.New("invalid wallet address")

// ValidateAddress checks for "0x" followed by 40 hex digits of either case.
func ValidateAddress(addr string) error {
	if len(addr) != AddressLength || !strings.HasPrefix(addr, "0x") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	for _, c := range addr[2:] {
		if !isHex(c) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
	}
	return nil
}

// Normalize validates addr and returns its canonical lowercase form.
func Normalize(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return strings.ToLower(addr), nil
}

// Shorten renders addr as its first head and last tail characters.
func Shorten(addr string, head, tail int) string {
	if len(addr) <= head+tail {
		return addr
	}
	return addr[:head] + "..." + addr[len(addr)-tail:]
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
