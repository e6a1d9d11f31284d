package utils

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var evmAddressPattern = regexp.MustCompile("^(0x|0X)?[0-9a-fA-F]{40}$")

// IsEvmAddress checks shape only: optional 0x prefix plus 40 hex chars
func IsEvmAddress(address string) bool {
	return evmAddressPattern.MatchString(address)
}

// hasMixedCase reports whether the hex body uses both upper and lower case letters
func hasMixedCase(hexBody string) bool {
	return strings.ToLower(hexBody) != hexBody && strings.ToUpper(hexBody) != hexBody
}

// ParseRecipient accepts all-lower, all-upper or correctly checksummed mixed-case addresses.
// A mixed-case address whose EIP-55 checksum does not match is rejected.
func ParseRecipient(address string) (common.Address, bool) {
	address = strings.TrimSpace(address)
	if !IsEvmAddress(address) {
		return common.Address{}, false
	}
	body := address
	if len(body) == 42 {
		body = body[2:]
	}
	parsed := common.HexToAddress(body)
	if hasMixedCase(body) && parsed.Hex()[2:] != body {
		return common.Address{}, false
	}
	return parsed, true
}

// NormalizeAddress returns the checksummed form, adding the 0x prefix if missing.
// Unknown formats come back unchanged with ok=false.
func NormalizeAddress(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if !IsEvmAddress(address) {
		return address, false
	}
	return common.HexToAddress(address).Hex(), true
}

// SameAddress case-insensitive address comparison
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(strings.ToLower(a), "0x"), strings.TrimPrefix(strings.ToLower(b), "0x"))
}
