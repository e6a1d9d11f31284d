package utils

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

const nativeDecimals = 18

var (
	errEmptyAmount    = errors.New("amount is empty")
	errBadAmount      = errors.New("amount is not a decimal number")
	errTooManyDigits  = errors.New("amount has more than 18 fraction digits")
	errNotPositive    = errors.New("amount must be positive")
	etherDecimalScale = new(big.Int).SetUint64(params.Ether)
)

// ParseEther converts a positive decimal string in the native unit into wei.
// At most 18 fraction digits are accepted; no exponent, sign or separators.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errEmptyAmount
	}

	whole, frac, hasDot := strings.Cut(amount, ".")
	if whole == "" && frac == "" || hasDot && frac == "" {
		return nil, errBadAmount
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, errBadAmount
	}
	if len(frac) > nativeDecimals {
		return nil, errTooManyDigits
	}

	digits := whole + frac + strings.Repeat("0", nativeDecimals-len(frac))
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, errBadAmount
	}
	if wei.Sign() <= 0 {
		return nil, errNotPositive
	}
	return wei, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatEther renders wei as a decimal string in the native unit without trailing zeros
func FormatEther(wei *big.Int) string {
	return formatUnits(wei, etherDecimalScale, nativeDecimals)
}

// FormatGwei renders wei as a decimal gwei string
func FormatGwei(wei *big.Int) string {
	return formatUnits(wei, big.NewInt(params.GWei), 9)
}

func formatUnits(value, scale *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	sign := ""
	v := new(big.Int).Set(value)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	whole, rem := new(big.Int).QuoRem(v, scale, new(big.Int))
	if rem.Sign() == 0 {
		return sign + whole.String()
	}
	frac := rem.String()
	frac = strings.Repeat("0", decimals-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	return sign + whole.String() + "." + frac
}
