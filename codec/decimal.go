package codec

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// FromDecimal converts a decimal amount as typed by a user, such as 0.5 ETH,
// into its smallest unit with the given number of decimals. Digits beyond
// decimals are truncated.
func FromDecimal(v float64, decimals uint8) (*Plaintext, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, &EncodingError{Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: ErrNonFinite}
	}
	return ParseDecimal(strconv.FormatFloat(v, 'f', -1, 64), decimals)
}

// ParseDecimal is FromDecimal for a decimal string, which avoids the float
// rounding of FromDecimal for large or very precise amounts.
func ParseDecimal(s string, decimals uint8) (*Plaintext, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return nil, &EncodingError{Value: s, Reason: ErrNonFinite}
	}
	negative := false
	switch in[0] {
	case '-':
		negative = true
		in = in[1:]
	case '+':
		in = in[1:]
	}
	intPart, fracPart, _ := strings.Cut(in, ".")
	if intPart == "" && fracPart == "" || !digits(intPart) || !digits(fracPart) {
		return nil, &EncodingError{Value: s, Reason: ErrNonFinite}
	}
	if len(fracPart) > int(decimals) {
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))
	value, ok := new(big.Int).SetString("0"+intPart+fracPart, 10)
	if !ok {
		return nil, &EncodingError{Value: s, Reason: ErrNonFinite}
	}
	if negative && value.Sign() != 0 {
		return nil, &EncodingError{Value: s, Reason: ErrNegative}
	}
	return &Plaintext{value: value}, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
