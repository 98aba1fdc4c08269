package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int that serializes as a decimal string in JSON, so
// values above 2^53 survive JavaScript clients, and as a CBOR integer.
type BigInt big.Int

// NewInt returns a BigInt set to x.
func NewInt(x int64) *BigInt {
	return (*BigInt)(big.NewInt(x))
}

// NewBigInt returns a copy of x as a BigInt. A nil x is zero.
func NewBigInt(x *big.Int) *BigInt {
	if x == nil {
		return NewInt(0)
	}
	return (*BigInt)(new(big.Int).Set(x))
}

// MathBigInt returns the underlying big.Int. It is not a copy.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

func (i *BigInt) String() string {
	if i == nil {
		return "0"
	}
	return i.MathBigInt().String()
}

func (i *BigInt) Uint64() uint64 {
	return i.MathBigInt().Uint64()
}

// Add sets i to x + y and returns i.
func (i *BigInt) Add(x, y *BigInt) *BigInt {
	i.MathBigInt().Add(x.MathBigInt(), y.MathBigInt())
	return i
}

func (i *BigInt) Cmp(x *BigInt) int {
	return i.MathBigInt().Cmp(x.MathBigInt())
}

func (i *BigInt) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *BigInt) UnmarshalText(data []byte) error {
	if _, ok := i.MathBigInt().SetString(string(data), 10); !ok {
		return fmt.Errorf("invalid decimal integer %q", data)
	}
	return nil
}

func (i *BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(i.MathBigInt())
}

func (i *BigInt) UnmarshalCBOR(data []byte) error {
	var v big.Int
	if err := cbor.Unmarshal(data, &v); err != nil {
		return err
	}
	i.MathBigInt().Set(&v)
	return nil
}
