package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrPlaintextSerialization is returned by every serialization method of
// Plaintext. Plaintext amounts never leave the process.
var ErrPlaintextSerialization = errors.New("plaintext amounts cannot be serialized")

// Amount is either a *Plaintext, only valid inside the process, or a
// *Sealed, the only form that may be written to the contract.
type Amount interface {
	isAmount()
}

// Plaintext is a non-negative amount in its smallest unit.
type Plaintext struct {
	value *big.Int
}

// NewPlaintext returns a plaintext for v, which must be non-negative.
func NewPlaintext(v *big.Int) (*Plaintext, error) {
	if v == nil {
		return nil, &EncodingError{Reason: ErrNonFinite}
	}
	if v.Sign() < 0 {
		return nil, &EncodingError{Value: v.String(), Reason: ErrNegative}
	}
	return &Plaintext{value: new(big.Int).Set(v)}, nil
}

// FromUint64 returns a plaintext for v.
func FromUint64(v uint64) *Plaintext {
	return &Plaintext{value: new(big.Int).SetUint64(v)}
}

func (*Plaintext) isAmount() {}

// Value returns a copy of the amount.
func (p *Plaintext) Value() *big.Int {
	return new(big.Int).Set(p.value)
}

func (*Plaintext) String() string {
	return "<plaintext redacted>"
}

func (*Plaintext) GoString() string {
	return "codec.Plaintext{<redacted>}"
}

func (*Plaintext) MarshalJSON() ([]byte, error) {
	return nil, ErrPlaintextSerialization
}

func (*Plaintext) MarshalText() ([]byte, error) {
	return nil, ErrPlaintextSerialization
}

func (*Plaintext) MarshalBinary() ([]byte, error) {
	return nil, ErrPlaintextSerialization
}

func (*Plaintext) MarshalCBOR() ([]byte, error) {
	return nil, ErrPlaintextSerialization
}

// Sealed is the wire form of a confidential amount: a ciphertext and the
// proof that it encodes a value in the supported range.
type Sealed struct {
	Ciphertext hexutil.Bytes `json:"ciphertext" cbor:"1,keyasint"`
	Proof      hexutil.Bytes `json:"proof" cbor:"2,keyasint"`
}

func (*Sealed) isAmount() {}

// Empty reports whether s carries no ciphertext.
func (s *Sealed) Empty() bool {
	return s == nil || len(s.Ciphertext) == 0
}

func (s *Sealed) String() string {
	if s.Empty() {
		return "sealed{}"
	}
	prefix := s.Ciphertext
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("sealed{%s…, proof %d bytes}", hex.EncodeToString(prefix), len(s.Proof))
}
