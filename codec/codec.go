// Package codec turns plaintext amounts into the sealed form the contract
// accepts: an ElGamal ciphertext under the contract encryption key plus a
// range proof showing the value is non-negative and bounded.
package codec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/fundshadow/fundshadow-client/crypto/ecc"
	"github.com/fundshadow/fundshadow-client/crypto/ecc/bn254"
	"github.com/fundshadow/fundshadow-client/crypto/elgamal"
	"github.com/fundshadow/fundshadow-client/crypto/rangeproof"
)

// DefaultBits is the range of amounts sealed by the codec returned by New
// when bits is zero.
const DefaultBits = rangeproof.DefaultBits

// ErrInvalidSealed is wrapped by Verify errors.
var ErrInvalidSealed = errors.New("invalid sealed amount")

// Encoder seals plaintext amounts. Implementations must be safe for
// concurrent use and should be probabilistic.
type Encoder interface {
	Encode(p *Plaintext) (*Sealed, error)
}

// Verifier checks sealed amounts the way the contract does before
// accepting them.
type Verifier interface {
	Verify(s *Sealed) error
}

// ElGamalCodec implements Encoder and Verifier with exponential ElGamal on
// BN254 and bit decomposition range proofs.
type ElGamalCodec struct {
	publicKey ecc.Point
	bits      int
}

// New returns a codec sealing values in [0, 2^bits) under publicKey.
func New(publicKey ecc.Point, bits int) (*ElGamalCodec, error) {
	if bits == 0 {
		bits = DefaultBits
	}
	if bits < 1 || bits > rangeproof.MaxBits {
		return nil, fmt.Errorf("unsupported range of %d bits", bits)
	}
	if publicKey == nil || publicKey.IsZero() {
		return nil, fmt.Errorf("invalid encryption key")
	}
	return &ElGamalCodec{publicKey: publicKey, bits: bits}, nil
}

// NewFromKey is New for a public key in its marshaled form, as returned by
// the contract.
func NewFromKey(key []byte, bits int) (*ElGamalCodec, error) {
	pub, err := ParsePublicKey(key)
	if err != nil {
		return nil, err
	}
	return New(pub, bits)
}

// ParsePublicKey decodes a marshaled BN254 G1 public key.
func ParsePublicKey(key []byte) (ecc.Point, error) {
	pub := bn254.NewG1()
	if err := pub.Unmarshal(key); err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	return pub, nil
}

// Bits returns the size of the supported range.
func (c *ElGamalCodec) Bits() int {
	return c.bits
}

// MaxValue returns the largest value the codec can seal.
func (c *ElGamalCodec) MaxValue() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(c.bits))
	return max.Sub(max, big.NewInt(1))
}

// PublicKey returns the encryption key of the codec.
func (c *ElGamalCodec) PublicKey() ecc.Point {
	return c.publicKey
}

// Encode seals p. Zero is a valid value.
func (c *ElGamalCodec) Encode(p *Plaintext) (*Sealed, error) {
	if p == nil || p.value == nil {
		return nil, &EncodingError{Reason: ErrNonFinite}
	}
	if p.value.Sign() < 0 {
		return nil, &EncodingError{Reason: ErrNegative}
	}
	if p.value.BitLen() > c.bits {
		return nil, &EncodingError{Reason: fmt.Errorf("%w of %d bits", ErrTooLarge, c.bits)}
	}
	ct, proof, err := rangeproof.Encrypt(c.publicKey, p.value, c.bits)
	if err != nil {
		return nil, fmt.Errorf("failed to seal amount: %w", err)
	}
	return &Sealed{
		Ciphertext: ct.Serialize(),
		Proof:      proof.Marshal(),
	}, nil
}

// Verify checks the ciphertext is well formed and the proof covers exactly
// the range of the codec.
func (c *ElGamalCodec) Verify(s *Sealed) error {
	if s.Empty() || len(s.Proof) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidSealed)
	}
	ct, err := c.Ciphertext(s)
	if err != nil {
		return err
	}
	proof, err := rangeproof.Unmarshal(c.publicKey, s.Proof)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSealed, err)
	}
	if len(proof.Bits) != c.bits {
		return fmt.Errorf("%w: proof covers %d bits, expected %d", ErrInvalidSealed, len(proof.Bits), c.bits)
	}
	if err := rangeproof.Verify(c.publicKey, ct, proof); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSealed, err)
	}
	return nil
}

// Ciphertext decodes the ciphertext of s.
func (c *ElGamalCodec) Ciphertext(s *Sealed) (*elgamal.Ciphertext, error) {
	if s.Empty() {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSealed)
	}
	ct := elgamal.NewCiphertext(c.publicKey)
	if err := ct.Deserialize(s.Ciphertext); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSealed, err)
	}
	return ct, nil
}

// Seal returns a as a sealed amount, encoding it with enc if it is a
// plaintext. It is the only way amounts reach the write path.
func Seal(enc Encoder, a Amount) (*Sealed, error) {
	switch v := a.(type) {
	case *Sealed:
		if v.Empty() {
			return nil, fmt.Errorf("%w: empty", ErrInvalidSealed)
		}
		return v, nil
	case *Plaintext:
		if enc == nil {
			return nil, fmt.Errorf("no encoder configured")
		}
		return enc.Encode(v)
	default:
		return nil, &EncodingError{Reason: ErrNonFinite}
	}
}
