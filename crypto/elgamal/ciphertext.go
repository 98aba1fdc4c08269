package elgamal

import (
	"fmt"
	"math/big"

	"github.com/fundshadow/fundshadow-client/crypto/ecc"
)

// Ciphertext is the pair of points of an encrypted value.
type Ciphertext struct {
	C1 ecc.Point `json:"c1"`
	C2 ecc.Point `json:"c2"`
}

// NewCiphertext returns the identity ciphertext of the curve of p, which
// encrypts zero with no randomness and is the neutral element of Add.
func NewCiphertext(p ecc.Point) *Ciphertext {
	return &Ciphertext{C1: p.New(), C2: p.New()}
}

// Size returns the length of Serialize for the curve of z.
func (z *Ciphertext) Size() int {
	return 2 * len(z.C1.Marshal())
}

// Encrypt sets z to an encryption of m under pub with randomness r, or a
// fresh random scalar if r is nil.
func (z *Ciphertext) Encrypt(m *big.Int, pub ecc.Point, r *big.Int) (*Ciphertext, error) {
	if r == nil {
		var err error
		if r, err = RandK(pub); err != nil {
			return nil, err
		}
	}
	z.C1, z.C2 = encrypt(pub, m, r)
	return z, nil
}

// Decrypt returns the value encrypted by z, which must be at most max.
func (z *Ciphertext) Decrypt(secret *big.Int, max uint64) (*big.Int, error) {
	M := z.C1.New()
	M.ScalarMult(z.C1, secret)
	M.Neg(M)
	M.Add(z.C2, M)
	v, err := DiscreteLog(M, max)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return v, nil
}

// Add sets z to x + y and returns it.
func (z *Ciphertext) Add(x, y *Ciphertext) *Ciphertext {
	z.C1.Add(x.C1, y.C1)
	z.C2.Add(x.C2, y.C2)
	return z
}

// ScalarMult sets z to an encryption of s times the value of x and returns
// it.
func (z *Ciphertext) ScalarMult(x *Ciphertext, s *big.Int) *Ciphertext {
	z.C1.ScalarMult(x.C1, s)
	z.C2.ScalarMult(x.C2, s)
	return z
}

func (z *Ciphertext) Equal(x *Ciphertext) bool {
	return z.C1.Equal(x.C1) && z.C2.Equal(x.C2)
}

// Serialize returns C1 and C2 concatenated.
func (z *Ciphertext) Serialize() []byte {
	return append(z.C1.Marshal(), z.C2.Marshal()...)
}

// Deserialize sets z from the output of Serialize.
func (z *Ciphertext) Deserialize(data []byte) error {
	if size := z.Size(); len(data) != size {
		return fmt.Errorf("invalid ciphertext length %d, expected %d", len(data), size)
	}
	half := len(data) / 2
	if err := z.C1.Unmarshal(data[:half]); err != nil {
		return fmt.Errorf("invalid C1: %w", err)
	}
	if err := z.C2.Unmarshal(data[half:]); err != nil {
		return fmt.Errorf("invalid C2: %w", err)
	}
	return nil
}

func (z *Ciphertext) String() string {
	if z == nil || z.C1 == nil || z.C2 == nil {
		return "<nil>"
	}
	return fmt.Sprintf("(%s, %s)", z.C1, z.C2)
}
