// Package poseidon hashes arbitrary length inputs with the iden3 Poseidon
// permutation over the BN254 scalar field.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

const (
	// MaxInputs is the maximum number of field elements MultiPoseidon accepts.
	MaxInputs = chunkSize * chunkSize
	chunkSize = 16
)

var halfMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// MultiPoseidon hashes up to MaxInputs field elements by hashing them in
// chunks of 16 and then hashing the chunk hashes. Every input must be lower
// than the BN254 scalar field modulus.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) > MaxInputs {
		return nil, fmt.Errorf("too many inputs: %d > %d", len(inputs), MaxInputs)
	} else if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	hashes := []*big.Int{}
	for start := 0; start < len(inputs); start += chunkSize {
		end := min(start+chunkSize, len(inputs))
		hash, err := poseidon.Hash(inputs[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to hash chunk %d: %w", start/chunkSize, err)
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	return poseidon.Hash(hashes)
}

// Split returns the high and low 128 bits of x as two field elements. It
// is used to absorb base field coordinates, which may exceed the scalar
// field modulus, without reducing them.
func Split(x *big.Int) (hi, lo *big.Int) {
	hi = new(big.Int).Rsh(x, 128)
	lo = new(big.Int).And(x, halfMask)
	return hi, lo
}
