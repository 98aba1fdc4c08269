// Package elgamal implements exponential ElGamal over an ecc.Point group.
// A value m is encrypted as (r*G, m*G + r*P), so adding ciphertexts point
// by point yields an encryption of the sum of the values. Decryption needs
// a discrete log, which is only practical for small values.
package elgamal

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"

	"github.com/fundshadow/fundshadow-client/crypto/ecc"
)

// RandK returns a random scalar in [1, order) of the group of curve.
func RandK(curve ecc.Point) (*big.Int, error) {
	max := new(big.Int).Sub(curve.Order(), big.NewInt(1))
	k, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("failed to sample scalar: %w", err)
	}
	return k.Add(k, big.NewInt(1)), nil
}

// GenerateKey returns a new key pair, the secret d and P = d*G.
func GenerateKey(curve ecc.Point) (ecc.Point, *big.Int, error) {
	d, err := RandK(curve)
	if err != nil {
		return nil, nil, err
	}
	pub := curve.New()
	pub.ScalarBaseMult(d)
	return pub, d, nil
}

// encrypt returns (r*G, m*G + r*P).
func encrypt(pub ecc.Point, m, r *big.Int) (ecc.Point, ecc.Point) {
	c1 := pub.New()
	c1.ScalarBaseMult(r)
	shared := pub.New()
	shared.ScalarMult(pub, r)
	c2 := pub.New()
	c2.ScalarBaseMult(new(big.Int).Mod(m, pub.Order()))
	c2.Add(c2, shared)
	return c1, c2
}

// DiscreteLog returns x in [0, max] such that M = x*G, using baby-step
// giant-step with about sqrt(max) stored points.
func DiscreteLog(M ecc.Point, max uint64) (*big.Int, error) {
	step := uint64(math.Sqrt(float64(max))) + 1

	table := make(map[string]uint64, step)
	p := M.New()
	g := M.New()
	g.SetGenerator()
	for j := uint64(0); j < step; j++ {
		table[p.String()] = j
		p.Add(p, g)
	}

	// p is now step*G, walk M - i*step*G
	p.Neg(p)
	cur := M.New()
	cur.Set(M)
	for i := uint64(0); i <= step; i++ {
		if j, ok := table[cur.String()]; ok {
			if x := i*step + j; x <= max {
				return new(big.Int).SetUint64(x), nil
			}
			break
		}
		cur.Add(cur, p)
	}
	return nil, fmt.Errorf("no discrete log in [0, %d]", max)
}
