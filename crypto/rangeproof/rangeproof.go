// Package rangeproof proves that an ElGamal ciphertext encrypts a value in
// [0, 2^bits) without revealing it.
//
// The value v is decomposed in bits b_i and each bit is encrypted as
// (A_i, B_i) = (r_i*G, b_i*G + r_i*P), with the r_i chosen so that
// sum(2^i * r_i) equals the randomness of the main ciphertext. For each bit a
// disjunctive Chaum-Pedersen proof shows that B_i - j*G = r_i*P for j = 0 or
// j = 1. The verifier recombines the bit ciphertexts and checks that they add
// up to the main ciphertext. Challenges are derived with Poseidon
// (Fiat-Shamir), bound to the public key, the main ciphertext and the bit
// index.
package rangeproof

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/fundshadow/fundshadow-client/crypto/ecc"
	"github.com/fundshadow/fundshadow-client/crypto/elgamal"
	"github.com/fundshadow/fundshadow-client/crypto/hash/poseidon"
)

const (
	// Version is the first byte of a serialized proof.
	Version = 1
	// DefaultBits is the range used for monetary amounts.
	DefaultBits = 64
	// MaxBits is the largest supported range.
	MaxBits = 128

	scalarSize = 32
)

// domainTag separates these challenges from any other Poseidon use.
var domainTag = new(big.Int).SetBytes([]byte("fundshadow/rangeproof/v1"))

var (
	// ErrOutOfRange is returned by Encrypt when the value is negative or does
	// not fit in the requested number of bits.
	ErrOutOfRange = errors.New("value out of range")
	// ErrInvalidProof is returned by Verify for any proof that does not
	// verify.
	ErrInvalidProof = errors.New("invalid range proof")
)

// BitProof is the proof for a single bit.
type BitProof struct {
	Commitment *elgamal.Ciphertext
	C0, C1     *big.Int
	Z0, Z1     *big.Int
}

// Proof is a range proof for one ciphertext.
type Proof struct {
	Bits []*BitProof
}

// Encrypt encrypts value under publicKey and proves that it lies in
// [0, 2^bits). The returned ciphertext and proof are fresh on every call.
func Encrypt(publicKey ecc.Point, value *big.Int, bits int) (*elgamal.Ciphertext, *Proof, error) {
	if bits < 1 || bits > MaxBits {
		return nil, nil, fmt.Errorf("unsupported range of %d bits", bits)
	}
	if value.Sign() < 0 || value.BitLen() > bits {
		return nil, nil, fmt.Errorf("%w: %s does not fit in %d bits", ErrOutOfRange, value, bits)
	}
	order := publicKey.Order()

	// split the randomness r as sum(2^i * r_i)
	rs := make([]*big.Int, bits)
	acc := new(big.Int)
	for i := 0; i < bits-1; i++ {
		ri, err := elgamal.RandK(publicKey)
		if err != nil {
			return nil, nil, err
		}
		rs[i] = ri
		acc.Add(acc, new(big.Int).Lsh(ri, uint(i)))
	}
	r, err := elgamal.RandK(publicKey)
	if err != nil {
		return nil, nil, err
	}
	last := new(big.Int).Sub(r, acc)
	inv := new(big.Int).ModInverse(new(big.Int).Lsh(big.NewInt(1), uint(bits-1)), order)
	last.Mul(last, inv)
	rs[bits-1] = last.Mod(last, order)

	ct, err := elgamal.NewCiphertext(publicKey).Encrypt(value, publicKey, r)
	if err != nil {
		return nil, nil, err
	}

	proof := &Proof{Bits: make([]*BitProof, bits)}
	for i := 0; i < bits; i++ {
		bit := value.Bit(i)
		bp, err := proveBit(publicKey, ct, i, bits, bit, rs[i])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to prove bit %d: %w", i, err)
		}
		proof.Bits[i] = bp
	}
	return ct, proof, nil
}

func proveBit(pub ecc.Point, ct *elgamal.Ciphertext, index, bits int, bit uint, r *big.Int) (*BitProof, error) {
	order := pub.Order()
	commitment, err := elgamal.NewCiphertext(pub).Encrypt(new(big.Int).SetUint64(uint64(bit)), pub, r)
	if err != nil {
		return nil, err
	}
	known, fake := int(bit), 1-int(bit)

	w, err := elgamal.RandK(pub)
	if err != nil {
		return nil, err
	}
	cSim, err := elgamal.RandK(pub)
	if err != nil {
		return nil, err
	}
	zSim, err := elgamal.RandK(pub)
	if err != nil {
		return nil, err
	}

	var t1, t2 [2]ecc.Point
	t1[known] = pub.New()
	t1[known].ScalarBaseMult(w)
	t2[known] = pub.New()
	t2[known].ScalarMult(pub, w)
	t1[fake], t2[fake] = simulate(pub, commitment, fake, cSim, zSim)

	c, err := challenge(pub, ct, index, bits, commitment, t1, t2)
	if err != nil {
		return nil, err
	}
	cReal := new(big.Int).Sub(c, cSim)
	cReal.Mod(cReal, order)
	zReal := new(big.Int).Mul(cReal, r)
	zReal.Add(zReal, w)
	zReal.Mod(zReal, order)

	bp := &BitProof{Commitment: commitment}
	if known == 0 {
		bp.C0, bp.Z0, bp.C1, bp.Z1 = cReal, zReal, cSim, zSim
	} else {
		bp.C0, bp.Z0, bp.C1, bp.Z1 = cSim, zSim, cReal, zReal
	}
	return bp, nil
}

// simulate returns T1 = z*G - c*A and T2 = z*P - c*(B - j*G), which are the
// commitments the verifier recomputes for branch j.
func simulate(pub ecc.Point, commitment *elgamal.Ciphertext, j int, c, z *big.Int) (ecc.Point, ecc.Point) {
	cA := pub.New()
	cA.ScalarMult(commitment.C1, c)
	cA.Neg(cA)
	t1 := pub.New()
	t1.ScalarBaseMult(z)
	t1.Add(t1, cA)

	y := pub.New()
	y.Set(commitment.C2)
	if j == 1 {
		g := pub.New()
		g.SetGenerator()
		g.Neg(g)
		y.Add(y, g)
	}
	y.ScalarMult(y, c)
	y.Neg(y)
	t2 := pub.New()
	t2.ScalarMult(pub, z)
	t2.Add(t2, y)
	return t1, t2
}

func challenge(pub ecc.Point, ct *elgamal.Ciphertext, index, bits int, commitment *elgamal.Ciphertext, t1, t2 [2]ecc.Point) (*big.Int, error) {
	inputs := []*big.Int{domainTag, big.NewInt(int64(index)), big.NewInt(int64(bits))}
	for _, p := range []ecc.Point{
		pub, ct.C1, ct.C2, commitment.C1, commitment.C2,
		t1[0], t2[0], t1[1], t2[1],
	} {
		x, y := p.Point()
		xHi, xLo := poseidon.Split(x)
		yHi, yLo := poseidon.Split(y)
		inputs = append(inputs, xHi, xLo, yHi, yLo)
	}
	h, err := poseidon.MultiPoseidon(inputs...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute challenge: %w", err)
	}
	return h.Mod(h, pub.Order()), nil
}

// Verify checks that proof shows ct, encrypted under publicKey, holds a
// value in [0, 2^len(proof.Bits)). It returns an error wrapping
// ErrInvalidProof if it does not.
func Verify(publicKey ecc.Point, ct *elgamal.Ciphertext, proof *Proof) error {
	if proof == nil || len(proof.Bits) < 1 || len(proof.Bits) > MaxBits {
		return fmt.Errorf("%w: unsupported number of bits", ErrInvalidProof)
	}
	order := publicKey.Order()
	bits := len(proof.Bits)
	sum := elgamal.NewCiphertext(publicKey)
	for i, bp := range proof.Bits {
		if bp == nil || bp.Commitment == nil {
			return fmt.Errorf("%w: missing bit %d", ErrInvalidProof, i)
		}
		for _, s := range []*big.Int{bp.C0, bp.C1, bp.Z0, bp.Z1} {
			if s == nil || s.Sign() < 0 || s.Cmp(order) >= 0 {
				return fmt.Errorf("%w: non canonical scalar in bit %d", ErrInvalidProof, i)
			}
		}
		var t1, t2 [2]ecc.Point
		t1[0], t2[0] = simulate(publicKey, bp.Commitment, 0, bp.C0, bp.Z0)
		t1[1], t2[1] = simulate(publicKey, bp.Commitment, 1, bp.C1, bp.Z1)
		c, err := challenge(publicKey, ct, i, bits, bp.Commitment, t1, t2)
		if err != nil {
			return err
		}
		got := new(big.Int).Add(bp.C0, bp.C1)
		if got.Mod(got, order).Cmp(c) != 0 {
			return fmt.Errorf("%w: bit %d", ErrInvalidProof, i)
		}
		weighted := elgamal.NewCiphertext(publicKey).ScalarMult(bp.Commitment, new(big.Int).Lsh(big.NewInt(1), uint(i)))
		sum.Add(sum, weighted)
	}
	if !sum.Equal(ct) {
		return fmt.Errorf("%w: bits do not add up to the ciphertext", ErrInvalidProof)
	}
	return nil
}

// Marshal encodes the proof as version || bits || bit proofs, each bit proof
// being the serialized commitment followed by C0, C1, Z0 and Z1 as 32 byte
// big-endian scalars.
func (p *Proof) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteByte(Version)
	buf.WriteByte(byte(len(p.Bits)))
	for _, bp := range p.Bits {
		buf.Write(bp.Commitment.Serialize())
		for _, s := range []*big.Int{bp.C0, bp.C1, bp.Z0, bp.Z1} {
			buf.Write(s.FillBytes(make([]byte, scalarSize)))
		}
	}
	return buf.Bytes()
}

// Unmarshal decodes a proof produced by Marshal. Points are decoded on the
// curve of curve.
func Unmarshal(curve ecc.Point, data []byte) (*Proof, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: proof too short", ErrInvalidProof)
	}
	if data[0] != Version {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidProof, data[0])
	}
	bits := int(data[1])
	ctSize := elgamal.NewCiphertext(curve).Size()
	bitSize := ctSize + 4*scalarSize
	if bits < 1 || bits > MaxBits || len(data) != 2+bits*bitSize {
		return nil, fmt.Errorf("%w: unexpected length %d for %d bits", ErrInvalidProof, len(data), bits)
	}
	proof := &Proof{Bits: make([]*BitProof, bits)}
	data = data[2:]
	for i := range proof.Bits {
		chunk := data[i*bitSize : (i+1)*bitSize]
		commitment := elgamal.NewCiphertext(curve)
		if err := commitment.Deserialize(chunk[:ctSize]); err != nil {
			return nil, fmt.Errorf("%w: bit %d: %v", ErrInvalidProof, i, err)
		}
		scalars := chunk[ctSize:]
		read := func(j int) *big.Int {
			return new(big.Int).SetBytes(scalars[j*scalarSize : (j+1)*scalarSize])
		}
		proof.Bits[i] = &BitProof{
			Commitment: commitment,
			C0:         read(0),
			C1:         read(1),
			Z0:         read(2),
			Z1:         read(3),
		}
	}
	return proof, nil
}
