package rangeproof

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fundshadow/fundshadow-client/crypto/ecc/bn254"
	"github.com/fundshadow/fundshadow-client/crypto/elgamal"
)

func TestEncryptVerify(t *testing.T) {
	c := qt.New(t)

	publicKey, privateKey, err := elgamal.GenerateKey(bn254.NewG1())
	c.Assert(err, qt.IsNil)

	for _, v := range []int64{0, 1, 2, 200, 65535} {
		ct, proof, err := Encrypt(publicKey, big.NewInt(v), 16)
		c.Assert(err, qt.IsNil)
		c.Assert(proof.Bits, qt.HasLen, 16)
		c.Assert(Verify(publicKey, ct, proof), qt.IsNil)

		msg, err := ct.Decrypt(privateKey, 1<<16)
		c.Assert(err, qt.IsNil)
		c.Assert(msg.Int64(), qt.Equals, v)
	}
}

func TestEncryptIsProbabilistic(t *testing.T) {
	c := qt.New(t)

	publicKey, _, err := elgamal.GenerateKey(bn254.NewG1())
	c.Assert(err, qt.IsNil)

	ct1, _, err := Encrypt(publicKey, big.NewInt(7), 8)
	c.Assert(err, qt.IsNil)
	ct2, _, err := Encrypt(publicKey, big.NewInt(7), 8)
	c.Assert(err, qt.IsNil)
	c.Assert(ct1.Equal(ct2), qt.IsFalse)
}

func TestEncryptOutOfRange(t *testing.T) {
	c := qt.New(t)

	publicKey, _, err := elgamal.GenerateKey(bn254.NewG1())
	c.Assert(err, qt.IsNil)

	_, _, err = Encrypt(publicKey, big.NewInt(256), 8)
	c.Assert(err, qt.ErrorIs, ErrOutOfRange)
	_, _, err = Encrypt(publicKey, big.NewInt(-1), 8)
	c.Assert(err, qt.ErrorIs, ErrOutOfRange)
	_, _, err = Encrypt(publicKey, big.NewInt(1), 0)
	c.Assert(err, qt.ErrorMatches, "unsupported range.*")

	// the upper bound is inclusive of 2^bits-1
	ct, proof, err := Encrypt(publicKey, big.NewInt(255), 8)
	c.Assert(err, qt.IsNil)
	c.Assert(Verify(publicKey, ct, proof), qt.IsNil)
}

func TestVerifyRejectsTampering(t *testing.T) {
	c := qt.New(t)

	publicKey, _, err := elgamal.GenerateKey(bn254.NewG1())
	c.Assert(err, qt.IsNil)

	ct, proof, err := Encrypt(publicKey, big.NewInt(5), 8)
	c.Assert(err, qt.IsNil)

	// proof for another ciphertext
	other, _, err := Encrypt(publicKey, big.NewInt(5), 8)
	c.Assert(err, qt.IsNil)
	c.Assert(Verify(publicKey, other, proof), qt.ErrorIs, ErrInvalidProof)

	// altered response
	tampered, err := Unmarshal(publicKey, proof.Marshal())
	c.Assert(err, qt.IsNil)
	tampered.Bits[3].Z0 = new(big.Int).Add(tampered.Bits[3].Z0, big.NewInt(1))
	tampered.Bits[3].Z0.Mod(tampered.Bits[3].Z0, publicKey.Order())
	c.Assert(Verify(publicKey, ct, tampered), qt.ErrorIs, ErrInvalidProof)

	// a ciphertext of 2 in a single bit position cannot be proved
	ct2 := elgamal.NewCiphertext(publicKey)
	_, err = ct2.Encrypt(big.NewInt(2), publicKey, big.NewInt(11))
	c.Assert(err, qt.IsNil)
	forged := &Proof{Bits: []*BitProof{{
		Commitment: ct2,
		C0:         big.NewInt(1),
		C1:         big.NewInt(2),
		Z0:         big.NewInt(3),
		Z1:         big.NewInt(4),
	}}}
	c.Assert(Verify(publicKey, ct2, forged), qt.ErrorIs, ErrInvalidProof)

	// wrong key
	otherKey, _, err := elgamal.GenerateKey(bn254.NewG1())
	c.Assert(err, qt.IsNil)
	c.Assert(Verify(otherKey, ct, proof), qt.ErrorIs, ErrInvalidProof)
}

func TestMarshalUnmarshal(t *testing.T) {
	c := qt.New(t)

	publicKey, _, err := elgamal.GenerateKey(bn254.NewG1())
	c.Assert(err, qt.IsNil)

	ct, proof, err := Encrypt(publicKey, big.NewInt(1234), DefaultBits)
	c.Assert(err, qt.IsNil)

	data := proof.Marshal()
	c.Assert(data, qt.HasLen, 2+DefaultBits*(2*bn254.PointSize+4*32))
	decoded, err := Unmarshal(publicKey, data)
	c.Assert(err, qt.IsNil)
	c.Assert(Verify(publicKey, ct, decoded), qt.IsNil)

	_, err = Unmarshal(publicKey, data[:len(data)-1])
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
	data[0] = 9
	_, err = Unmarshal(publicKey, data)
	c.Assert(err, qt.ErrorMatches, ".*unknown version 9")
}
