// Package bn254 implements ecc.Point over the G1 group of the BN254 curve,
// the curve whose pairing precompiles are available on Ethereum.
package bn254

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fundshadow/fundshadow-client/crypto/ecc"
	"github.com/fxamacker/cbor/v2"
)

const CurveType = "bn254"

// PointSize is the size in bytes of a marshaled G1 point.
const PointSize = bn254.SizeOfG1AffineUncompressed

var generator bn254.G1Affine

func init() {
	_, _, generator, _ = bn254.Generators()
}

// G1 is the affine representation of a G1 group element.
type G1 struct {
	inner *bn254.G1Affine
}

// NewG1 returns the identity element of G1.
func NewG1() *G1 {
	return &G1{inner: new(bn254.G1Affine)}
}

// Generator returns a new point set to the G1 generator.
func Generator() *G1 {
	g := NewG1()
	g.SetGenerator()
	return g
}

func (g *G1) New() ecc.Point {
	return NewG1()
}

func (g *G1) Order() *big.Int {
	return fr.Modulus()
}

func (g *G1) Add(a, b ecc.Point) {
	temp := new(bn254.G1Affine)
	temp.Add(a.(*G1).inner, b.(*G1).inner)
	*g.inner = *temp
}

func (g *G1) Neg(a ecc.Point) {
	g.inner.Neg(a.(*G1).inner)
}

func (g *G1) ScalarMult(a ecc.Point, scalar *big.Int) {
	temp := new(bn254.G1Affine)
	temp.ScalarMultiplication(a.(*G1).inner, reduce(scalar))
	*g.inner = *temp
}

func (g *G1) ScalarBaseMult(scalar *big.Int) {
	g.inner.ScalarMultiplicationBase(reduce(scalar))
}

func (g *G1) Marshal() []byte {
	return g.inner.Marshal()
}

func (g *G1) Unmarshal(buf []byte) error {
	if len(buf) != PointSize {
		return fmt.Errorf("invalid point length: got %d bytes, expected %d", len(buf), PointSize)
	}
	if g.inner == nil {
		g.inner = new(bn254.G1Affine)
	}
	if _, err := g.inner.SetBytes(buf); err != nil {
		return fmt.Errorf("invalid point: %w", err)
	}
	return nil
}

func (g *G1) MarshalJSON() ([]byte, error) {
	x, y := g.Point()
	return json.Marshal([]string{x.String(), y.String()})
}

func (g *G1) UnmarshalJSON(buf []byte) error {
	var coords []string
	if err := json.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	x, okX := new(big.Int).SetString(coords[0], 10)
	y, okY := new(big.Int).SetString(coords[1], 10)
	if !okX || !okY {
		return fmt.Errorf("invalid coordinates %v", coords)
	}
	return g.setCoords(x, y)
}

func (g *G1) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(g.Marshal())
}

func (g *G1) UnmarshalCBOR(buf []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(buf, &raw); err != nil {
		return err
	}
	return g.Unmarshal(raw)
}

func (g *G1) Equal(a ecc.Point) bool {
	return g.inner.Equal(a.(*G1).inner)
}

func (g *G1) IsZero() bool {
	return g.inner.IsInfinity()
}

func (g *G1) SetZero() {
	g.inner.X.SetZero()
	g.inner.Y.SetZero()
}

func (g *G1) Set(a ecc.Point) {
	g.inner.X.Set(&a.(*G1).inner.X)
	g.inner.Y.Set(&a.(*G1).inner.Y)
}

func (g *G1) SetGenerator() {
	*g.inner = generator
}

func (g *G1) String() string {
	return fmt.Sprintf("%x", g.Marshal())
}

func (g *G1) Point() (*big.Int, *big.Int) {
	return g.inner.X.BigInt(new(big.Int)), g.inner.Y.BigInt(new(big.Int))
}

func (g *G1) setCoords(x, y *big.Int) error {
	if g.inner == nil {
		g.inner = new(bn254.G1Affine)
	}
	g.inner.X.SetBigInt(x)
	g.inner.Y.SetBigInt(y)
	if !g.inner.IsInfinity() && !g.inner.IsOnCurve() {
		return fmt.Errorf("point (%s, %s) is not on the curve", x, y)
	}
	return nil
}

// reduce returns scalar mod the group order, always non-negative.
func reduce(scalar *big.Int) *big.Int {
	if scalar.Sign() >= 0 && scalar.Cmp(fr.Modulus()) < 0 {
		return scalar
	}
	return new(big.Int).Mod(scalar, fr.Modulus())
}
