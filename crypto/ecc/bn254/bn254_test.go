package bn254

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
)

func TestGroupLaw(t *testing.T) {
	c := qt.New(t)

	a := NewG1()
	a.ScalarBaseMult(big.NewInt(5))
	b := NewG1()
	b.ScalarBaseMult(big.NewInt(7))

	sum := NewG1()
	sum.Add(a, b)
	expected := NewG1()
	expected.ScalarBaseMult(big.NewInt(12))
	c.Assert(sum.Equal(expected), qt.IsTrue)

	// a + (-a) is the identity
	neg := NewG1()
	neg.Neg(a)
	zero := NewG1()
	zero.Add(a, neg)
	c.Assert(zero.IsZero(), qt.IsTrue)

	// the receiver can be an operand
	a.Add(a, a)
	expected.ScalarBaseMult(big.NewInt(10))
	c.Assert(a.Equal(expected), qt.IsTrue)

	// negative scalars are reduced mod the order
	m := NewG1()
	m.ScalarBaseMult(big.NewInt(-1))
	minusG := NewG1()
	minusG.Neg(Generator())
	c.Assert(m.Equal(minusG), qt.IsTrue)
}

func TestMarshalUnmarshal(t *testing.T) {
	c := qt.New(t)

	p := NewG1()
	p.ScalarBaseMult(big.NewInt(123456789))
	buf := p.Marshal()
	c.Assert(buf, qt.HasLen, PointSize)

	q := NewG1()
	c.Assert(q.Unmarshal(buf), qt.IsNil)
	c.Assert(q.Equal(p), qt.IsTrue)

	// identity survives the round trip
	z := NewG1()
	c.Assert(q.Unmarshal(z.Marshal()), qt.IsNil)
	c.Assert(q.IsZero(), qt.IsTrue)

	c.Assert(q.Unmarshal(buf[:10]), qt.ErrorMatches, "invalid point length.*")
}

func TestJSONAndCBOR(t *testing.T) {
	c := qt.New(t)

	p := NewG1()
	p.ScalarBaseMult(big.NewInt(42))

	data, err := json.Marshal(p)
	c.Assert(err, qt.IsNil)
	fromJSON := NewG1()
	c.Assert(json.Unmarshal(data, fromJSON), qt.IsNil)
	c.Assert(fromJSON.Equal(p), qt.IsTrue)

	data, err = cbor.Marshal(p)
	c.Assert(err, qt.IsNil)
	fromCBOR := NewG1()
	c.Assert(cbor.Unmarshal(data, fromCBOR), qt.IsNil)
	c.Assert(fromCBOR.Equal(p), qt.IsTrue)

	c.Assert(json.Unmarshal([]byte(`["1","3"]`), NewG1()), qt.ErrorMatches, ".*not on the curve")
}
