package types

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
)

func TestBigIntEncoding(t *testing.T) {
	c := qt.New(t)
	wei, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	c.Assert(ok, qt.IsTrue)

	for _, v := range []*BigInt{NewInt(0), NewInt(1234567890), NewBigInt(wei)} {
		raised := struct {
			Raised *BigInt `json:"raised" cbor:"raised"`
		}{v}

		data, err := json.Marshal(raised)
		c.Assert(err, qt.IsNil)
		c.Assert(string(data), qt.Equals, `{"raised":"`+v.String()+`"}`)
		fromJSON := raised
		fromJSON.Raised = nil
		c.Assert(json.Unmarshal(data, &fromJSON), qt.IsNil)
		c.Assert(fromJSON.Raised.Cmp(v), qt.Equals, 0)

		data, err = cbor.Marshal(raised)
		c.Assert(err, qt.IsNil)
		fromCBOR := raised
		fromCBOR.Raised = nil
		c.Assert(cbor.Unmarshal(data, &fromCBOR), qt.IsNil)
		c.Assert(fromCBOR.Raised.Cmp(v), qt.Equals, 0)
	}
}

func TestBigIntHelpers(t *testing.T) {
	c := qt.New(t)
	var decoded BigInt
	c.Assert(json.Unmarshal([]byte(`"12x"`), &decoded), qt.ErrorMatches, ".*invalid decimal integer.*")
	c.Assert(NewBigInt(nil).String(), qt.Equals, "0")
	c.Assert(new(BigInt).Add(NewInt(2), NewInt(3)).Cmp(NewInt(5)), qt.Equals, 0)
}
