package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	qt "github.com/frankban/quicktest"
	"github.com/fundshadow/fundshadow-client/types"
)

const testKey = "0xb71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func testTx() *ethtypes.Transaction {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(1337),
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(10),
		Gas:       21000,
		To:        &to,
	})
}

func TestKeyWalletSign(t *testing.T) {
	c := qt.New(t)

	w, err := NewKeyWallet(testKey)
	c.Assert(err, qt.IsNil)
	c.Assert(w.Connected(), qt.IsTrue)

	chainID := big.NewInt(1337)
	signed, err := w.SignTx(context.Background(), testTx(), chainID)
	c.Assert(err, qt.IsNil)
	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), signed)
	c.Assert(err, qt.IsNil)
	c.Assert(from, qt.Equals, w.Address())

	_, err = NewKeyWallet("not a key")
	c.Assert(err, qt.ErrorMatches, "failed to parse private key.*")
}

func TestKeyWalletDisconnected(t *testing.T) {
	c := qt.New(t)

	w, err := GenerateKeyWallet()
	c.Assert(err, qt.IsNil)
	w.Disconnect()
	c.Assert(w.Connected(), qt.IsFalse)
	_, err = w.SignTx(context.Background(), testTx(), big.NewInt(1337))
	c.Assert(err, qt.ErrorIs, types.ErrWalletDisconnected)

	w.Connect()
	_, err = w.SignTx(context.Background(), testTx(), big.NewInt(1337))
	c.Assert(err, qt.IsNil)
}

func TestKeyWalletApproval(t *testing.T) {
	c := qt.New(t)

	w, err := GenerateKeyWallet()
	c.Assert(err, qt.IsNil)

	asked := 0
	w.SetApproval(func(_ context.Context, tx *ethtypes.Transaction) (bool, error) {
		asked++
		return tx.Nonce() != 3, nil
	})
	_, err = w.SignTx(context.Background(), testTx(), big.NewInt(1337))
	c.Assert(err, qt.ErrorIs, types.ErrSigningDeclined)
	c.Assert(asked, qt.Equals, 1)

	w.SetApproval(func(context.Context, *ethtypes.Transaction) (bool, error) {
		return false, errors.New("prompt closed")
	})
	_, err = w.SignTx(context.Background(), testTx(), big.NewInt(1337))
	c.Assert(err, qt.ErrorMatches, "failed to get approval: prompt closed")
	c.Assert(errors.Is(err, types.ErrSigningDeclined), qt.IsFalse)

	w.SetApproval(nil)
	_, err = w.SignTx(context.Background(), testTx(), big.NewInt(1337))
	c.Assert(err, qt.IsNil)
}
