// Package wallet is the boundary with the wallet holding the user account.
// The client only needs to know whether a wallet is connected, its address
// and a way to have transactions signed.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fundshadow/fundshadow-client/log"
	"github.com/fundshadow/fundshadow-client/types"
	"github.com/fundshadow/fundshadow-client/util"
)

// Wallet is a connected account able to sign transactions. SignTx returns
// types.ErrSigningDeclined when the user refuses to sign.
type Wallet interface {
	Connected() bool
	Address() common.Address
	SignTx(ctx context.Context, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// ApprovalFunc is asked to approve every transaction before it is signed.
// It may block until the user decides.
type ApprovalFunc func(ctx context.Context, tx *ethtypes.Transaction) (bool, error)

// KeyWallet is a Wallet backed by a private key held in memory.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address

	mu        sync.RWMutex
	connected bool
	approve   ApprovalFunc
}

// NewKeyWallet returns a connected wallet for the hex encoded private key,
// with or without the 0x prefix.
func NewKeyWallet(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(util.TrimHex(hexKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return newKeyWallet(key), nil
}

// GenerateKeyWallet returns a connected wallet for a new random key.
func GenerateKeyWallet() (*KeyWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newKeyWallet(key), nil
}

func newKeyWallet(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		connected: true,
	}
}

// SetApproval sets the function asked before every signature. A nil
// function approves everything.
func (w *KeyWallet) SetApproval(fn ApprovalFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.approve = fn
}

// Connect marks the wallet as connected.
func (w *KeyWallet) Connect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = true
	log.Infow("wallet connected", "address", w.address.Hex())
}

// Disconnect marks the wallet as disconnected, so no write can be signed.
func (w *KeyWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	log.Infow("wallet disconnected", "address", w.address.Hex())
}

func (w *KeyWallet) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *KeyWallet) Address() common.Address {
	return w.address
}

// SignTx asks for approval and signs tx for chainID.
func (w *KeyWallet) SignTx(ctx context.Context, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	w.mu.RLock()
	connected, approve := w.connected, w.approve
	w.mu.RUnlock()
	if !connected {
		return nil, types.ErrWalletDisconnected
	}
	if approve != nil {
		ok, err := approve(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("failed to get approval: %w", err)
		}
		if !ok {
			log.Infow("transaction signature declined", "address", w.address.Hex(), "nonce", tx.Nonce())
			return nil, types.ErrSigningDeclined
		}
	}
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}
