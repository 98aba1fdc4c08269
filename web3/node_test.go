package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

const testChainID = 1337

var testAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// callFunc serves a contract method. Writes only return an error, used as
// the result of the gas estimation.
type callFunc func(args []any) ([]any, error)

// fakeNode is an ethereum node serving the contract methods from Go
// functions.
type fakeNode struct {
	mu       sync.Mutex
	calls    map[string]callFunc
	sendErr  error
	sent     []*ethtypes.Transaction
	receipts map[common.Hash]*ethtypes.Receipt
	logs     []ethtypes.Log
	head     uint64
}

var _ Backend = (*fakeNode)(nil)

func newFakeNode() *fakeNode {
	return &fakeNode{
		calls:    make(map[string]callFunc),
		receipts: make(map[common.Hash]*ethtypes.Receipt),
		head:     100,
	}
}

func (n *fakeNode) handle(method string, fn callFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[method] = fn
}

func (n *fakeNode) serve(data []byte) (string, []any, error) {
	if len(data) < 4 {
		return "", nil, errors.New("execution reverted")
	}
	method, err := parsedABI.MethodById(data[:4])
	if err != nil {
		return "", nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, err
	}
	n.mu.Lock()
	fn := n.calls[method.Name]
	n.mu.Unlock()
	if fn == nil {
		return method.Name, nil, nil
	}
	out, err := fn(args)
	return method.Name, out, err
}

func (n *fakeNode) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	name, out, err := n.serve(msg.Data)
	if err != nil {
		return nil, err
	}
	return parsedABI.Methods[name].Outputs.Pack(out...)
}

func (n *fakeNode) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if _, _, err := n.serve(msg.Data); err != nil {
		return 0, err
	}
	return 50000, nil
}

func (n *fakeNode) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, tx)
	return nil
}

// mine stores the receipt of hash.
func (n *fakeNode) mine(hash common.Hash, success bool, logs ...*ethtypes.Log) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.head++
	receipt := &ethtypes.Receipt{
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(n.head),
		Logs:        logs,
	}
	if success {
		receipt.Status = ethtypes.ReceiptStatusSuccessful
	}
	n.receipts[hash] = receipt
}

func (n *fakeNode) lastSent() *ethtypes.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return nil
	}
	return n.sent[len(n.sent)-1]
}

func (n *fakeNode) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{1}, nil
}

func (n *fakeNode) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{1}, nil
}

func (n *fakeNode) HeaderByNumber(context.Context, *big.Int) (*ethtypes.Header, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &ethtypes.Header{Number: new(big.Int).SetUint64(n.head), BaseFee: big.NewInt(1)}, nil
}

func (n *fakeNode) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return uint64(len(n.sent)), nil
}

func (n *fakeNode) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (n *fakeNode) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (n *fakeNode) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var logs []ethtypes.Log
	for _, l := range n.logs {
		if q.FromBlock == nil || l.BlockNumber >= q.FromBlock.Uint64() {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

func (n *fakeNode) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- ethtypes.Log) (ethereum.Subscription, error) {
	return nil, errors.New("notifications not supported")
}

func (n *fakeNode) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if r, ok := n.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (n *fakeNode) TransactionByHash(_ context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, tx := range n.sent {
		if tx.Hash() == hash {
			return tx, false, nil
		}
	}
	return nil, false, ethereum.NotFound
}

func (n *fakeNode) BlockNumber(context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head, nil
}

// eventLog builds a contract log for event with the given indexed values
// and non indexed data values.
func eventLog(event string, block uint64, index uint, indexed []common.Hash, data ...any) *ethtypes.Log {
	ev := parsedABI.Events[event]
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(fmt.Sprintf("failed to pack %s: %v", event, err))
	}
	return &ethtypes.Log{
		Address:     testAddress,
		Topics:      append([]common.Hash{ev.ID}, indexed...),
		Data:        packed,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
		Index:       index,
	}
}

func idTopic(id uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(id))
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
