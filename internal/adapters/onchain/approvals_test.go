package onchain

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChain simula los contratos CTF y USDC.e en memoria.
type fakeChain struct {
	mu        sync.Mutex
	approved  map[common.Address]bool
	allowance map[common.Address]*big.Int
	sent      []*types.Transaction
	revert    bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{approved: map[common.Address]bool{}, allowance: map[common.Address]*big.Int{}}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	isApproved := erc1155ABI.Methods["isApprovedForAll"]
	allowance := erc20ABI.Methods["allowance"]
	switch {
	case bytes.Equal(msg.Data[:4], isApproved.ID):
		args, err := isApproved.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		return isApproved.Outputs.Pack(f.approved[args[1].(common.Address)])
	case bytes.Equal(msg.Data[:4], allowance.ID):
		args, err := allowance.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		v := f.allowance[args[1].(common.Address)]
		if v == nil {
			v = big.NewInt(0)
		}
		return allowance.Outputs.Pack(v)
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(100_000_000_000), nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	if f.revert {
		return nil
	}

	setApproval := erc1155ABI.Methods["setApprovalForAll"]
	approve := erc20ABI.Methods["approve"]
	data := tx.Data()
	switch {
	case bytes.Equal(data[:4], setApproval.ID):
		args, err := setApproval.Inputs.Unpack(data[4:])
		if err != nil {
			return err
		}
		f.approved[args[0].(common.Address)] = args[1].(bool)
	case bytes.Equal(data[:4], approve.ID):
		args, err := approve.Inputs.Unpack(data[4:])
		if err != nil {
			return err
		}
		f.allowance[args[0].(common.Address)] = args[1].(*big.Int)
	}
	return nil
}

func (f *fakeChain) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	status := types.ReceiptStatusSuccessful
	if f.revert {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status}, nil
}

func newTestApprover(t *testing.T, chain Chain) *Approver {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	a, err := NewApproverWithChain(chain, "0x"+hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	return a.WithPollInterval(time.Millisecond)
}

func TestCheck_ReportsMissingApprovals(t *testing.T) {
	chain := newFakeChain()
	chain.approved[common.HexToAddress(normalExchange)] = true
	chain.allowance[common.HexToAddress(negRiskExchange)] = big.NewInt(250_000_000)

	a := newTestApprover(t, chain).WithAllowance(100)
	status, err := a.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 6)

	byKey := map[string]Approval{}
	for _, st := range status {
		byKey[st.Kind+":"+st.Spender] = st
	}
	assert.True(t, byKey["erc1155:"+normalExchange].Approved)
	assert.False(t, byKey["erc1155:"+negRiskAdapter].Approved)
	assert.True(t, byKey["erc20:"+negRiskExchange].Approved)
	assert.InDelta(t, 250.0, byKey["erc20:"+negRiskExchange].Allowance, 1e-9)
	assert.False(t, byKey["erc20:"+normalExchange].Approved)
	assert.Empty(t, chain.sent)
}

func TestEnsureApprovals_SendsOnlyWhatIsMissing(t *testing.T) {
	chain := newFakeChain()
	chain.approved[common.HexToAddress(normalExchange)] = true

	a := newTestApprover(t, chain).WithAllowance(100)
	status, err := a.EnsureApprovals(context.Background())
	require.NoError(t, err)

	assert.Len(t, chain.sent, 5)
	for _, st := range status {
		assert.True(t, st.Approved, st.Kind+" "+st.Spender)
	}
	assert.Equal(t, big.NewInt(100_000_000), chain.allowance[common.HexToAddress(negRiskAdapter)])

	// segunda pasada: nada que enviar
	_, err = a.EnsureApprovals(context.Background())
	require.NoError(t, err)
	assert.Len(t, chain.sent, 5)
}

func TestEnsureApprovals_RevertedTx(t *testing.T) {
	chain := newFakeChain()
	chain.revert = true

	a := newTestApprover(t, chain)
	_, err := a.EnsureApprovals(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
	assert.Len(t, chain.sent, 1)
}

func TestNewApprover_RejectsBadKey(t *testing.T) {
	_, err := NewApproverWithChain(newFakeChain(), "not-hex")
	require.Error(t, err)
}
