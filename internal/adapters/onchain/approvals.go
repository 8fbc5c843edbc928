package onchain

// approvals.go — allowances on-chain que el CLOB necesita antes de operar.
//
// Comprar requiere que los exchanges puedan mover USDC.e (ERC20 approve) y
// que puedan transferir los tokens condicionales (ERC1155 setApprovalForAll
// sobre el contrato CTF). Sin esto el CLOB rechaza las órdenes.

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	polygonChainID = int64(137)

	// USDC.e collateral on Polygon
	usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	// CTF contract — holds conditional tokens (ERC1155)
	ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	normalExchange  = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	negRiskExchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	negRiskAdapter  = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"

	approvalGasLimit       = uint64(80_000)
	gasPriceUpdateInterval = 5 * time.Minute
	receiptTimeout         = 2 * time.Minute
)

// Spenders son los contratos que operan en nombre de la wallet.
var Spenders = []string{normalExchange, negRiskExchange, negRiskAdapter}

var (
	erc1155ABI = mustABI(`[
		{"name":"setApprovalForAll","type":"function",
		 "inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]},
		{"name":"isApprovedForAll","type":"function",
		 "inputs":[{"name":"account","type":"address"},{"name":"operator","type":"address"}],
		 "outputs":[{"name":"","type":"bool"}]}
	]`)
	erc20ABI = mustABI(`[
		{"name":"approve","type":"function",
		 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
		 "outputs":[{"name":"","type":"bool"}]},
		{"name":"allowance","type":"function",
		 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
		 "outputs":[{"name":"","type":"uint256"}]}
	]`)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("abi parse: " + err.Error())
	}
	return parsed
}

// Chain es el subconjunto de ethclient.Client que usa el Approver.
type Chain interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Approval es el estado de un permiso para un spender.
type Approval struct {
	Spender   string
	Kind      string // erc20 | erc1155
	Approved  bool
	Allowance float64 // USDC.e, solo erc20
	TxHash    string  // si se envió una transacción
}

// Approver revisa y concede las allowances de la wallet de trading.
type Approver struct {
	chain   Chain
	key     *ecdsa.PrivateKey
	address common.Address
	amount  *big.Int // allowance ERC20 a conceder, en unidades de 6 decimales
	poll    time.Duration

	mu           sync.Mutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
}

// NewApprover conecta con el RPC de Polygon. privateKeyHex admite prefijo 0x.
func NewApprover(rpcURL, privateKeyHex string) (*Approver, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial rpc %s: %w", rpcURL, err)
	}
	return NewApproverWithChain(client, privateKeyHex)
}

// NewApproverWithChain usa un Chain ya construido (tests).
func NewApproverWithChain(chain Chain, privateKeyHex string) (*Approver, error) {
	pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("onchain: decode private key: %w", err)
	}
	key, err := crypto.ToECDSA(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("onchain: invalid private key: %w", err)
	}
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	return &Approver{
		chain:   chain,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		amount:  maxUint256,
		poll:    3 * time.Second,
	}, nil
}

// WithAllowance limita la allowance ERC20 concedida a usdc. 0 = ilimitada.
func (a *Approver) WithAllowance(usdc float64) *Approver {
	if usdc > 0 {
		a.amount = big.NewInt(int64(usdc * 1_000_000))
	}
	return a
}

// WithPollInterval fija cada cuánto se consulta el receipt (tests).
func (a *Approver) WithPollInterval(d time.Duration) *Approver {
	a.poll = d
	return a
}

// Address devuelve la wallet.
func (a *Approver) Address() string { return a.address.Hex() }

// Check devuelve el estado de todas las allowances sin enviar nada.
func (a *Approver) Check(ctx context.Context) ([]Approval, error) {
	out := make([]Approval, 0, 2*len(Spenders))
	for _, sp := range Spenders {
		approved, err := a.isApprovedForAll(ctx, common.HexToAddress(sp))
		if err != nil {
			return nil, fmt.Errorf("onchain.Check: ERC1155 approval for %s: %w", sp, err)
		}
		out = append(out, Approval{Spender: sp, Kind: "erc1155", Approved: approved})
	}
	for _, sp := range Spenders {
		allowance, err := a.erc20Allowance(ctx, common.HexToAddress(sp))
		if err != nil {
			return nil, fmt.Errorf("onchain.Check: USDC.e allowance for %s: %w", sp, err)
		}
		out = append(out, Approval{
			Spender:   sp,
			Kind:      "erc20",
			Approved:  allowance.Cmp(a.amount) >= 0,
			Allowance: toUSDC(allowance),
		})
	}
	return out, nil
}

// EnsureApprovals concede lo que falte y devuelve el estado final.
func (a *Approver) EnsureApprovals(ctx context.Context) ([]Approval, error) {
	status, err := a.Check(ctx)
	if err != nil {
		return nil, err
	}
	for i := range status {
		st := &status[i]
		if st.Approved {
			slog.Debug("onchain: approval already set", "kind", st.Kind, "spender", st.Spender)
			continue
		}

		spender := common.HexToAddress(st.Spender)
		var (
			to   common.Address
			data []byte
		)
		switch st.Kind {
		case "erc1155":
			to = common.HexToAddress(ctfAddress)
			data, err = erc1155ABI.Pack("setApprovalForAll", spender, true)
		default:
			to = common.HexToAddress(usdcEAddress)
			data, err = erc20ABI.Pack("approve", spender, a.amount)
		}
		if err != nil {
			return status, fmt.Errorf("onchain.EnsureApprovals: pack: %w", err)
		}

		slog.Info("onchain: sending approval", "kind", st.Kind, "spender", st.Spender)
		hash, err := a.send(ctx, to, data)
		if err != nil {
			return status, fmt.Errorf("onchain.EnsureApprovals: %s %s: %w", st.Kind, st.Spender, err)
		}
		st.Approved = true
		st.TxHash = hash
		if st.Kind == "erc20" {
			st.Allowance = toUSDC(a.amount)
		}
		slog.Info("onchain: approval set", "kind", st.Kind, "spender", st.Spender, "tx", hash)
	}
	return status, nil
}

func (a *Approver) isApprovedForAll(ctx context.Context, operator common.Address) (bool, error) {
	callData, err := erc1155ABI.Pack("isApprovedForAll", a.address, operator)
	if err != nil {
		return false, err
	}
	ctf := common.HexToAddress(ctfAddress)
	result, err := a.chain.CallContract(ctx, ethereum.CallMsg{To: &ctf, Data: callData}, nil)
	if err != nil {
		return false, err
	}
	vals, err := erc1155ABI.Unpack("isApprovedForAll", result)
	if err != nil {
		return false, err
	}
	if len(vals) == 0 {
		return false, fmt.Errorf("empty isApprovedForAll result")
	}
	approved, _ := vals[0].(bool)
	return approved, nil
}

func (a *Approver) erc20Allowance(ctx context.Context, spender common.Address) (*big.Int, error) {
	callData, err := erc20ABI.Pack("allowance", a.address, spender)
	if err != nil {
		return nil, err
	}
	token := common.HexToAddress(usdcEAddress)
	result, err := a.chain.CallContract(ctx, ethereum.CallMsg{To: &token, Data: callData}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := erc20ABI.Unpack("allowance", result)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return big.NewInt(0), nil
	}
	allowance, ok := vals[0].(*big.Int)
	if !ok {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

// send firma y envía una transacción y espera a que se mine.
func (a *Approver) send(ctx context.Context, to common.Address, data []byte) (string, error) {
	nonce, err := a.chain.PendingNonceAt(ctx, a.address)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	gasPrice := a.gasPrice(ctx)

	tx := types.NewTransaction(nonce, to, big.NewInt(0), approvalGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(polygonChainID)), a.key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if err := a.chain.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}

	receiptCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()
	receipt, err := a.waitForReceipt(receiptCtx, signed.Hash())
	if err != nil {
		return signed.Hash().Hex(), fmt.Errorf("wait receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return signed.Hash().Hex(), fmt.Errorf("tx %s reverted", signed.Hash().Hex())
	}
	return signed.Hash().Hex(), nil
}

// gasPrice devuelve el gas price sugerido +10%, cacheado unos minutos.
func (a *Approver) gasPrice(ctx context.Context) *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cachedGasWei != nil && time.Since(a.gasUpdatedAt) < gasPriceUpdateInterval {
		return a.cachedGasWei
	}

	price, err := a.chain.SuggestGasPrice(ctx)
	if err != nil {
		if a.cachedGasWei != nil {
			return a.cachedGasWei
		}
		return big.NewInt(30_000_000_000) // 30 gwei fallback
	}
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))

	a.cachedGasWei = buffered
	a.gasUpdatedAt = time.Now()
	return buffered
}

func (a *Approver) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := a.chain.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}

func toUSDC(units *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(units), big.NewFloat(1e6)).Float64()
	return f
}
