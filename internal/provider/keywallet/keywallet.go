// Package keywallet is an in-process wallet holding a single secp256k1 key. It
// signs locally and talks to nodes through ethclient.
package keywallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/provider"
	"github.com/pvzzle/wasi/internal/validate"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const codeInvalidParams = -32602

// Backend is the part of *ethclient.Client the wallet uses.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	Close()
}

// Dialer opens a Backend for one RPC URL.
type Dialer func(ctx context.Context, url string) (Backend, error)

// DialEthclient is the production Dialer.
func DialEthclient(ctx context.Context, url string) (Backend, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type Wallet struct {
	provider.Emitter

	key     *ecdsa.PrivateKey
	address common.Address
	dial    Dialer
	log     zerolog.Logger

	mu         sync.Mutex
	chains     map[string]provider.AddChainParams
	active     string
	activeID   *big.Int
	backend    Backend
	authorized bool
}

var _ provider.Provider = (*Wallet)(nil)

// New registers the initial chain and connects to it.
func New(ctx context.Context, key *ecdsa.PrivateKey, initial provider.AddChainParams, dial Dialer, log zerolog.Logger) (*Wallet, error) {
	if key == nil {
		return nil, errors.New("keywallet: nil key")
	}
	if dial == nil {
		dial = DialEthclient
	}

	w := &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		dial:    dial,
		log:     log.With().Str("component", "keywallet").Logger(),
		chains:  make(map[string]provider.AddChainParams),
	}

	if err := w.AddChain(ctx, initial); err != nil {
		return nil, err
	}
	return w, nil
}

// FromHex builds the key from a hex private key (with or without 0x).
func FromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func (w *Wallet) Address() common.Address { return w.address }

func (w *Wallet) IsWallet() bool { return w != nil && w.key != nil }

func (w *Wallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.backend != nil {
		w.backend.Close()
		w.backend = nil
	}
}

func (w *Wallet) RequestAccounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	first := !w.authorized
	w.authorized = true
	w.mu.Unlock()

	accs := []string{w.address.Hex()}
	if first {
		w.EmitAccountsChanged(accs)
	}
	return accs, nil
}

func (w *Wallet) Accounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.authorized {
		return []string{}, nil
	}
	return []string{w.address.Hex()}, nil
}

// Disconnect revokes account access, like a user disconnecting the site.
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	was := w.authorized
	w.authorized = false
	w.mu.Unlock()

	if was {
		w.EmitAccountsChanged([]string{})
	}
}

func (w *Wallet) Balance(ctx context.Context, address string) (*big.Int, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	return b.BalanceAt(ctx, common.HexToAddress(address), nil)
}

func (w *Wallet) ChainID(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == "" {
		return "", provider.NewError(provider.CodeDisconnected, "not connected to any chain")
	}
	return w.active, nil
}

// AddChain registers the chain and switches to it, the way browser wallets
// do after the user approves a new network.
func (w *Wallet) AddChain(ctx context.Context, params provider.AddChainParams) error {
	id, err := network.NormalizeChainID(params.ChainID)
	if err != nil {
		return provider.NewError(codeInvalidParams, "invalid chainId")
	}
	if len(params.RPCURLs) == 0 {
		return provider.NewError(codeInvalidParams, "rpcUrls must not be empty")
	}
	params.ChainID = id

	// a chain is only registered once it could be reached
	if err := w.activate(ctx, id, params); err != nil {
		return err
	}

	w.mu.Lock()
	w.chains[id] = params
	w.mu.Unlock()

	w.log.Info().Str("chain_id", id).Str("name", params.ChainName).Msg("chain registered")
	return nil
}

func (w *Wallet) SwitchChain(ctx context.Context, chainID string) error {
	id, err := network.NormalizeChainID(chainID)
	if err != nil {
		return provider.NewError(codeInvalidParams, "invalid chainId")
	}

	w.mu.Lock()
	params, ok := w.chains[id]
	w.mu.Unlock()

	if !ok {
		return provider.NewError(provider.CodeChainUnrecognized, fmt.Sprintf("Unrecognized chain ID %q", id))
	}
	return w.activate(ctx, id, params)
}

func (w *Wallet) activate(ctx context.Context, id string, params provider.AddChainParams) error {
	w.mu.Lock()
	same := w.active == id && w.backend != nil
	w.mu.Unlock()
	if same {
		return nil
	}

	want, _ := hexutil.DecodeBig(id)
	backend, err := w.connect(ctx, params.RPCURLs, want)
	if err != nil {
		return provider.NewError(provider.CodeDisconnected, err.Error())
	}

	w.mu.Lock()
	old := w.backend
	first := old == nil
	w.backend = backend
	w.active = id
	w.activeID = want
	w.mu.Unlock()

	if old != nil {
		old.Close()
	}

	w.log.Info().Str("chain_id", id).Msg("switched chain")
	if first {
		w.EmitConnect(id)
	} else {
		w.EmitChainChanged(id)
	}
	return nil
}

func (w *Wallet) connect(ctx context.Context, urls []string, want *big.Int) (Backend, error) {
	var lastErr error
	for _, url := range urls {
		b, err := w.dial(ctx, url)
		if err != nil {
			lastErr = err
			w.log.Warn().Err(err).Str("url", url).Msg("dial failed")
			continue
		}
		got, err := b.ChainID(ctx)
		if err != nil {
			b.Close()
			lastErr = err
			continue
		}
		if got.Cmp(want) != 0 {
			b.Close()
			lastErr = fmt.Errorf("%s serves chain %s, want %s", url, got, want)
			continue
		}
		return b, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no rpc urls")
	}
	return nil, lastErr
}

func (w *Wallet) PersonalSign(ctx context.Context, message, address string) (string, error) {
	if err := w.authorize(address); err != nil {
		return "", err
	}

	data := []byte(message)
	if strings.HasPrefix(message, "0x") {
		if b, err := hexutil.Decode(message); err == nil {
			data = b
		}
	}

	sig, err := crypto.Sign(accounts.TextHash(data), w.key)
	if err != nil {
		return "", provider.NewError(provider.CodeInternal, err.Error())
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func (w *Wallet) SendTransaction(ctx context.Context, p provider.TxParams) (string, error) {
	if err := w.authorize(p.From); err != nil {
		return "", err
	}
	if !validate.IsAddress(p.To) {
		return "", provider.NewError(codeInvalidParams, "invalid to address")
	}

	b, err := w.current()
	if err != nil {
		return "", err
	}
	w.mu.Lock()
	chainID := new(big.Int).Set(w.activeID)
	w.mu.Unlock()

	to := common.HexToAddress(p.To)
	value := new(big.Int)
	if p.Value != nil {
		value = p.Value.ToInt()
	}

	nonce, err := b.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", provider.NewError(provider.CodeInternal, err.Error())
	}

	var gasPrice *big.Int
	if p.GasPrice != nil {
		gasPrice = p.GasPrice.ToInt()
	} else if gasPrice, err = b.SuggestGasPrice(ctx); err != nil {
		return "", provider.NewError(provider.CodeInternal, err.Error())
	}

	var gas uint64
	if p.Gas != nil {
		gas = uint64(*p.Gas)
	} else {
		gas, err = b.EstimateGas(ctx, ethereum.CallMsg{From: w.address, To: &to, Value: value, Data: p.Data})
		if err != nil {
			return "", provider.NewError(provider.CodeInternal, err.Error())
		}
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     p.Data,
	})
	signed, err := types.SignTx(unsigned, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return "", provider.NewError(provider.CodeInternal, err.Error())
	}

	if err := b.SendTransaction(ctx, signed); err != nil {
		return "", provider.NewError(provider.CodeInternal, err.Error())
	}

	w.log.Info().Str("hash", signed.Hash().Hex()).Str("to", to.Hex()).Str("value_wei", value.String()).Msg("transaction submitted")
	return signed.Hash().Hex(), nil
}

func (w *Wallet) TransactionReceipt(ctx context.Context, hash string) (*provider.Receipt, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	r, err := b.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := &provider.Receipt{
		TxHash:      r.TxHash.Hex(),
		BlockNumber: (*hexutil.Big)(r.BlockNumber),
		GasUsed:     hexutil.Uint64(r.GasUsed),
		Status:      hexutil.Uint64(r.Status),
	}
	return out, nil
}

func (w *Wallet) TransactionByHash(ctx context.Context, hash string) (*provider.TxInfo, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	h := common.HexToHash(hash)
	tx, isPending, err := b.TransactionByHash(ctx, h)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	signer := types.LatestSignerForChainID(w.activeID)
	w.mu.Unlock()

	info := &provider.TxInfo{
		Hash:     tx.Hash().Hex(),
		Value:    (*hexutil.Big)(tx.Value()),
		Nonce:    hexutil.Uint64(tx.Nonce()),
		Gas:      hexutil.Uint64(tx.Gas()),
		GasPrice: (*hexutil.Big)(tx.GasPrice()),
	}
	if from, err := types.Sender(signer, tx); err == nil {
		info.From = from.Hex()
	}
	if to := tx.To(); to != nil {
		s := to.Hex()
		info.To = &s
	}

	if !isPending {
		if r, rerr := b.TransactionReceipt(ctx, h); rerr == nil && r != nil {
			info.BlockNumber = (*hexutil.Big)(r.BlockNumber)
		}
	}
	return info, nil
}

func (w *Wallet) EstimateGas(ctx context.Context, p provider.TxParams) (*big.Int, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	msg := ethereum.CallMsg{From: common.HexToAddress(p.From), Data: p.Data}
	if p.To != "" {
		to := common.HexToAddress(p.To)
		msg.To = &to
	}
	if p.Value != nil {
		msg.Value = p.Value.ToInt()
	}
	gas, err := b.EstimateGas(ctx, msg)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(gas), nil
}

func (w *Wallet) GasPrice(ctx context.Context) (*big.Int, error) {
	b, err := w.current()
	if err != nil {
		return nil, err
	}
	return b.SuggestGasPrice(ctx)
}

func (w *Wallet) current() (Backend, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.backend == nil {
		return nil, provider.NewError(provider.CodeDisconnected, "not connected to any chain")
	}
	return w.backend, nil
}

func (w *Wallet) authorize(address string) error {
	w.mu.Lock()
	ok := w.authorized
	w.mu.Unlock()

	if !ok || !validate.SameAddress(address, w.address.Hex()) {
		return provider.NewError(provider.CodeUnauthorized, "The requested account has not been authorized by the user.")
	}
	return nil
}
