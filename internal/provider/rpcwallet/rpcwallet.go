// Package rpcwallet adapts an EIP-1193 style JSON-RPC signer (a wallet daemon,
// a node with unlocked accounts, a signing proxy) to provider.Provider.
package rpcwallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/pvzzle/wasi/internal/provider"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
)

// Caller is the part of *rpc.Client the adapter uses.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type Config struct {
	// WatchInterval is how often Watch polls accounts and chain id.
	WatchInterval time.Duration
}

type Wallet struct {
	provider.Emitter

	client Caller
	closer func()
	cfg    Config
	log    zerolog.Logger

	mu        sync.Mutex
	watched   bool
	connected bool
	accounts  []string
	chainID   string
}

var _ provider.Provider = (*Wallet)(nil)

// Dial connects to a JSON-RPC endpoint (http, ws or ipc).
func Dial(ctx context.Context, url string, cfg Config, log zerolog.Logger) (*Wallet, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet rpc: %w", err)
	}
	w := New(c, cfg, log)
	w.closer = c.Close
	return w, nil
}

func New(c Caller, cfg Config, log zerolog.Logger) *Wallet {
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = 2 * time.Second
	}
	return &Wallet{
		client: c,
		cfg:    cfg,
		log:    log.With().Str("component", "rpcwallet").Logger(),
	}
}

func (w *Wallet) Close() {
	if w.closer != nil {
		w.closer()
	}
}

func (w *Wallet) IsWallet() bool { return w != nil && w.client != nil }

func (w *Wallet) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := w.call(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (w *Wallet) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := w.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (w *Wallet) Balance(ctx context.Context, address string) (*big.Int, error) {
	var res hexutil.Big
	if err := w.call(ctx, &res, "eth_getBalance", address, "latest"); err != nil {
		return nil, err
	}
	return (*big.Int)(&res), nil
}

func (w *Wallet) ChainID(ctx context.Context) (string, error) {
	var res hexutil.Big
	if err := w.call(ctx, &res, "eth_chainId"); err != nil {
		return "", err
	}
	return hexutil.EncodeBig((*big.Int)(&res)), nil
}

func (w *Wallet) SwitchChain(ctx context.Context, chainID string) error {
	return w.call(ctx, nil, "wallet_switchEthereumChain", map[string]string{"chainId": chainID})
}

func (w *Wallet) AddChain(ctx context.Context, params provider.AddChainParams) error {
	return w.call(ctx, nil, "wallet_addEthereumChain", params)
}

func (w *Wallet) PersonalSign(ctx context.Context, message, address string) (string, error) {
	var sig string
	if err := w.call(ctx, &sig, "personal_sign", message, address); err != nil {
		return "", err
	}
	return sig, nil
}

func (w *Wallet) SendTransaction(ctx context.Context, tx provider.TxParams) (string, error) {
	var hash string
	if err := w.call(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return "", err
	}
	return hash, nil
}

func (w *Wallet) TransactionReceipt(ctx context.Context, hash string) (*provider.Receipt, error) {
	var r *provider.Receipt
	if err := w.call(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return r, nil
}

func (w *Wallet) TransactionByHash(ctx context.Context, hash string) (*provider.TxInfo, error) {
	var tx *provider.TxInfo
	if err := w.call(ctx, &tx, "eth_getTransactionByHash", hash); err != nil {
		return nil, err
	}
	return tx, nil
}

func (w *Wallet) EstimateGas(ctx context.Context, tx provider.TxParams) (*big.Int, error) {
	var gas hexutil.Uint64
	if err := w.call(ctx, &gas, "eth_estimateGas", tx); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(uint64(gas)), nil
}

func (w *Wallet) GasPrice(ctx context.Context) (*big.Int, error) {
	var res hexutil.Big
	if err := w.call(ctx, &res, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return (*big.Int)(&res), nil
}

func (w *Wallet) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	err := w.client.CallContext(ctx, result, method, args...)
	if err == nil {
		return nil
	}

	var rerr rpc.Error
	if errors.As(err, &rerr) {
		return provider.NewError(rerr.ErrorCode(), rerr.Error())
	}
	return fmt.Errorf("%s: %w", method, err)
}

// Watch polls the endpoint and turns observed changes into provider events
// until ctx is done. JSON-RPC has no push channel for accountsChanged and
// chainChanged, so polling stands in for it.
func (w *Wallet) Watch(ctx context.Context) {
	w.mu.Lock()
	if w.watched {
		w.mu.Unlock()
		return
	}
	w.watched = true
	w.mu.Unlock()

	t := time.NewTicker(w.cfg.WatchInterval)
	defer t.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.poll(ctx)
		}
	}
}

func (w *Wallet) poll(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, w.cfg.WatchInterval)
	defer cancel()

	chainID, err := w.ChainID(cctx)
	if err != nil {
		w.mu.Lock()
		wasConnected := w.connected
		w.connected = false
		w.mu.Unlock()

		if wasConnected {
			w.log.Warn().Err(err).Msg("wallet endpoint unreachable")
			w.EmitDisconnect(err)
		}
		return
	}

	accounts, err := w.Accounts(cctx)
	if err != nil {
		w.log.Debug().Err(err).Msg("eth_accounts failed")
		return
	}

	w.mu.Lock()
	wasConnected := w.connected
	prevChain := w.chainID
	prevAccounts := w.accounts
	w.connected = true
	w.chainID = chainID
	w.accounts = accounts
	w.mu.Unlock()

	if !wasConnected {
		w.EmitConnect(chainID)
	}
	if prevChain != "" && prevChain != chainID {
		w.log.Info().Str("from", prevChain).Str("to", chainID).Msg("chain changed")
		w.EmitChainChanged(chainID)
	}
	if wasConnected && !slices.Equal(prevAccounts, accounts) {
		w.EmitAccountsChanged(accounts)
	}
}
