// Package bridge exposes the wallet operations the rest of the service uses.
// It owns the network table, normalizes provider results and turns provider
// failures into *Error values with a Kind.
package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/provider"
	"github.com/pvzzle/wasi/internal/units"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

// Network is the result of CurrentNetwork.
type Network struct {
	ChainID     string `json:"chainId"`
	Name        string `json:"networkName"`
	Currency    string `json:"currency"`
	IsTestnet   bool   `json:"isTestnet"`
	IsSupported bool   `json:"isSupported"`
}

type Bridge struct {
	p     provider.Provider
	table *network.Table
	log   zerolog.Logger
}

// Detect reports whether p is present and identifies as a wallet.
func Detect(p provider.Provider) bool {
	return p != nil && p.IsWallet()
}

// New fails with ErrUnavailable when p does not pass Detect.
func New(p provider.Provider, table *network.Table, log zerolog.Logger) (*Bridge, error) {
	if !Detect(p) {
		return nil, ErrUnavailable
	}
	if table == nil {
		table = network.Default()
	}
	return &Bridge{
		p:     p,
		table: table,
		log:   log.With().Str("component", "bridge").Logger(),
	}, nil
}

func (b *Bridge) Table() *network.Table { return b.table }

// Connect asks the wallet for account access and returns the first account.
func (b *Bridge) Connect(ctx context.Context) (string, error) {
	accounts, err := b.p.RequestAccounts(ctx)
	if err != nil {
		e := translate("connect", err, connectMessages)
		b.log.Warn().Err(err).Str("kind", e.Kind.String()).Msg("connect failed")
		return "", e
	}
	if len(accounts) == 0 {
		return "", &Error{
			Op:     "connect",
			Kind:   KindUnclassified,
			Reason: "No accounts found. Please make sure the wallet is unlocked.",
		}
	}

	b.log.Info().Str("address", accounts[0]).Msg("wallet connected")
	return accounts[0], nil
}

// ConnectedAccounts never fails; errors are logged and yield nil.
func (b *Bridge) ConnectedAccounts(ctx context.Context) []string {
	accounts, err := b.p.Accounts(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("get connected accounts")
		return nil
	}
	return accounts
}

// Balance returns the native balance of address with six decimals.
func (b *Bridge) Balance(ctx context.Context, address string) (string, error) {
	wei, err := b.p.Balance(ctx, address)
	if err != nil {
		b.log.Warn().Err(err).Str("address", address).Msg("get balance")
		return "0", translate("balance", err, balanceMessages)
	}
	return units.FromWei(wei), nil
}

// CurrentNetwork resolves the wallet's chain id against the table. Unknown
// chains are reported as unsupported, not as an error.
func (b *Bridge) CurrentNetwork(ctx context.Context) (Network, error) {
	id, err := b.p.ChainID(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("get chain id")
		return Network{Name: "Unknown", Currency: "ETH"}, translate("network", err, networkMessages)
	}

	if norm, nerr := network.NormalizeChainID(id); nerr == nil {
		id = norm
	}

	d, ok := b.table.Lookup(id)
	if !ok {
		return Network{
			ChainID:  id,
			Name:     fmt.Sprintf("Unknown Network (%s)", id),
			Currency: "ETH",
		}, nil
	}
	return Network{
		ChainID:     d.ChainID,
		Name:        d.Name,
		Currency:    d.Currency,
		IsTestnet:   d.IsTestnet,
		IsSupported: d.IsSupported,
	}, nil
}

// SwitchNetwork moves the wallet to chainID, registering the chain first
// when the wallet does not know it yet.
func (b *Bridge) SwitchNetwork(ctx context.Context, chainID string) error {
	d, ok := b.table.Lookup(chainID)
	if !ok {
		return &Error{Op: "switch", Kind: KindUnsupportedNetwork, Reason: "Unsupported network"}
	}

	err := b.p.SwitchChain(ctx, d.ChainID)
	if err == nil {
		b.log.Info().Str("chain_id", d.ChainID).Msg("network switched")
		return nil
	}

	code, _ := provider.CodeOf(err)
	if code != provider.CodeChainUnrecognized {
		b.log.Error().Err(err).Str("chain_id", d.ChainID).Msg("switch network")
		return &Error{Op: "switch", Kind: kindForCode(code), Reason: "Failed to switch network", Err: err}
	}

	if err := b.p.AddChain(ctx, ChainParams(d)); err != nil {
		b.log.Error().Err(err).Str("chain_id", d.ChainID).Msg("add network")
		return &Error{Op: "switch", Kind: KindChainUnregistered, Reason: "Failed to add network", Err: err}
	}

	b.log.Info().Str("chain_id", d.ChainID).Msg("network added")
	return nil
}

func (b *Bridge) SignMessage(ctx context.Context, message, address string) (string, error) {
	sig, err := b.p.PersonalSign(ctx, message, address)
	if err != nil {
		e := translate("sign", err, signMessages)
		b.log.Warn().Err(err).Str("kind", e.Kind.String()).Msg("sign message")
		return "", e
	}
	return sig, nil
}

// SendTransaction submits a value transfer. Addresses are expected to be
// validated by the caller.
func (b *Bridge) SendTransaction(ctx context.Context, from, to string, valueWei *big.Int) (string, error) {
	if valueWei == nil {
		valueWei = new(big.Int)
	}
	hash, err := b.p.SendTransaction(ctx, provider.TxParams{
		From:  from,
		To:    to,
		Value: (*hexutil.Big)(valueWei),
	})
	if err != nil {
		e := translate("send", err, sendMessages)
		b.log.Warn().Err(err).Str("kind", e.Kind.String()).Msg("send transaction")
		return "", e
	}

	b.log.Info().Str("hash", hash).Str("from", from).Str("to", to).Msg("transaction sent")
	return hash, nil
}

// TransactionReceipt returns nil while the transaction is unmined or when
// the query fails.
func (b *Bridge) TransactionReceipt(ctx context.Context, hash string) *provider.Receipt {
	r, err := b.p.TransactionReceipt(ctx, hash)
	if err != nil {
		b.log.Warn().Err(err).Str("hash", hash).Msg("get transaction receipt")
		return nil
	}
	return r
}

// Receipt is TransactionReceipt with the error kept, for callers that count
// failed queries.
func (b *Bridge) Receipt(ctx context.Context, hash string) (*provider.Receipt, error) {
	return b.p.TransactionReceipt(ctx, hash)
}

func (b *Bridge) TransactionByHash(ctx context.Context, hash string) *provider.TxInfo {
	tx, err := b.p.TransactionByHash(ctx, hash)
	if err != nil {
		b.log.Warn().Err(err).Str("hash", hash).Msg("get transaction")
		return nil
	}
	return tx
}

func (b *Bridge) EstimateGas(ctx context.Context, from, to string, valueWei *big.Int) *big.Int {
	gas, err := b.p.EstimateGas(ctx, provider.TxParams{From: from, To: to, Value: (*hexutil.Big)(valueWei)})
	if err != nil {
		b.log.Warn().Err(err).Msg("estimate gas")
		return nil
	}
	return gas
}

func (b *Bridge) GasPrice(ctx context.Context) *big.Int {
	price, err := b.p.GasPrice(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("get gas price")
		return nil
	}
	return price
}

func (b *Bridge) Subscribe(h provider.Handlers) (unsubscribe func()) {
	return b.p.Subscribe(h)
}

func (b *Bridge) Networks() []network.Descriptor { return b.table.All() }

func (b *Bridge) Recommended() []network.Descriptor { return b.table.Recommended() }

func (b *Bridge) ExplorerURL(chainID string) (string, bool) {
	return b.table.ExplorerURL(chainID)
}

func (b *Bridge) ExplorerTxURL(chainID, hash string) (string, bool) {
	return b.table.TxURL(chainID, hash)
}

func (b *Bridge) ExplorerAddressURL(chainID, address string) (string, bool) {
	return b.table.AddressURL(chainID, address)
}

// FormatAddress shortens an address to 0x1234...abcd.
func FormatAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// ChainParams converts a descriptor into wallet_addEthereumChain parameters.
func ChainParams(d network.Descriptor) provider.AddChainParams {
	return provider.AddChainParams{
		ChainID:   d.ChainID,
		ChainName: d.ChainName,
		NativeCurrency: provider.NativeCurrency{
			Name:     d.Currency,
			Symbol:   d.Currency,
			Decimals: d.Decimals,
		},
		RPCURLs:           d.RPCURLs,
		BlockExplorerURLs: d.BlockExplorerURLs,
	}
}
