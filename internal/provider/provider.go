package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Provider is the narrow set of wallet capabilities the bridge depends on. An
// adapter implements it against whatever signer or node is available.
//
// Read methods that find nothing return zero values with a nil error:
// TransactionReceipt returns (nil, nil) while a transaction is not mined.
type Provider interface {
	// IsWallet reports whether the adapter identifies as a usable wallet.
	IsWallet() bool

	RequestAccounts(ctx context.Context) ([]string, error)
	Accounts(ctx context.Context) ([]string, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
	ChainID(ctx context.Context) (string, error)

	SwitchChain(ctx context.Context, chainID string) error
	AddChain(ctx context.Context, params AddChainParams) error

	PersonalSign(ctx context.Context, message, address string) (string, error)
	SendTransaction(ctx context.Context, tx TxParams) (string, error)

	TransactionReceipt(ctx context.Context, hash string) (*Receipt, error)
	TransactionByHash(ctx context.Context, hash string) (*TxInfo, error)
	EstimateGas(ctx context.Context, tx TxParams) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)

	Subscribe(h Handlers) (unsubscribe func())
}

// TxParams is the eth_sendTransaction / eth_estimateGas argument.
type TxParams struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}

// NativeCurrency is part of the wallet_addEthereumChain argument.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// Receipt holds the subset of a transaction receipt the wallet uses.
type Receipt struct {
	TxHash      string         `json:"transactionHash"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	From        string         `json:"from"`
	To          *string        `json:"to"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
	Status      hexutil.Uint64 `json:"status"`
}

// Succeeded reports a status of 1.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// TxInfo is the subset of eth_getTransactionByHash the wallet shows.
type TxInfo struct {
	Hash        string         `json:"hash"`
	From        string         `json:"from"`
	To          *string        `json:"to"`
	Value       *hexutil.Big   `json:"value"`
	Nonce       hexutil.Uint64 `json:"nonce"`
	Gas         hexutil.Uint64 `json:"gas"`
	GasPrice    *hexutil.Big   `json:"gasPrice"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
}

// Pending reports whether the transaction is not yet in a block.
func (t *TxInfo) Pending() bool {
	return t != nil && t.BlockNumber == nil
}
