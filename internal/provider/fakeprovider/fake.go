// Package fakeprovider is a scriptable provider.Provider for tests.
package fakeprovider

import (
	"context"
	"math/big"
	"sync"

	"github.com/pvzzle/wasi/internal/provider"
)

type Call struct {
	Method string
	Args   []any
}

type Provider struct {
	provider.Emitter

	mu sync.Mutex

	NotWallet bool

	AccountList []string
	Approved    []string
	Balances    map[string]*big.Int
	Chain       string
	Known       map[string]bool

	Receipts  map[string]*provider.Receipt
	Txs       map[string]*provider.TxInfo
	NextHash  string
	Signature string
	Gas       *big.Int
	Price     *big.Int

	// Errs makes the named method fail with the given error.
	Errs map[string]error

	calls []Call
}

var _ provider.Provider = (*Provider)(nil)

func New() *Provider {
	return &Provider{
		Balances: map[string]*big.Int{},
		Chain:    "0x1",
		Known:    map[string]bool{"0x1": true},
		Receipts: map[string]*provider.Receipt{},
		Txs:      map[string]*provider.TxInfo{},
		Errs:     map[string]error{},
	}
}

func (p *Provider) record(method string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: method, Args: args})
	return p.Errs[method]
}

// SetErr changes the failure for method while loops may be running.
func (p *Provider) SetErr(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.Errs, method)
		return
	}
	p.Errs[method] = err
}

// SetReceipt publishes a receipt while loops may be running.
func (p *Provider) SetReceipt(hash string, r *provider.Receipt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Receipts[hash] = r
}

func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Count returns how many times method was called.
func (p *Provider) Count(method string) int {
	n := 0
	for _, c := range p.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (p *Provider) IsWallet() bool { return !p.NotWallet }

func (p *Provider) RequestAccounts(ctx context.Context) ([]string, error) {
	if err := p.record("RequestAccounts"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Approved = append([]string(nil), p.AccountList...)
	return p.Approved, nil
}

func (p *Provider) Accounts(ctx context.Context) ([]string, error) {
	if err := p.record("Accounts"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Approved, nil
}

func (p *Provider) Balance(ctx context.Context, address string) (*big.Int, error) {
	if err := p.record("Balance", address); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.Balances[address]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (p *Provider) ChainID(ctx context.Context) (string, error) {
	if err := p.record("ChainID"); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Chain, nil
}

func (p *Provider) SwitchChain(ctx context.Context, chainID string) error {
	if err := p.record("SwitchChain", chainID); err != nil {
		return err
	}
	p.mu.Lock()
	if !p.Known[chainID] {
		p.mu.Unlock()
		return provider.NewError(provider.CodeChainUnrecognized, "Unrecognized chain ID")
	}
	changed := p.Chain != chainID
	p.Chain = chainID
	p.mu.Unlock()

	if changed {
		p.EmitChainChanged(chainID)
	}
	return nil
}

func (p *Provider) AddChain(ctx context.Context, params provider.AddChainParams) error {
	if err := p.record("AddChain", params); err != nil {
		return err
	}
	p.mu.Lock()
	p.Known[params.ChainID] = true
	changed := p.Chain != params.ChainID
	p.Chain = params.ChainID
	p.mu.Unlock()

	if changed {
		p.EmitChainChanged(params.ChainID)
	}
	return nil
}

func (p *Provider) PersonalSign(ctx context.Context, message, address string) (string, error) {
	if err := p.record("PersonalSign", message, address); err != nil {
		return "", err
	}
	if p.Signature == "" {
		return "0xsig", nil
	}
	return p.Signature, nil
}

func (p *Provider) SendTransaction(ctx context.Context, tx provider.TxParams) (string, error) {
	if err := p.record("SendTransaction", tx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.NextHash, nil
}

func (p *Provider) TransactionReceipt(ctx context.Context, hash string) (*provider.Receipt, error) {
	if err := p.record("TransactionReceipt", hash); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Receipts[hash], nil
}

func (p *Provider) TransactionByHash(ctx context.Context, hash string) (*provider.TxInfo, error) {
	if err := p.record("TransactionByHash", hash); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Txs[hash], nil
}

func (p *Provider) EstimateGas(ctx context.Context, tx provider.TxParams) (*big.Int, error) {
	if err := p.record("EstimateGas", tx); err != nil {
		return nil, err
	}
	if p.Gas == nil {
		return big.NewInt(21000), nil
	}
	return p.Gas, nil
}

func (p *Provider) GasPrice(ctx context.Context) (*big.Int, error) {
	if err := p.record("GasPrice"); err != nil {
		return nil, err
	}
	if p.Price == nil {
		return big.NewInt(1_000_000_000), nil
	}
	return p.Price, nil
}
