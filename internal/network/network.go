package network

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrInvalidChainID = errors.New("invalid chain id")
	ErrDuplicate      = errors.New("duplicate chain id")
)

// Descriptor describes one EVM network the wallet knows about.
type Descriptor struct {
	ChainID           string   `json:"chainId" mapstructure:"chainId"`
	ChainName         string   `json:"chainName" mapstructure:"chainName"`
	Name              string   `json:"name" mapstructure:"name"`
	Currency          string   `json:"currency" mapstructure:"currency"`
	Decimals          int      `json:"decimals" mapstructure:"decimals"`
	RPCURLs           []string `json:"rpcUrls" mapstructure:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls" mapstructure:"blockExplorerUrls"`
	IsTestnet         bool     `json:"isTestnet" mapstructure:"isTestnet"`
	IsSupported       bool     `json:"isSupported" mapstructure:"isSupported"`
}

// Explorer returns the first explorer base URL, or "" when none is set.
func (d Descriptor) Explorer() string {
	if len(d.BlockExplorerURLs) == 0 {
		return ""
	}
	return strings.TrimRight(d.BlockExplorerURLs[0], "/")
}

// Table is an immutable set of descriptors keyed by chain id. It keeps the
// insertion order for listings.
type Table struct {
	byID  map[string]Descriptor
	order []string
}

func NewTable(descs []Descriptor) (*Table, error) {
	t := &Table{byID: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		id, err := NormalizeChainID(d.ChainID)
		if err != nil {
			return nil, fmt.Errorf("network %q: %w", d.Name, err)
		}
		if _, ok := t.byID[id]; ok {
			return nil, fmt.Errorf("network %s: %w", id, ErrDuplicate)
		}
		d.ChainID = id
		if d.Decimals == 0 {
			d.Decimals = 18
		}
		if d.ChainName == "" {
			d.ChainName = d.Name
		}
		d.RPCURLs = append([]string(nil), d.RPCURLs...)
		d.BlockExplorerURLs = append([]string(nil), d.BlockExplorerURLs...)
		t.byID[id] = d
		t.order = append(t.order, id)
	}
	return t, nil
}

// Lookup finds a descriptor by chain id in any accepted notation.
func (t *Table) Lookup(chainID string) (Descriptor, bool) {
	id, err := NormalizeChainID(chainID)
	if err != nil {
		return Descriptor{}, false
	}
	d, ok := t.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return clone(d), true
}

func (t *Table) All() []Descriptor {
	out := make([]Descriptor, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, clone(t.byID[id]))
	}
	return out
}

// Recommended lists supported networks only.
func (t *Table) Recommended() []Descriptor {
	var out []Descriptor
	for _, id := range t.order {
		if d := t.byID[id]; d.IsSupported {
			out = append(out, clone(d))
		}
	}
	return out
}

func (t *Table) ChainIDs() []string {
	return append([]string(nil), t.order...)
}

func (t *Table) Len() int { return len(t.order) }

// ExplorerURL returns the explorer base URL for a chain.
func (t *Table) ExplorerURL(chainID string) (string, bool) {
	d, ok := t.Lookup(chainID)
	if !ok || d.Explorer() == "" {
		return "", false
	}
	return d.Explorer(), true
}

func (t *Table) TxURL(chainID, hash string) (string, bool) {
	base, ok := t.ExplorerURL(chainID)
	if !ok {
		return "", false
	}
	return base + "/tx/" + hash, true
}

func (t *Table) AddressURL(chainID, address string) (string, bool) {
	base, ok := t.ExplorerURL(chainID)
	if !ok {
		return "", false
	}
	return base + "/address/" + address, true
}

// Merge returns a new table where descriptors from extra replace or extend t.
func (t *Table) Merge(extra []Descriptor) (*Table, error) {
	all := t.All()
	idx := make(map[string]int, len(all))
	for i, d := range all {
		idx[d.ChainID] = i
	}
	for _, d := range extra {
		id, err := NormalizeChainID(d.ChainID)
		if err != nil {
			return nil, fmt.Errorf("network %q: %w", d.Name, err)
		}
		d.ChainID = id
		if i, ok := idx[id]; ok {
			all[i] = d
			continue
		}
		idx[id] = len(all)
		all = append(all, d)
	}
	return NewTable(all)
}

// NormalizeChainID accepts "0x1", "0x01" or "1" and returns the canonical
// lowercase hex form ("0x1").
func NormalizeChainID(s string) (string, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	if s == "" {
		return "", ErrInvalidChainID
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() <= 0 {
		return "", ErrInvalidChainID
	}
	return hexutil.EncodeBig(n), nil
}

// ChainIDBig parses a chain id in any accepted notation.
func ChainIDBig(s string) (*big.Int, error) {
	id, err := NormalizeChainID(s)
	if err != nil {
		return nil, err
	}
	return hexutil.DecodeBig(id)
}

func clone(d Descriptor) Descriptor {
	d.RPCURLs = append([]string(nil), d.RPCURLs...)
	d.BlockExplorerURLs = append([]string(nil), d.BlockExplorerURLs...)
	return d
}
