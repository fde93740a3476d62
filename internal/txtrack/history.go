package txtrack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/provider"
	"github.com/pvzzle/wasi/internal/storage"

	"github.com/rs/zerolog"
)

// KeyPrefix starts every per-network history key.
const KeyPrefix = "wasi_transactions_"

var ErrNotFound = errors.New("transaction not found")

func Key(chainID string) string {
	if id, err := network.NormalizeChainID(chainID); err == nil {
		chainID = id
	}
	return KeyPrefix + chainID
}

// History is the per-network transaction list. Every read-modify-write of a
// partition happens under mu.
type History struct {
	kv  storage.KV
	log zerolog.Logger
	mu  sync.Mutex
}

func NewHistory(kv storage.KV, log zerolog.Logger) *History {
	return &History{kv: kv, log: log.With().Str("component", "history").Logger()}
}

// Save puts rec at the front of its network's list.
func (h *History) Save(ctx context.Context, rec Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	list, err := h.load(ctx, rec.ChainID)
	if err != nil {
		return err
	}
	list = append([]Record{rec}, list...)
	return storage.SetJSON(ctx, h.kv, Key(rec.ChainID), list)
}

// List returns the records of one network, newest first.
func (h *History) List(ctx context.Context, chainID string) ([]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx, chainID)
}

// All merges every stored network, newest first.
func (h *History) All(ctx context.Context) ([]Record, error) {
	keys, err := h.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list history keys: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var all []Record
	for _, k := range keys {
		list, err := h.load(ctx, strings.TrimPrefix(k, KeyPrefix))
		if err != nil {
			return nil, err
		}
		all = append(all, list...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp > all[j].Timestamp })
	return all, nil
}

func (h *History) Get(ctx context.Context, chainID, hash string) (Record, error) {
	list, err := h.List(ctx, chainID)
	if err != nil {
		return Record{}, err
	}
	for _, r := range list {
		if strings.EqualFold(r.Hash, hash) {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// Pending lists records of every network still waiting for a receipt.
func (h *History) Pending(ctx context.Context) ([]Record, error) {
	all, err := h.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range all {
		if r.Status == StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

// UpdateStatus moves a pending record to a terminal status. Records already
// in a terminal status are returned unchanged.
func (h *History) UpdateStatus(ctx context.Context, chainID, hash string, status Status, receipt *provider.Receipt) (Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list, err := h.load(ctx, chainID)
	if err != nil {
		return Record{}, err
	}

	for i := range list {
		if !strings.EqualFold(list[i].Hash, hash) {
			continue
		}
		if list[i].Status.Terminal() {
			return list[i], nil
		}
		list[i].apply(status, receipt)
		if err := storage.SetJSON(ctx, h.kv, Key(chainID), list); err != nil {
			return Record{}, err
		}
		return list[i], nil
	}
	return Record{}, ErrNotFound
}

// load reads one partition. Undecodable data is logged and treated as empty,
// like a fresh install.
func (h *History) load(ctx context.Context, chainID string) ([]Record, error) {
	var list []Record
	_, err := storage.GetJSON(ctx, h.kv, Key(chainID), &list)
	if err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			h.log.Warn().Err(err).Str("chain_id", chainID).Msg("discarding unreadable history")
			return nil, nil
		}
		return nil, fmt.Errorf("load history %s: %w", chainID, err)
	}
	return list, nil
}
