package subs

import (
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/pvzzle/wasi/internal/validate"
)

type ChatSubs struct {
	LargeTxMinWei *big.Int
	Wallets       []string
}

// Store maps chats to the transfers they want to hear about.
type Store struct {
	mu   sync.RWMutex
	data map[int64]*ChatSubs
}

func NewStore() *Store {
	return &Store{data: make(map[int64]*ChatSubs)}
}

func (s *Store) SetLargeTxMin(chatID int64, minWei *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreate(chatID)
	if minWei == nil {
		u.LargeTxMinWei = nil
		s.cleanupIfEmpty(chatID, u)
		return
	}
	u.LargeTxMinWei = new(big.Int).Set(minWei)
}

// AddWallet watches address for chatID. Adding an address twice is a no-op.
func (s *Store) AddWallet(chatID int64, address string) error {
	address, err := validate.Address(address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreate(chatID)
	for _, w := range u.Wallets {
		if validate.SameAddress(w, address) {
			return nil
		}
	}
	u.Wallets = append(u.Wallets, strings.ToLower(address))
	return nil
}

func (s *Store) RemoveWallet(chatID int64, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.data[chatID]
	if u == nil {
		return
	}
	out := u.Wallets[:0]
	for _, w := range u.Wallets {
		if !validate.SameAddress(w, address) {
			out = append(out, w)
		}
	}
	u.Wallets = out
	s.cleanupIfEmpty(chatID, u)
}

func (s *Store) ClearLargeTx(chatID int64) {
	s.SetLargeTxMin(chatID, nil)
}

func (s *Store) ClearWallets(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.data[chatID]
	if u == nil {
		return
	}
	u.Wallets = nil
	s.cleanupIfEmpty(chatID, u)
}

func (s *Store) ClearAll(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, chatID)
}

// GetCopy returns a copy of the chat's subscriptions.
func (s *Store) GetCopy(chatID int64) (ChatSubs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.data[chatID]
	if u == nil {
		return ChatSubs{}, false
	}

	var out ChatSubs
	if u.LargeTxMinWei != nil {
		out.LargeTxMinWei = new(big.Int).Set(u.LargeTxMinWei)
	}
	out.Wallets = append([]string(nil), u.Wallets...)
	return out, true
}

// Match returns the chats, in ascending order, that follow from or to, or
// whose large-transfer threshold valueWei reaches.
func (s *Store) Match(from, to string, valueWei *big.Int) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int64
	for chatID, u := range s.data {
		if u == nil {
			continue
		}

		if u.LargeTxMinWei != nil && valueWei != nil && valueWei.Sign() > 0 {
			if valueWei.Cmp(u.LargeTxMinWei) >= 0 {
				out = append(out, chatID)
				continue
			}
		}

		for _, w := range u.Wallets {
			if validate.SameAddress(w, from) || (to != "" && validate.SameAddress(w, to)) {
				out = append(out, chatID)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store) getOrCreate(chatID int64) *ChatSubs {
	u := s.data[chatID]
	if u == nil {
		u = &ChatSubs{}
		s.data[chatID] = u
	}
	return u
}

func (s *Store) cleanupIfEmpty(chatID int64, u *ChatSubs) {
	if u == nil {
		return
	}
	if u.LargeTxMinWei == nil && len(u.Wallets) == 0 {
		delete(s.data, chatID)
	}
}
