package tg

import "sync"

type ChatState int

const (
	StateIdle ChatState = iota
	StateAwaitRecipient
	StateAwaitAmount
	StateAwaitContactName
	StateAwaitContactAddress
	StateAwaitLargeMin
)

// Draft holds what a chat typed so far in a multi-step flow.
type Draft struct {
	Recipient   string
	ContactName string
}

type StateStore struct {
	mu     sync.Mutex
	state  map[int64]ChatState
	drafts map[int64]Draft
}

func NewStateStore() *StateStore {
	return &StateStore{
		state:  make(map[int64]ChatState),
		drafts: make(map[int64]Draft),
	}
}

func (s *StateStore) Set(chatID int64, st ChatState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[chatID] = st
}

func (s *StateStore) Get(chatID int64) ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[chatID]
}

func (s *StateStore) SetDraft(chatID int64, d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[chatID] = d
}

func (s *StateStore) Draft(chatID int64) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[chatID]
}

// Reset returns the chat to idle and drops its draft.
func (s *StateStore) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, chatID)
	delete(s.drafts, chatID)
}
