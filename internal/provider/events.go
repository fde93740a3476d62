package provider

import "sync"

// Handlers receives wallet notifications. Nil fields are skipped.
type Handlers struct {
	AccountsChanged func(accounts []string)
	ChainChanged    func(chainID string)
	Connect         func(chainID string)
	Disconnect      func(err error)
}

// Emitter is a registry of Handlers that adapters embed to implement
// Subscribe. Callbacks run synchronously on the emitting goroutine.
type Emitter struct {
	mu   sync.RWMutex
	next int
	subs map[int]Handlers
}

func (e *Emitter) Subscribe(h Handlers) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subs == nil {
		e.subs = make(map[int]Handlers)
	}
	id := e.next
	e.next++
	e.subs[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// Len returns the number of active subscriptions.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

func (e *Emitter) EmitAccountsChanged(accounts []string) {
	for _, h := range e.snapshot() {
		if h.AccountsChanged != nil {
			h.AccountsChanged(append([]string(nil), accounts...))
		}
	}
}

func (e *Emitter) EmitChainChanged(chainID string) {
	for _, h := range e.snapshot() {
		if h.ChainChanged != nil {
			h.ChainChanged(chainID)
		}
	}
}

func (e *Emitter) EmitConnect(chainID string) {
	for _, h := range e.snapshot() {
		if h.Connect != nil {
			h.Connect(chainID)
		}
	}
}

func (e *Emitter) EmitDisconnect(err error) {
	for _, h := range e.snapshot() {
		if h.Disconnect != nil {
			h.Disconnect(err)
		}
	}
}

func (e *Emitter) snapshot() []Handlers {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Handlers, 0, len(e.subs))
	for _, h := range e.subs {
		out = append(out, h)
	}
	return out
}
