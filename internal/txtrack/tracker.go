package txtrack

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/pvzzle/wasi/internal/bridge"
	"github.com/pvzzle/wasi/internal/provider"
	"github.com/pvzzle/wasi/internal/units"
	"github.com/pvzzle/wasi/internal/validate"

	"github.com/rs/zerolog"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 60
)

var ErrClosed = errors.New("tracker closed")

// Wallet is what the tracker needs from the bridge.
type Wallet interface {
	CurrentNetwork(ctx context.Context) (bridge.Network, error)
	SendTransaction(ctx context.Context, from, to string, valueWei *big.Int) (string, error)
	Receipt(ctx context.Context, hash string) (*provider.Receipt, error)
}

type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

type Tracker struct {
	w   Wallet
	h   *History
	cfg Config
	log zerolog.Logger
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	handles  map[string]*Handle
	onUpdate []func(Record)
}

func New(w Wallet, h *History, cfg Config, log zerolog.Logger) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		w:       w,
		h:       h,
		cfg:     cfg,
		log:     log.With().Str("component", "txtrack").Logger(),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		handles: make(map[string]*Handle),
	}
}

func (t *Tracker) History() *History { return t.h }

// OnUpdate registers fn for every record reaching a terminal status.
func (t *Tracker) OnUpdate(fn func(Record)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUpdate = append(t.onUpdate, fn)
}

// Send validates the transfer, submits it on the wallet's current network,
// stores the pending record and starts watching it.
func (t *Tracker) Send(ctx context.Context, from, to, amount string) (*Handle, error) {
	from, err := validate.Address(from)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	to, err = validate.Address(to)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	wei, err := units.PositiveWei(amount)
	if err != nil {
		return nil, err
	}

	net, err := t.w.CurrentNetwork(ctx)
	if err != nil {
		return nil, err
	}

	hash, err := t.w.SendTransaction(ctx, from, to, wei)
	if err != nil {
		return nil, err
	}

	rec := Record{
		Hash:        hash,
		From:        from,
		To:          to,
		Value:       units.Exact(wei),
		Timestamp:   t.now().UnixMilli(),
		ChainID:     net.ChainID,
		NetworkName: net.Name,
		Status:      StatusPending,
	}
	if err := t.h.Save(ctx, rec); err != nil {
		// the transfer is already broadcast; keep watching it
		t.log.Error().Err(err).Str("hash", hash).Msg("save pending transaction")
	}

	t.log.Info().Str("hash", hash).Str("chain_id", rec.ChainID).Str("value", rec.Value).Msg("transaction pending")
	return t.Watch(rec)
}

// Watch starts the poll loop for a pending record. Watching a record that
// already has a loop returns the existing handle.
func (t *Tracker) Watch(rec Record) (*Handle, error) {
	key := handleKey(rec.ChainID, rec.Hash)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if h, ok := t.handles[key]; ok {
		return h, nil
	}

	ctx, cancel := context.WithCancel(t.ctx)
	h := &Handle{rec: rec, cancel: cancel, done: make(chan struct{})}
	t.handles[key] = h

	t.wg.Add(1)
	go t.run(ctx, key, h)
	return h, nil
}

// Resume re-attaches loops to records left pending by a previous run.
func (t *Tracker) Resume(ctx context.Context) (int, error) {
	pending, err := t.h.Pending(ctx)
	if err != nil {
		return 0, err
	}
	for _, rec := range pending {
		if _, err := t.Watch(rec); err != nil {
			return 0, err
		}
	}
	if len(pending) > 0 {
		t.log.Info().Int("count", len(pending)).Msg("resumed pending transactions")
	}
	return len(pending), nil
}

// Active is the number of running poll loops.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// Close stops every loop and waits for them to exit. Records of stopped
// loops stay pending.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) run(ctx context.Context, key string, h *Handle) {
	defer t.wg.Done()
	defer func() {
		t.mu.Lock()
		delete(t.handles, key)
		t.mu.Unlock()
		close(h.done)
	}()

	rec := h.Record()
	log := t.log.With().Str("hash", rec.Hash).Str("chain_id", rec.ChainID).Logger()

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			log.Debug().Int("attempts", attempt-1).Msg("watch cancelled")
			return
		case <-ticker.C:
		}

		h.attempt()
		receipt, err := t.w.Receipt(ctx, rec.Hash)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("receipt query failed")
			continue
		}
		if receipt == nil {
			continue
		}

		t.finish(h, StatusFor(receipt), receipt, log)
		return
	}

	log.Warn().Int("attempts", t.cfg.MaxAttempts).Msg("no receipt within poll budget")
	t.finish(h, StatusTimedOut, nil, log)
}

func (t *Tracker) finish(h *Handle, status Status, receipt *provider.Receipt, log zerolog.Logger) {
	rec := h.Record()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updated, err := t.h.UpdateStatus(ctx, rec.ChainID, rec.Hash, status, receipt)
	if err != nil {
		log.Error().Err(err).Msg("update transaction status")
		rec.apply(status, receipt)
		updated = rec
	}
	h.set(updated)

	log.Info().Str("status", string(updated.Status)).Str("block", updated.BlockNumber).Msg("transaction finished")

	t.mu.Lock()
	fns := append([]func(Record){}, t.onUpdate...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(updated)
	}
}

func handleKey(chainID, hash string) string {
	return Key(chainID) + "/" + strings.ToLower(hash)
}

// Handle controls one poll loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	rec      Record
	attempts int
}

// Cancel stops the loop. The record stays pending.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the loop exits or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Record, error) {
	select {
	case <-h.done:
		return h.Record(), nil
	case <-ctx.Done():
		return h.Record(), ctx.Err()
	}
}

func (h *Handle) Status() Status { return h.Record().Status }

func (h *Handle) Hash() string { return h.Record().Hash }

func (h *Handle) Record() Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rec
}

// Attempts is the number of receipt queries issued so far.
func (h *Handle) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

func (h *Handle) attempt() {
	h.mu.Lock()
	h.attempts++
	h.mu.Unlock()
}

func (h *Handle) set(rec Record) {
	h.mu.Lock()
	h.rec = rec
	h.mu.Unlock()
}
