// Package bus carries chat notifications from the transaction tracker to the
// chat front-end.
package bus

import (
	"context"
	"math/big"

	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/txtrack"
	"github.com/pvzzle/wasi/internal/units"

	"github.com/rs/zerolog"
)

type Notification struct {
	ChatID int64
	Text   string
}

// Matcher picks the chats interested in a transfer.
type Matcher interface {
	Match(from, to string, valueWei *big.Int) []int64
}

// Notifier turns finished transfers into notifications for matching chats.
type Notifier struct {
	ctx   context.Context
	subs  Matcher
	table *network.Table
	out   chan<- Notification
	log   zerolog.Logger
}

// NewNotifier sends to out until ctx is done.
func NewNotifier(ctx context.Context, subs Matcher, table *network.Table, out chan<- Notification, log zerolog.Logger) *Notifier {
	if table == nil {
		table = network.Default()
	}
	return &Notifier{
		ctx:   ctx,
		subs:  subs,
		table: table,
		out:   out,
		log:   log.With().Str("component", "notifier").Logger(),
	}
}

// Handle is registered with Tracker.OnUpdate.
func (n *Notifier) Handle(rec txtrack.Record) {
	wei, err := units.ToWei(rec.Value)
	if err != nil {
		wei = nil
	}

	chats := n.subs.Match(rec.From, rec.To, wei)
	if len(chats) == 0 {
		return
	}

	text := FormatRecord(rec, n.table)
	for _, chatID := range chats {
		select {
		case n.out <- Notification{ChatID: chatID, Text: text}:
		case <-n.ctx.Done():
			n.log.Warn().Str("hash", rec.Hash).Int("dropped", len(chats)).Msg("notifier stopped")
			return
		}
	}
	n.log.Debug().Str("hash", rec.Hash).Int("chats", len(chats)).Msg("notifications queued")
}
