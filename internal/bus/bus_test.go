package bus

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/subs"
	"github.com/pvzzle/wasi/internal/txtrack"

	"github.com/rs/zerolog"
)

const (
	alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	carol = "0xcccccccccccccccccccccccccccccccccccccccc"
	hash1 = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

func record() txtrack.Record {
	return txtrack.Record{
		Hash:        hash1,
		From:        alice,
		To:          bob,
		Value:       "1.5",
		Timestamp:   1700000000000,
		ChainID:     "0x89",
		NetworkName: "Polygon Mainnet",
		Status:      txtrack.StatusConfirmed,
		BlockNumber: "0x7b",
	}
}

func TestFormatRecord(t *testing.T) {
	txt := FormatRecord(record(), network.Default())

	for _, want := range []string{"confirmed", hash1, "1.5 MATIC", "#123", "2023-11-14T22:13:20Z", "/tx/" + hash1} {
		if !strings.Contains(txt, want) {
			t.Fatalf("expected %q in text: %s", want, txt)
		}
	}
}

func TestFormatRecord_UnknownNetwork(t *testing.T) {
	rec := record()
	rec.ChainID = "0x539"
	rec.Status = txtrack.StatusTimedOut
	rec.BlockNumber = ""

	txt := FormatRecord(rec, network.Default())
	if !strings.Contains(txt, "1.5 ETH") || strings.Contains(txt, "Block:") || strings.Contains(txt, "/tx/") {
		t.Fatalf("unexpected text: %s", txt)
	}
}

func TestNotifier_Handle(t *testing.T) {
	s := subs.NewStore()
	_ = s.AddWallet(1, alice)
	_ = s.AddWallet(2, bob)
	_ = s.AddWallet(3, carol)

	out := make(chan Notification, 4)
	n := NewNotifier(context.Background(), s, nil, out, zerolog.Nop())
	n.Handle(record())

	if len(out) != 2 {
		t.Fatalf("expected 2 notifications, got=%d", len(out))
	}
	first, second := <-out, <-out
	if first.ChatID != 1 || second.ChatID != 2 || first.Text != second.Text {
		t.Fatalf("unexpected notifications %+v %+v", first, second)
	}
}

func TestNotifier_StopsWithContext(t *testing.T) {
	s := subs.NewStore()
	_ = s.AddWallet(1, alice)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewNotifier(ctx, s, nil, make(chan Notification), zerolog.Nop())

	done := make(chan struct{})
	go func() {
		n.Handle(record())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle blocked on a stopped notifier")
	}
}
