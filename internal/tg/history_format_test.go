package tg

import (
	"strings"
	"testing"

	"github.com/pvzzle/wasi/internal/txtrack"
)

func TestFormatHistory(t *testing.T) {
	items := []txtrack.Record{
		{
			Hash:        "0x" + strings.Repeat("1", 64),
			From:        "0x" + strings.Repeat("a", 40),
			To:          "0x" + strings.Repeat("c", 40),
			Value:       "1.5",
			NetworkName: "Sepolia Testnet",
			Status:      txtrack.StatusConfirmed,
			BlockNumber: "0x7b",
		},
	}

	txt := FormatHistory(items, book)

	for _, want := range []string{"…", "Sepolia Testnet", "#123", "1.5", "✅", "Ana → 0xcccc…cccc"} {
		if !strings.Contains(txt, want) {
			t.Fatalf("expected %q in: %s", want, txt)
		}
	}
}

func TestFormatHistory_Limit(t *testing.T) {
	var items []txtrack.Record
	for i := 0; i < 15; i++ {
		items = append(items, txtrack.Record{Hash: "0xabc", Status: txtrack.StatusPending})
	}
	if n := strings.Count(FormatHistory(items, nil), "• "); n != 10 {
		t.Fatalf("expected 10 entries, got=%d", n)
	}
}
