package bus

import (
	"fmt"
	"strings"
	"time"

	"github.com/pvzzle/wasi/internal/network"
	"github.com/pvzzle/wasi/internal/txtrack"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var statusTitle = map[txtrack.Status]string{
	txtrack.StatusPending:   "⏳ Transaction pending",
	txtrack.StatusConfirmed: "✅ Transaction confirmed",
	txtrack.StatusFailed:    "❌ Transaction failed",
	txtrack.StatusTimedOut:  "⌛ Transaction not confirmed in time",
}

// FormatRecord renders a transfer for a chat message.
func FormatRecord(rec txtrack.Record, table *network.Table) string {
	currency := "ETH"
	if d, ok := table.Lookup(rec.ChainID); ok {
		currency = d.Currency
	}

	title, ok := statusTitle[rec.Status]
	if !ok {
		title = "🔔 Transaction " + string(rec.Status)
	}

	lines := []string{
		title,
		"",
		"Hash: " + rec.Hash,
		"From: " + rec.From,
		"To: " + rec.To,
		fmt.Sprintf("Value: %s %s", rec.Value, currency),
		"Network: " + rec.NetworkName,
	}
	if rec.BlockNumber != "" {
		if n, err := hexutil.DecodeUint64(rec.BlockNumber); err == nil {
			lines = append(lines, fmt.Sprintf("Block: #%d", n))
		}
	}
	if rec.Timestamp > 0 {
		lines = append(lines, "Time: "+time.UnixMilli(rec.Timestamp).UTC().Format(time.RFC3339))
	}
	if u, ok := table.TxURL(rec.ChainID, rec.Hash); ok {
		lines = append(lines, u)
	}
	return strings.Join(lines, "\n")
}
