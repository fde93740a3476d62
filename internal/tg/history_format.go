package tg

import (
	"fmt"
	"strings"

	"github.com/pvzzle/wasi/internal/contacts"
	"github.com/pvzzle/wasi/internal/txtrack"
	"github.com/pvzzle/wasi/internal/validate"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const historyLimit = 10

var statusIcon = map[txtrack.Status]string{
	txtrack.StatusPending:   " ⏳",
	txtrack.StatusConfirmed: " ✅",
	txtrack.StatusFailed:    " ❌",
	txtrack.StatusTimedOut:  " ⌛",
}

// FormatHistory renders up to ten records, newest first as given. Counterparts
// found in the contact list are shown by name.
func FormatHistory(items []txtrack.Record, book []contacts.Contact) string {
	if len(items) > historyLimit {
		items = items[:historyLimit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🕘 History (last %d)\n\n", historyLimit))

	for _, it := range items {
		bn := ""
		if it.BlockNumber != "" {
			if n, err := hexutil.DecodeUint64(it.BlockNumber); err == nil {
				bn = fmt.Sprintf(" #%d", n)
			}
		}

		sb.WriteString(fmt.Sprintf(
			"• %s (%s)%s\n  %s → %s\n  %s%s\n",
			shortenHash(it.Hash), it.NetworkName, bn,
			label(it.From, book), label(it.To, book),
			it.Value, statusIcon[it.Status],
		))
	}

	return sb.String()
}

func label(address string, book []contacts.Contact) string {
	for _, c := range book {
		if validate.SameAddress(c.Address, address) {
			return c.Name
		}
	}
	return shortenAddress(address)
}

func shortenHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "…" + h[len(h)-4:]
}

func shortenAddress(a string) string {
	if len(a) <= 10 {
		return a
	}
	return a[:6] + "…" + a[len(a)-4:]
}
