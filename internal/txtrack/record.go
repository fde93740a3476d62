// Package txtrack persists submitted transfers per network and drives each
// one from pending to a terminal status by polling for its receipt.
package txtrack

import (
	"github.com/pvzzle/wasi/internal/provider"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	// StatusTimedOut marks a record whose poll budget ran out without a receipt.
	StatusTimedOut Status = "timed_out"
)

func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusTimedOut
}

// Record is one submitted transfer. Identity is Hash plus ChainID.
type Record struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Timestamp   int64  `json:"timestamp"`
	ChainID     string `json:"chainId"`
	NetworkName string `json:"networkName"`
	Status      Status `json:"status"`
	BlockNumber string `json:"blockNumber,omitempty"`
	GasUsed     string `json:"gasUsed,omitempty"`
}

// StatusFor maps a receipt to the terminal status it implies.
func StatusFor(r *provider.Receipt) Status {
	if r.Succeeded() {
		return StatusConfirmed
	}
	return StatusFailed
}

func (r *Record) apply(status Status, receipt *provider.Receipt) {
	r.Status = status
	if receipt == nil {
		return
	}
	if receipt.BlockNumber != nil {
		r.BlockNumber = receipt.BlockNumber.String()
	}
	r.GasUsed = receipt.GasUsed.String()
}
