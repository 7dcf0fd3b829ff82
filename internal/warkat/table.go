// Package warkat settles post-dated payment instruments (cheques and giros). Clearing or bouncing a warkat
// posts a journal whose accounts come from a fixed table keyed by payment direction and action.
package warkat

import (
	"fmt"
	"strings"
)

// Direction is the payment direction of the instrument.
type Direction string

const (
	DirectionPay     Direction = "Pay"     // Outgoing, issued to a supplier
	DirectionReceive Direction = "Receive" // Incoming, received from a customer
)

// ParseDirection converts external input into a Direction. Anything else, including internal transfers,
// is rejected here so the table never sees it.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pay":
		return DirectionPay, nil
	case "receive":
		return DirectionReceive, nil
	default:
		return "", fmt.Errorf("arah pembayaran tidak dikenal %q", s)
	}
}

// Action is a settlement action.
type Action string

const (
	ActionClear  Action = "clear"
	ActionBounce Action = "bounce"
)

// Role is an account role resolved to a concrete ledger account at posting time.
type Role string

const (
	RoleWarkatKeluar  Role = "WarkatKeluar"  // Outgoing instruments in transit
	RoleWarkatMasuk   Role = "WarkatMasuk"   // Incoming instruments in transit
	RoleChosenBank    Role = "ChosenBank"    // Bank account picked by the user on clear
	RoleHutangDagang  Role = "HutangDagang"  // Trade payables
	RolePiutangDagang Role = "PiutangDagang" // Trade receivables
)

// Posting is the debit/credit role pair for one settlement.
type Posting struct {
	Debit  Role
	Credit Role
}

var settlementTable = map[Direction]map[Action]Posting{
	DirectionPay: {
		ActionClear:  {Debit: RoleWarkatKeluar, Credit: RoleChosenBank},
		ActionBounce: {Debit: RoleWarkatKeluar, Credit: RoleHutangDagang},
	},
	DirectionReceive: {
		ActionClear:  {Debit: RoleChosenBank, Credit: RoleWarkatMasuk},
		ActionBounce: {Debit: RolePiutangDagang, Credit: RoleWarkatMasuk},
	},
}

// Settle returns the posting for a direction and action. It panics on values that did not come through
// ParseDirection or the Action constants.
func Settle(d Direction, a Action) Posting {
	actions, ok := settlementTable[d]
	if !ok {
		panic(fmt.Sprintf("warkat: unknown direction %q", d))
	}
	p, ok := actions[a]
	if !ok {
		panic(fmt.Sprintf("warkat: unknown action %q", a))
	}
	return p
}
