package warkat

import (
	"fmt"
	"strings"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// AccountBook maps the fixed roles to ledger account names.
type AccountBook struct {
	WarkatKeluar  string
	WarkatMasuk   string
	HutangDagang  string
	PiutangDagang string
}

// Account resolves a role. ChosenBank comes from the user; the rest from the book. When abbr is set and the
// name lacks the ERP's " - ABBR" suffix, it is appended.
func (b AccountBook) Account(role Role, bank, abbr string) (string, error) {
	var name string
	switch role {
	case RoleWarkatKeluar:
		name = b.WarkatKeluar
	case RoleWarkatMasuk:
		name = b.WarkatMasuk
	case RoleHutangDagang:
		name = b.HutangDagang
	case RolePiutangDagang:
		name = b.PiutangDagang
	case RoleChosenBank:
		if strings.TrimSpace(bank) == "" {
			return "", shared.Invalid("bank_account", "akun bank wajib dipilih")
		}
		return bank, nil
	default:
		return "", fmt.Errorf("warkat: unknown role %q", role)
	}
	if name == "" {
		return "", fmt.Errorf("warkat: account for %s is not configured", role)
	}
	return withAbbr(name, abbr), nil
}

func withAbbr(name, abbr string) string {
	if abbr == "" || strings.HasSuffix(name, " - "+abbr) {
		return name
	}
	return name + " - " + abbr
}

// PartyRole reports whether the role is a party-bearing ledger (payable or receivable).
func PartyRole(role Role) bool {
	return role == RoleHutangDagang || role == RolePiutangDagang
}
