package types

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidBankInput is returned when a partnership is requested for a
// bank paired with itself.
var ErrInvalidBankInput = errors.New("invalid bank input: bank names must differ")

// BankID derives the content-derived identifier for a bank name. The
// same name always yields the same ID, so duplicate creation attempts
// are detectable without storing the name itself.
func BankID(bank string) string {
	return fmt.Sprintf("%x", xxhash.Sum64String(bank))
}

// PartnershipID derives the order-independent identifier for a pair of
// banks. The names are hashed in lexicographic order so both sides of a
// trade compute the same ID independently.
func PartnershipID(bankA, bankB string) (string, error) {
	if bankA == bankB {
		return "", ErrInvalidBankInput
	}
	if bankA > bankB {
		bankA, bankB = bankB, bankA
	}

	h := xxhash.New()
	// NUL separator keeps ("ab","c") and ("a","bc") distinct.
	_, _ = h.WriteString(bankA)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(bankB)
	return fmt.Sprintf("%x", h.Sum64()), nil
}
