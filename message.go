package pinjaman

import (
	"fmt"
	"strconv"
	"strings"
)

const messageHeader = "Pinjaman Hybrid bank details attestation"

// MessageFields are the inputs of the attestation, in signing order.
// Amounts are the strings the borrower typed, never re-normalized.
type MessageFields struct {
	Address          string
	Token            string
	CollateralAmount string
	RequestedAmount  string
	DraftID          string
	Timestamp        string
	ChainID          int64
}

type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (f MessageFields) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"address", f.Address},
		{"token", f.Token},
		{"collateralAmount", f.CollateralAmount},
		{"requestedIdr", f.RequestedAmount},
		{"draftId", f.DraftID},
		{"timestamp", f.Timestamp},
	}
	for _, r := range required {
		if r.value == "" {
			return &FieldError{Field: r.name}
		}
	}
	if f.ChainID <= 0 {
		return &FieldError{Field: "chainId"}
	}
	return nil
}

// BuildMessage renders the canonical attestation text. Identical fields always
// produce identical bytes; the server rebuilds it to check what was signed.
func BuildMessage(f MessageFields) (string, error) {
	if err := f.validate(); err != nil {
		return "", err
	}

	lines := []string{
		messageHeader,
		"Address: " + f.Address,
		"Token: " + f.Token,
		"Collateral: " + f.CollateralAmount,
		"Requested IDR: " + f.RequestedAmount,
		"Draft ID: " + f.DraftID,
		"Timestamp: " + f.Timestamp,
		"Chain ID: " + strconv.FormatInt(f.ChainID, 10),
	}
	return strings.Join(lines, "\n"), nil
}
