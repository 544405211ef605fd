package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Payload structs ride in Transaction.Data as JSON. Amounts travel as
// base-10 strings so clients in other languages never lose precision to
// float decoding.

// ProfilePayload carries register and update-profile fields.
type ProfilePayload struct {
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	Category string `json:"category"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// TipPayload names the creator being tipped. The tip value itself rides on
// the transaction and must be directed at the platform vault.
type TipPayload struct {
	Creator string `json:"creator"`
	Message string `json:"message,omitempty"`
}

// SplitPayload configures a revenue split.
type SplitPayload struct {
	Collaborator string `json:"collaborator"`
	Name         string `json:"name"`
	Percent      uint8  `json:"percent"`
}

// BadgePayload mints an appreciation badge.
type BadgePayload struct {
	Supporter string `json:"supporter"`
	Tier      uint8  `json:"tier"`
	Creator   string `json:"creator"`
}

// AmountPayload carries a single amount parameter (min tip, fee withdrawal).
type AmountPayload struct {
	Amount string `json:"amount"`
}

// FeePayload sets the platform fee.
type FeePayload struct {
	Bps uint32 `json:"bps"`
}

// ThresholdsPayload replaces the four badge thresholds.
type ThresholdsPayload struct {
	Bronze  string `json:"bronze"`
	Silver  string `json:"silver"`
	Gold    string `json:"gold"`
	Diamond string `json:"diamond"`
}

// AdminPayload names the proposed admin for a transfer.
type AdminPayload struct {
	NewAdmin string `json:"newAdmin"`
}

// DecodePayload unmarshals tx data into dst, rejecting unknown fields so a
// mistyped client parameter fails loudly instead of being dropped.
func DecodePayload(data []byte, dst interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("types: empty transaction payload")
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("types: decode payload: %w", err)
	}
	return nil
}

// EncodePayload marshals a payload struct for Transaction.Data.
func EncodePayload(src interface{}) ([]byte, error) {
	b, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("types: encode payload: %w", err)
	}
	return b, nil
}

// ParseAmount converts a base-10 string into a non-negative big.Int.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("types: amount must be provided")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("types: invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("types: amount must not be negative")
	}
	return amount, nil
}
