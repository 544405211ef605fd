// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"tipvault/crypto"
	"tipvault/native/tipping"
)

// Spec is the genesis document a node bootstraps from. Admin and alloc
// addresses are bech32 strings; amounts are base-10 strings so the file
// survives JSON tooling that mangles large integers.
type Spec struct {
	GenesisTime     string            `json:"genesisTime,omitempty"`
	ChainID         uint64            `json:"chainId"`
	Admin           string            `json:"admin"`
	Vault           string            `json:"vault,omitempty"`
	MinTipAmount    string            `json:"minTipAmount,omitempty"`
	PlatformFeeBps  *uint32           `json:"platformFeeBps,omitempty"`
	BadgeThresholds []string          `json:"badgeThresholds,omitempty"`
	Alloc           map[string]string `json:"alloc,omitempty"`

	genesisTimestamp time.Time
	adminAddr        [20]byte
	vaultAddr        [20]byte
	minTipAmount     *big.Int
	thresholds       []*big.Int
	allocations      []Allocation
}

// Allocation is a parsed genesis balance entry.
type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

// Load reads and validates a genesis spec file. Unknown fields are rejected
// so a typo in an override name cannot silently fall back to defaults.
func Load(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// DevSpec builds an in-memory spec for development nodes that boot without a
// genesis file. The validator acts as platform admin and the vault sits at
// its module address.
func DevSpec(chainID uint64, admin crypto.Address) *Spec {
	return &Spec{
		GenesisTime: time.Now().UTC().Format(time.RFC3339),
		ChainID:     chainID,
		Admin:       admin.String(),
	}
}

// Validate checks the document and caches the parsed values the accessors
// return. It is idempotent and must succeed before Apply is called.
func (s *Spec) Validate() error {
	s.genesisTimestamp = time.Time{}
	if strings.TrimSpace(s.GenesisTime) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(s.GenesisTime))
		if err != nil {
			return fmt.Errorf("genesisTime: %w", err)
		}
		s.genesisTimestamp = parsed.UTC()
	}

	if s.ChainID == 0 {
		return fmt.Errorf("chainId must be provided")
	}

	admin, err := parseAccount(s.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	s.adminAddr = admin

	s.vaultAddr = defaultVaultAddress()
	if strings.TrimSpace(s.Vault) != "" {
		vault, err := parseAccount(s.Vault)
		if err != nil {
			return fmt.Errorf("vault: %w", err)
		}
		s.vaultAddr = vault
	}
	if s.vaultAddr == s.adminAddr {
		return fmt.Errorf("vault must not be the admin account")
	}

	s.minTipAmount = nil
	if strings.TrimSpace(s.MinTipAmount) != "" {
		amount, err := parseAmountString(s.MinTipAmount)
		if err != nil {
			return fmt.Errorf("minTipAmount: %w", err)
		}
		if amount.Sign() <= 0 {
			return fmt.Errorf("minTipAmount must be positive")
		}
		s.minTipAmount = amount
	}

	if s.PlatformFeeBps != nil && *s.PlatformFeeBps > tipping.MaxPlatformFeeBps {
		return fmt.Errorf("platformFeeBps must be <= %d", tipping.MaxPlatformFeeBps)
	}

	s.thresholds = nil
	if len(s.BadgeThresholds) > 0 {
		if len(s.BadgeThresholds) != 4 {
			return fmt.Errorf("badgeThresholds: expected 4 entries, got %d", len(s.BadgeThresholds))
		}
		parsed := make([]*big.Int, 0, 4)
		for i, raw := range s.BadgeThresholds {
			amount, err := parseAmountString(raw)
			if err != nil {
				return fmt.Errorf("badgeThresholds[%d]: %w", i, err)
			}
			if amount.Sign() <= 0 {
				return fmt.Errorf("badgeThresholds[%d]: must be positive", i)
			}
			if i > 0 && amount.Cmp(parsed[i-1]) <= 0 {
				return fmt.Errorf("badgeThresholds[%d]: must be strictly ascending", i)
			}
			parsed = append(parsed, amount)
		}
		s.thresholds = parsed
	}

	s.allocations = s.allocations[:0]
	if len(s.Alloc) > 0 {
		addresses := make([]string, 0, len(s.Alloc))
		for addr := range s.Alloc {
			addresses = append(addresses, addr)
		}
		sort.Strings(addresses)
		seen := make(map[[20]byte]struct{}, len(addresses))
		for _, addrStr := range addresses {
			addr, err := parseAccount(addrStr)
			if err != nil {
				return fmt.Errorf("alloc[%q]: %w", addrStr, err)
			}
			if _, dup := seen[addr]; dup {
				return fmt.Errorf("alloc[%q]: duplicate account", addrStr)
			}
			seen[addr] = struct{}{}
			amount, err := parseAmountString(s.Alloc[addrStr])
			if err != nil {
				return fmt.Errorf("alloc[%q]: %w", addrStr, err)
			}
			if amount.Sign() < 0 {
				return fmt.Errorf("alloc[%q]: amount must not be negative", addrStr)
			}
			s.allocations = append(s.allocations, Allocation{Address: addr, Amount: amount})
		}
	}
	return nil
}

// GenesisTimestamp returns the parsed genesis time, zero when omitted.
func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// AdminAddress returns the platform admin account.
func (s *Spec) AdminAddress() [20]byte { return s.adminAddr }

// VaultAddress returns the configured vault, falling back to the module
// address derived from the vault name.
func (s *Spec) VaultAddress() [20]byte { return s.vaultAddr }

// Allocations returns the parsed balance grants in deterministic order.
func (s *Spec) Allocations() []Allocation { return s.allocations }

func defaultVaultAddress() [20]byte {
	var vault [20]byte
	copy(vault[:], crypto.ModuleAddress("vault").Bytes())
	return vault
}

func parseAccount(addr string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return out, fmt.Errorf("address must be provided")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
