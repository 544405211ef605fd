package tipping

import "math/big"

// Text bounds are byte lengths measured after NFC normalization.
const (
	MaxNameLen       = 50
	MaxBioLen        = 200
	MaxCategoryLen   = 20
	MaxImageURLLen   = 200
	MaxTipMessageLen = 280
)

// Revenue split percent bounds.
const (
	MinSplitPercent = 1
	MaxSplitPercent = 50
)

// MaxPlatformFeeBps caps the platform fee at 10%.
const MaxPlatformFeeBps uint32 = 1000

// DefaultPlatformFeeBps is the fee rate seeded at initialization.
const DefaultPlatformFeeBps uint32 = 250

// Badge tiers. Tier names are fixed per tier number.
const (
	TierBronze  uint8 = 1
	TierSilver  uint8 = 2
	TierGold    uint8 = 3
	TierDiamond uint8 = 4

	badgeTierCount = 4
)

var (
	defaultMinTipAmount = big.NewInt(100_000)
	vaultReserve        = big.NewInt(100_000)
)

// DefaultMinTipAmount returns the minimum tip seeded at initialization.
func DefaultMinTipAmount() *big.Int { return new(big.Int).Set(defaultMinTipAmount) }

// DefaultBadgeThresholds returns the reference tier thresholds seeded at
// initialization.
func DefaultBadgeThresholds() []*big.Int {
	return []*big.Int{
		big.NewInt(1_000_000),
		big.NewInt(10_000_000),
		big.NewInt(100_000_000),
		big.NewInt(1_000_000_000),
	}
}

// MinimumVaultReserve returns the balance the vault must retain after a fee
// withdrawal.
func MinimumVaultReserve() *big.Int { return new(big.Int).Set(vaultReserve) }

// BadgeTierName maps a tier number to its display name.
func BadgeTierName(tier uint8) (string, bool) {
	switch tier {
	case TierBronze:
		return "Bronze", true
	case TierSilver:
		return "Silver", true
	case TierGold:
		return "Gold", true
	case TierDiamond:
		return "Diamond", true
	default:
		return "", false
	}
}

// PlatformState is the singleton record tracking global totals and the
// admin-controlled parameters.
type PlatformState struct {
	TotalCreators        uint64     `json:"totalCreators"`
	TotalValueProcessed  *big.Int   `json:"totalValueProcessed"`
	TotalTipCount        uint64     `json:"totalTipCount"`
	MinTipAmount         *big.Int   `json:"minTipAmount"`
	PlatformFeeBps       uint32     `json:"platformFeeBps"`
	BadgeThresholds      []*big.Int `json:"badgeThresholds"`
	Admin                [20]byte   `json:"admin"`
	PendingAdmin         [20]byte   `json:"pendingAdmin"`
	Paused               bool       `json:"paused"`
	TotalBadgesMinted    uint64     `json:"totalBadgesMinted"`
	TotalFeesAccumulated *big.Int   `json:"totalFeesAccumulated"`
	RetainedSplitTotal   *big.Int   `json:"retainedSplitTotal"`
}

// Clone returns a deep copy of the platform record.
func (p *PlatformState) Clone() *PlatformState {
	if p == nil {
		return nil
	}
	clone := *p
	if p.TotalValueProcessed != nil {
		clone.TotalValueProcessed = new(big.Int).Set(p.TotalValueProcessed)
	}
	if p.MinTipAmount != nil {
		clone.MinTipAmount = new(big.Int).Set(p.MinTipAmount)
	}
	if p.TotalFeesAccumulated != nil {
		clone.TotalFeesAccumulated = new(big.Int).Set(p.TotalFeesAccumulated)
	}
	if p.RetainedSplitTotal != nil {
		clone.RetainedSplitTotal = new(big.Int).Set(p.RetainedSplitTotal)
	}
	clone.BadgeThresholds = make([]*big.Int, 0, len(p.BadgeThresholds))
	for _, threshold := range p.BadgeThresholds {
		if threshold == nil {
			clone.BadgeThresholds = append(clone.BadgeThresholds, big.NewInt(0))
			continue
		}
		clone.BadgeThresholds = append(clone.BadgeThresholds, new(big.Int).Set(threshold))
	}
	return &clone
}

// Profile is the per-creator record. It is created on registration and never
// deleted; TipsReceived tracks gross amounts before the platform fee.
type Profile struct {
	Address      [20]byte      `json:"address"`
	Name         string        `json:"name"`
	Bio          string        `json:"bio"`
	Category     string        `json:"category"`
	ImageURL     string        `json:"imageUrl"`
	TipsReceived *big.Int      `json:"tipsReceived"`
	TipCount     uint64        `json:"tipCount"`
	RegisteredAt uint64        `json:"registeredAt"`
	Split        *RevenueSplit `json:"split,omitempty"`
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	if p.TipsReceived != nil {
		clone.TipsReceived = new(big.Int).Set(p.TipsReceived)
	}
	clone.Split = p.Split.Clone()
	return &clone
}

// RevenueSplit routes a share of incoming tips to a collaborator. Either all
// three fields are set or the profile carries no split at all.
type RevenueSplit struct {
	Collaborator [20]byte `json:"collaborator"`
	Name         string   `json:"name"`
	Percent      uint8    `json:"percent"`
}

// Clone returns a copy of the split configuration.
func (s *RevenueSplit) Clone() *RevenueSplit {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Badge is an appreciation token minted for a supporter against a creator.
type Badge struct {
	TokenID   [32]byte `json:"tokenId"`
	Creator   [20]byte `json:"creator"`
	Supporter [20]byte `json:"supporter"`
	Tier      uint8    `json:"tier"`
	MintedAt  uint64   `json:"mintedAt"`
}

// TierName returns the display name for the badge's tier.
func (b *Badge) TierName() string {
	if b == nil {
		return ""
	}
	name, _ := BadgeTierName(b.Tier)
	return name
}

// Payment carries the value-bearing half of a tip call: who paid, where the
// funds were directed, and the directive fields the tipping module must
// reject when set.
type Payment struct {
	From     [20]byte
	Receiver [20]byte
	Amount   *big.Int
	CloseTo  []byte
	RekeyTo  []byte
}

// TipReceipt reports how one accepted tip was divided.
type TipReceipt struct {
	Creator      [20]byte `json:"creator"`
	Supporter    [20]byte `json:"supporter"`
	Amount       *big.Int `json:"amount"`
	Fee          *big.Int `json:"fee"`
	CreatorShare *big.Int `json:"creatorShare"`
	CollabShare  *big.Int `json:"collabShare"`
	Collaborator [20]byte `json:"collaborator"`
	TippedAt     uint64   `json:"tippedAt"`
}

// TipRecord is the audit pair returned by the tip record query.
type TipRecord struct {
	TipsReceived *big.Int `json:"tipsReceived"`
	TipCount     uint64   `json:"tipCount"`
}

// PlatformStats is the aggregate snapshot served to read-only callers.
type PlatformStats struct {
	TotalCreators        uint64   `json:"totalCreators"`
	TotalValueProcessed  *big.Int `json:"totalValueProcessed"`
	TotalTipCount        uint64   `json:"totalTipCount"`
	TotalBadgesMinted    uint64   `json:"totalBadgesMinted"`
	TotalFeesAccumulated *big.Int `json:"totalFeesAccumulated"`
	MinTipAmount         *big.Int `json:"minTipAmount"`
	PlatformFeeBps       uint32   `json:"platformFeeBps"`
	Paused               bool     `json:"paused"`
}
