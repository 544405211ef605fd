package tipping

import (
	"fmt"
	"math/big"
)

// Read-only accessors. Queries that target a profile return ErrNotRegistered
// for unknown addresses so callers can tell "zero tips" from "no such
// creator".

// Profile returns the full profile stored for addr.
func (e *Engine) Profile(addr [20]byte) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadRegistered(addr)
}

// CreatorName returns the display name for addr.
func (e *Engine) CreatorName(addr [20]byte) (string, error) {
	profile, err := e.Profile(addr)
	if err != nil {
		return "", err
	}
	return profile.Name, nil
}

// CreatorBio returns the bio text for addr.
func (e *Engine) CreatorBio(addr [20]byte) (string, error) {
	profile, err := e.Profile(addr)
	if err != nil {
		return "", err
	}
	return profile.Bio, nil
}

// CreatorCategory returns the category label for addr.
func (e *Engine) CreatorCategory(addr [20]byte) (string, error) {
	profile, err := e.Profile(addr)
	if err != nil {
		return "", err
	}
	return profile.Category, nil
}

// TipsReceived returns the gross value tipped to addr.
func (e *Engine) TipsReceived(addr [20]byte) (*big.Int, error) {
	profile, err := e.Profile(addr)
	if err != nil {
		return nil, err
	}
	return newBigInt(profile.TipsReceived), nil
}

// TipCount returns the number of tips accepted for addr.
func (e *Engine) TipCount(addr [20]byte) (uint64, error) {
	profile, err := e.Profile(addr)
	if err != nil {
		return 0, err
	}
	return profile.TipCount, nil
}

// TipRecord returns the audit pair for addr.
func (e *Engine) TipRecord(addr [20]byte) (*TipRecord, error) {
	profile, err := e.Profile(addr)
	if err != nil {
		return nil, err
	}
	return &TipRecord{
		TipsReceived: newBigInt(profile.TipsReceived),
		TipCount:     profile.TipCount,
	}, nil
}

// IsRegistered reports whether addr holds a profile.
func (e *Engine) IsRegistered(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	_, ok, err := e.state.TippingProfileGet(addr)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// RevenueSplit returns the collaborator split configured on addr, or nil
// when none is set.
func (e *Engine) RevenueSplit(addr [20]byte) (*RevenueSplit, error) {
	profile, err := e.Profile(addr)
	if err != nil {
		return nil, err
	}
	return profile.Split.Clone(), nil
}

// RevenueSplitPercent returns the active split percent for addr, zero when
// no split is configured.
func (e *Engine) RevenueSplitPercent(addr [20]byte) (uint8, error) {
	profile, err := e.Profile(addr)
	if err != nil {
		return 0, err
	}
	if profile.Split == nil {
		return 0, nil
	}
	return profile.Split.Percent, nil
}

// Badges returns the appreciation tokens minted against a registered
// creator.
func (e *Engine) Badges(creator [20]byte) ([]*Badge, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadRegistered(creator); err != nil {
		return nil, err
	}
	return e.state.TippingBadgesList(creator)
}

// Creators returns every registered creator address in registration order.
func (e *Engine) Creators() ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.TippingCreatorsList()
}

// PlatformStats returns the aggregate platform snapshot.
func (e *Engine) PlatformStats() (*PlatformStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	return &PlatformStats{
		TotalCreators:        platform.TotalCreators,
		TotalValueProcessed:  newBigInt(platform.TotalValueProcessed),
		TotalTipCount:        platform.TotalTipCount,
		TotalBadgesMinted:    platform.TotalBadgesMinted,
		TotalFeesAccumulated: newBigInt(platform.TotalFeesAccumulated),
		MinTipAmount:         newBigInt(platform.MinTipAmount),
		PlatformFeeBps:       platform.PlatformFeeBps,
		Paused:               platform.Paused,
	}, nil
}

// TotalCreators returns the registered creator count.
func (e *Engine) TotalCreators() (uint64, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return 0, err
	}
	return platform.TotalCreators, nil
}

// TotalTipCount returns the number of tips ever accepted.
func (e *Engine) TotalTipCount() (uint64, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return 0, err
	}
	return platform.TotalTipCount, nil
}

// MinTipAmount returns the minimum accepted tip.
func (e *Engine) MinTipAmount() (*big.Int, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return nil, err
	}
	return newBigInt(platform.MinTipAmount), nil
}

// PlatformFee returns the current fee rate in basis points.
func (e *Engine) PlatformFee() (uint32, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return 0, err
	}
	return platform.PlatformFeeBps, nil
}

// IsPaused reports whether the circuit breaker is engaged.
func (e *Engine) IsPaused() (bool, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return false, err
	}
	return platform.Paused, nil
}

// FeesAccumulated returns the fees available for withdrawal.
func (e *Engine) FeesAccumulated() (*big.Int, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return nil, err
	}
	return newBigInt(platform.TotalFeesAccumulated), nil
}

// RetainedSplits returns the collaborator shares the vault has retained.
func (e *Engine) RetainedSplits() (*big.Int, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return nil, err
	}
	return newBigInt(platform.RetainedSplitTotal), nil
}

// Admin returns the current admin identity.
func (e *Engine) Admin() ([20]byte, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return [20]byte{}, err
	}
	return platform.Admin, nil
}

// PendingAdmin returns the proposed admin identity, zero when no handoff is
// pending.
func (e *Engine) PendingAdmin() ([20]byte, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return [20]byte{}, err
	}
	return platform.PendingAdmin, nil
}

// BadgeThresholds returns the four reference tier thresholds.
func (e *Engine) BadgeThresholds() ([]*big.Int, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return nil, err
	}
	thresholds := make([]*big.Int, 0, len(platform.BadgeThresholds))
	for _, threshold := range platform.BadgeThresholds {
		thresholds = append(thresholds, newBigInt(threshold))
	}
	return thresholds, nil
}

// ThresholdForTier returns the reference threshold for one tier.
func (e *Engine) ThresholdForTier(tier uint8) (*big.Int, error) {
	if _, ok := BadgeTierName(tier); !ok {
		return nil, fmt.Errorf("%w: tier must be between %d and %d", ErrValidation, TierBronze, TierDiamond)
	}
	thresholds, err := e.BadgeThresholds()
	if err != nil {
		return nil, err
	}
	if int(tier) > len(thresholds) {
		return nil, fmt.Errorf("%w: threshold for tier %d missing", ErrIntegrity, tier)
	}
	return thresholds[tier-1], nil
}

// TotalBadgesMinted returns the number of appreciation tokens ever minted.
func (e *Engine) TotalBadgesMinted() (uint64, error) {
	platform, err := e.statsPlatform()
	if err != nil {
		return 0, err
	}
	return platform.TotalBadgesMinted, nil
}

func (e *Engine) statsPlatform() (*PlatformState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPlatform()
}
