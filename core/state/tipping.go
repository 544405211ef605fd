package state

import (
	"bytes"
	"fmt"
	"math/big"

	"tipvault/native/tipping"
)

var (
	tippingPlatformKey   = []byte("tipping/platform")
	tippingProfilePrefix = []byte("tipping/profile/")
	tippingCreatorsKey   = []byte("tipping/creators")
	tippingBadgesPrefix  = []byte("tipping/badges/")
)

type storedTippingPlatform struct {
	TotalCreators        uint64
	TotalValueProcessed  *big.Int
	TotalTipCount        uint64
	MinTipAmount         *big.Int
	PlatformFeeBps       uint32
	BadgeThresholds      []*big.Int
	Admin                [20]byte
	PendingAdmin         [20]byte
	Paused               bool
	TotalBadgesMinted    uint64
	TotalFeesAccumulated *big.Int
	RetainedSplitTotal   *big.Int
}

type storedTippingProfile struct {
	Address      [20]byte
	Name         string
	Bio          string
	Category     string
	ImageURL     string
	TipsReceived *big.Int
	TipCount     uint64
	RegisteredAt uint64
	Split        *storedRevenueSplit `rlp:"nil"`
}

type storedRevenueSplit struct {
	Collaborator [20]byte
	Name         string
	Percent      uint8
}

type storedBadge struct {
	TokenID   [32]byte
	Creator   [20]byte
	Supporter [20]byte
	Tier      uint8
	MintedAt  uint64
}

func tippingProfileKey(addr [20]byte) []byte {
	key := make([]byte, len(tippingProfilePrefix)+len(addr))
	copy(key, tippingProfilePrefix)
	copy(key[len(tippingProfilePrefix):], addr[:])
	return key
}

func tippingBadgesKey(creator [20]byte) []byte {
	key := make([]byte, len(tippingBadgesPrefix)+len(creator))
	copy(key, tippingBadgesPrefix)
	copy(key[len(tippingBadgesPrefix):], creator[:])
	return key
}

// TippingPlatformGet loads the singleton platform record. The boolean reports
// whether the platform has been initialised yet.
func (m *Manager) TippingPlatformGet() (*tipping.PlatformState, bool, error) {
	var stored storedTippingPlatform
	ok, err := m.KVGet(tippingPlatformKey, &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return tippingPlatformFromStored(&stored), true, nil
}

// TippingPlatformPut persists the singleton platform record.
func (m *Manager) TippingPlatformPut(platform *tipping.PlatformState) error {
	if platform == nil {
		return fmt.Errorf("state: tipping platform record must not be nil")
	}
	stored := storedTippingPlatform{
		TotalCreators:        platform.TotalCreators,
		TotalValueProcessed:  copyBigInt(platform.TotalValueProcessed),
		TotalTipCount:        platform.TotalTipCount,
		MinTipAmount:         copyBigInt(platform.MinTipAmount),
		PlatformFeeBps:       platform.PlatformFeeBps,
		Admin:                platform.Admin,
		PendingAdmin:         platform.PendingAdmin,
		Paused:               platform.Paused,
		TotalBadgesMinted:    platform.TotalBadgesMinted,
		TotalFeesAccumulated: copyBigInt(platform.TotalFeesAccumulated),
		RetainedSplitTotal:   copyBigInt(platform.RetainedSplitTotal),
	}
	stored.BadgeThresholds = make([]*big.Int, 0, len(platform.BadgeThresholds))
	for _, threshold := range platform.BadgeThresholds {
		stored.BadgeThresholds = append(stored.BadgeThresholds, copyBigInt(threshold))
	}
	return m.KVPut(tippingPlatformKey, &stored)
}

// TippingProfileGet loads the creator profile stored under addr.
func (m *Manager) TippingProfileGet(addr [20]byte) (*tipping.Profile, bool, error) {
	var stored storedTippingProfile
	ok, err := m.KVGet(tippingProfileKey(addr), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return tippingProfileFromStored(&stored), true, nil
}

// TippingProfilePut persists a creator profile keyed by its address.
func (m *Manager) TippingProfilePut(profile *tipping.Profile) error {
	if profile == nil {
		return fmt.Errorf("state: tipping profile must not be nil")
	}
	stored := storedTippingProfile{
		Address:      profile.Address,
		Name:         profile.Name,
		Bio:          profile.Bio,
		Category:     profile.Category,
		ImageURL:     profile.ImageURL,
		TipsReceived: copyBigInt(profile.TipsReceived),
		TipCount:     profile.TipCount,
		RegisteredAt: profile.RegisteredAt,
	}
	if profile.Split != nil {
		stored.Split = &storedRevenueSplit{
			Collaborator: profile.Split.Collaborator,
			Name:         profile.Split.Name,
			Percent:      profile.Split.Percent,
		}
	}
	return m.KVPut(tippingProfileKey(profile.Address), &stored)
}

// TippingCreatorsAppend adds addr to the creator registry. Appending an
// address that is already present is a no-op.
func (m *Manager) TippingCreatorsAppend(addr [20]byte) error {
	return m.KVAppend(tippingCreatorsKey, append([]byte(nil), addr[:]...))
}

// TippingCreatorsList returns every registered creator address in insertion
// order.
func (m *Manager) TippingCreatorsList() ([][20]byte, error) {
	var raw [][]byte
	if err := m.KVGetList(tippingCreatorsKey, &raw); err != nil {
		return nil, err
	}
	creators := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			return nil, fmt.Errorf("state: malformed creator registry entry of %d bytes", len(entry))
		}
		var addr [20]byte
		copy(addr[:], entry)
		creators = append(creators, addr)
	}
	return creators, nil
}

// TippingBadgesList returns the badges minted against a creator in mint
// order.
func (m *Manager) TippingBadgesList(creator [20]byte) ([]*tipping.Badge, error) {
	var stored []storedBadge
	ok, err := m.KVGet(tippingBadgesKey(creator), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*tipping.Badge{}, nil
	}
	badges := make([]*tipping.Badge, 0, len(stored))
	for i := range stored {
		badges = append(badges, tippingBadgeFromStored(&stored[i]))
	}
	return badges, nil
}

// TippingBadgeAppend records a freshly minted badge under its creator,
// rejecting token identifier collisions.
func (m *Manager) TippingBadgeAppend(badge *tipping.Badge) error {
	if badge == nil {
		return fmt.Errorf("state: badge must not be nil")
	}
	key := tippingBadgesKey(badge.Creator)
	var stored []storedBadge
	if _, err := m.KVGet(key, &stored); err != nil {
		return err
	}
	for i := range stored {
		if bytes.Equal(stored[i].TokenID[:], badge.TokenID[:]) {
			return fmt.Errorf("state: badge token %x already minted", badge.TokenID)
		}
	}
	stored = append(stored, storedBadge{
		TokenID:   badge.TokenID,
		Creator:   badge.Creator,
		Supporter: badge.Supporter,
		Tier:      badge.Tier,
		MintedAt:  badge.MintedAt,
	})
	return m.KVPut(key, stored)
}

func tippingPlatformFromStored(stored *storedTippingPlatform) *tipping.PlatformState {
	platform := &tipping.PlatformState{
		TotalCreators:        stored.TotalCreators,
		TotalValueProcessed:  normalizeBigInt(stored.TotalValueProcessed),
		TotalTipCount:        stored.TotalTipCount,
		MinTipAmount:         normalizeBigInt(stored.MinTipAmount),
		PlatformFeeBps:       stored.PlatformFeeBps,
		Admin:                stored.Admin,
		PendingAdmin:         stored.PendingAdmin,
		Paused:               stored.Paused,
		TotalBadgesMinted:    stored.TotalBadgesMinted,
		TotalFeesAccumulated: normalizeBigInt(stored.TotalFeesAccumulated),
		RetainedSplitTotal:   normalizeBigInt(stored.RetainedSplitTotal),
	}
	platform.BadgeThresholds = make([]*big.Int, 0, len(stored.BadgeThresholds))
	for _, threshold := range stored.BadgeThresholds {
		platform.BadgeThresholds = append(platform.BadgeThresholds, normalizeBigInt(threshold))
	}
	return platform
}

func tippingProfileFromStored(stored *storedTippingProfile) *tipping.Profile {
	profile := &tipping.Profile{
		Address:      stored.Address,
		Name:         stored.Name,
		Bio:          stored.Bio,
		Category:     stored.Category,
		ImageURL:     stored.ImageURL,
		TipsReceived: normalizeBigInt(stored.TipsReceived),
		TipCount:     stored.TipCount,
		RegisteredAt: stored.RegisteredAt,
	}
	if stored.Split != nil {
		profile.Split = &tipping.RevenueSplit{
			Collaborator: stored.Split.Collaborator,
			Name:         stored.Split.Name,
			Percent:      stored.Split.Percent,
		}
	}
	return profile
}

func tippingBadgeFromStored(stored *storedBadge) *tipping.Badge {
	return &tipping.Badge{
		TokenID:   stored.TokenID,
		Creator:   stored.Creator,
		Supporter: stored.Supporter,
		Tier:      stored.Tier,
		MintedAt:  stored.MintedAt,
	}
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func normalizeBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
