package state

import (
	"math/big"
	"testing"

	"tipvault/native/tipping"
	"tipvault/storage"
)

func testAddr(b byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = b
	}
	return addr
}

func TestTippingPlatformRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if _, ok, err := mgr.TippingPlatformGet(); err != nil {
		t.Fatalf("get platform: %v", err)
	} else if ok {
		t.Fatalf("expected platform to be absent before initialisation")
	}

	platform := &tipping.PlatformState{
		TotalCreators:       2,
		TotalValueProcessed: big.NewInt(5_000_000),
		TotalTipCount:       9,
		MinTipAmount:        big.NewInt(100_000),
		PlatformFeeBps:      250,
		BadgeThresholds: []*big.Int{
			big.NewInt(1_000_000),
			big.NewInt(10_000_000),
			big.NewInt(100_000_000),
			big.NewInt(1_000_000_000),
		},
		Admin:                testAddr(0x0a),
		PendingAdmin:         testAddr(0x0b),
		Paused:               true,
		TotalBadgesMinted:    4,
		TotalFeesAccumulated: big.NewInt(12_500),
		RetainedSplitTotal:   big.NewInt(300),
	}
	if err := mgr.TippingPlatformPut(platform); err != nil {
		t.Fatalf("put platform: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reloaded, ok, err := NewManager(db).TippingPlatformGet()
	if err != nil {
		t.Fatalf("reload platform: %v", err)
	}
	if !ok {
		t.Fatalf("expected platform record after commit")
	}
	if reloaded.TotalCreators != 2 || reloaded.TotalTipCount != 9 {
		t.Fatalf("unexpected counters: %+v", reloaded)
	}
	if reloaded.TotalValueProcessed.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("unexpected total value: %s", reloaded.TotalValueProcessed)
	}
	if !reloaded.Paused {
		t.Fatalf("expected paused flag to persist")
	}
	if reloaded.Admin != testAddr(0x0a) || reloaded.PendingAdmin != testAddr(0x0b) {
		t.Fatalf("unexpected admin fields")
	}
	if len(reloaded.BadgeThresholds) != 4 {
		t.Fatalf("expected 4 thresholds, got %d", len(reloaded.BadgeThresholds))
	}
	if reloaded.BadgeThresholds[3].Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("unexpected diamond threshold: %s", reloaded.BadgeThresholds[3])
	}
	if reloaded.RetainedSplitTotal.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("unexpected retained split total: %s", reloaded.RetainedSplitTotal)
	}
}

func TestTippingProfileRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	creator := testAddr(0x11)
	if _, ok, err := mgr.TippingProfileGet(creator); err != nil {
		t.Fatalf("get profile: %v", err)
	} else if ok {
		t.Fatalf("expected profile to be absent before registration")
	}

	profile := &tipping.Profile{
		Address:      creator,
		Name:         "aurora",
		Bio:          "ambient sets",
		Category:     "music",
		ImageURL:     "https://img.example/aurora.png",
		TipsReceived: big.NewInt(42),
		TipCount:     1,
		RegisteredAt: 1_700_000_000,
	}
	if err := mgr.TippingProfilePut(profile); err != nil {
		t.Fatalf("put profile: %v", err)
	}

	reloaded, ok, err := mgr.TippingProfileGet(creator)
	if err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if !ok {
		t.Fatalf("expected profile after put")
	}
	if reloaded.Name != "aurora" || reloaded.Category != "music" {
		t.Fatalf("unexpected profile fields: %+v", reloaded)
	}
	if reloaded.Split != nil {
		t.Fatalf("expected no revenue split on fresh profile")
	}

	profile.Split = &tipping.RevenueSplit{
		Collaborator: testAddr(0x22),
		Name:         "mix engineer",
		Percent:      20,
	}
	if err := mgr.TippingProfilePut(profile); err != nil {
		t.Fatalf("put profile with split: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reloaded, ok, err = NewManager(db).TippingProfileGet(creator)
	if err != nil {
		t.Fatalf("reload committed profile: %v", err)
	}
	if !ok || reloaded.Split == nil {
		t.Fatalf("expected persisted revenue split")
	}
	if reloaded.Split.Percent != 20 || reloaded.Split.Collaborator != testAddr(0x22) {
		t.Fatalf("unexpected split: %+v", reloaded.Split)
	}
}

func TestTippingCreatorsRegistry(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	first := testAddr(0x31)
	second := testAddr(0x32)
	if err := mgr.TippingCreatorsAppend(first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := mgr.TippingCreatorsAppend(first); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	if err := mgr.TippingCreatorsAppend(second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	creators, err := mgr.TippingCreatorsList()
	if err != nil {
		t.Fatalf("list creators: %v", err)
	}
	if len(creators) != 2 {
		t.Fatalf("expected 2 creators, got %d", len(creators))
	}
	if creators[0] != first || creators[1] != second {
		t.Fatalf("unexpected registry order: %v", creators)
	}
}

func TestTippingBadgeAppendRejectsDuplicateToken(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	creator := testAddr(0x41)
	badge := &tipping.Badge{
		Creator:   creator,
		Supporter: testAddr(0x42),
		Tier:      2,
		MintedAt:  1_700_000_100,
	}
	badge.TokenID[0] = 0xfe

	if err := mgr.TippingBadgeAppend(badge); err != nil {
		t.Fatalf("append badge: %v", err)
	}
	if err := mgr.TippingBadgeAppend(badge); err == nil {
		t.Fatalf("expected duplicate token id to be rejected")
	}

	badges, err := mgr.TippingBadgesList(creator)
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	if len(badges) != 1 {
		t.Fatalf("expected 1 badge, got %d", len(badges))
	}
	if badges[0].Tier != 2 || badges[0].Supporter != testAddr(0x42) {
		t.Fatalf("unexpected badge: %+v", badges[0])
	}
}
