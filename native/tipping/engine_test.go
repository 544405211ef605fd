package tipping

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"tipvault/core/events"
	"tipvault/core/types"
)

type mockState struct {
	platform *PlatformState
	profiles map[[20]byte]*Profile
	creators [][20]byte
	badges   map[[20]byte][]*Badge
	accounts map[string]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		profiles: make(map[[20]byte]*Profile),
		badges:   make(map[[20]byte][]*Badge),
		accounts: make(map[string]*types.Account),
	}
}

func (m *mockState) TippingPlatformGet() (*PlatformState, bool, error) {
	if m.platform == nil {
		return nil, false, nil
	}
	return m.platform.Clone(), true, nil
}

func (m *mockState) TippingPlatformPut(platform *PlatformState) error {
	m.platform = platform.Clone()
	return nil
}

func (m *mockState) TippingProfileGet(addr [20]byte) (*Profile, bool, error) {
	profile, ok := m.profiles[addr]
	if !ok {
		return nil, false, nil
	}
	return profile.Clone(), true, nil
}

func (m *mockState) TippingProfilePut(profile *Profile) error {
	if profile == nil {
		return nil
	}
	m.profiles[profile.Address] = profile.Clone()
	return nil
}

func (m *mockState) TippingCreatorsAppend(addr [20]byte) error {
	for _, existing := range m.creators {
		if existing == addr {
			return nil
		}
	}
	m.creators = append(m.creators, addr)
	return nil
}

func (m *mockState) TippingCreatorsList() ([][20]byte, error) {
	return append([][20]byte(nil), m.creators...), nil
}

func (m *mockState) TippingBadgesList(creator [20]byte) ([]*Badge, error) {
	stored := m.badges[creator]
	out := make([]*Badge, 0, len(stored))
	for _, badge := range stored {
		clone := *badge
		out = append(out, &clone)
	}
	return out, nil
}

func (m *mockState) TippingBadgeAppend(badge *Badge) error {
	if badge == nil {
		return nil
	}
	for _, existing := range m.badges[badge.Creator] {
		if existing.TokenID == badge.TokenID {
			return errors.New("duplicate badge token")
		}
	}
	clone := *badge
	m.badges[badge.Creator] = append(m.badges[badge.Creator], &clone)
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	if acc, ok := m.accounts[string(addr)]; ok && acc != nil {
		return acc.Clone(), nil
	}
	return nil, nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		delete(m.accounts, string(addr))
		return nil
	}
	m.accounts[string(addr)] = account.Clone()
	return nil
}

func (m *mockState) setAccount(addr [20]byte, amount int64) {
	m.accounts[string(addr[:])] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) account(addr [20]byte) *types.Account {
	if acc, ok := m.accounts[string(addr[:])]; ok {
		return acc.Clone()
	}
	return types.NewAccount()
}

type captureEmitter struct {
	events []*types.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	if env, ok := evt.(interface{ Event() *types.Event }); ok {
		c.events = append(c.events, env.Event())
	}
}

func (c *captureEmitter) last() *types.Event {
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

var (
	testAdmin = addr(0xAD)
	testVault = addr(0xFA)
)

func newTestEngine(t *testing.T) (*Engine, *mockState, *captureEmitter) {
	t.Helper()
	state := newMockState()
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	engine.SetVault(testVault)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	if _, err := engine.Initialize(testAdmin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return engine, state, emitter
}

func registerCreator(t *testing.T, engine *Engine, creator [20]byte, name string) {
	t.Helper()
	if _, err := engine.Register(creator, name, "makes things", "art", ""); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func sumBalances(state *mockState, addrs ...[20]byte) *big.Int {
	total := big.NewInt(0)
	for _, a := range addrs {
		total = new(big.Int).Add(total, state.account(a).Balance)
	}
	return total
}

func TestInitializeSeedsDefaults(t *testing.T) {
	engine, state, emitter := newTestEngine(t)

	platform := state.platform
	if platform == nil {
		t.Fatalf("expected platform record after initialize")
	}
	if platform.Admin != testAdmin {
		t.Fatalf("unexpected admin: %x", platform.Admin)
	}
	if platform.Paused {
		t.Fatalf("expected platform to start active")
	}
	if platform.MinTipAmount.Cmp(DefaultMinTipAmount()) != 0 {
		t.Fatalf("unexpected min tip: %s", platform.MinTipAmount)
	}
	if platform.PlatformFeeBps != DefaultPlatformFeeBps {
		t.Fatalf("unexpected fee: %d", platform.PlatformFeeBps)
	}
	if len(platform.BadgeThresholds) != 4 {
		t.Fatalf("expected 4 thresholds, got %d", len(platform.BadgeThresholds))
	}
	for i := 1; i < len(platform.BadgeThresholds); i++ {
		if platform.BadgeThresholds[i].Cmp(platform.BadgeThresholds[i-1]) <= 0 {
			t.Fatalf("thresholds are not ascending")
		}
	}
	if platform.TotalCreators != 0 || platform.TotalTipCount != 0 || platform.TotalBadgesMinted != 0 {
		t.Fatalf("expected zeroed counters: %+v", platform)
	}
	if evt := emitter.last(); evt == nil || evt.Type != EventTypePlatformInitialized {
		t.Fatalf("expected initialization event, got %+v", evt)
	}

	if _, err := engine.Initialize(testAdmin); !errors.Is(err, errAlreadyInitialized) {
		t.Fatalf("expected second initialize to fail, got %v", err)
	}
}

func TestRegisterCreatesProfileOnce(t *testing.T) {
	engine, state, emitter := newTestEngine(t)

	creator := addr(0x01)
	profile, err := engine.Register(creator, "  Aurora  ", "ambient sets", "music", "https://img.example/a.png")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if profile.Name != "Aurora" {
		t.Fatalf("expected trimmed name, got %q", profile.Name)
	}
	if profile.TipsReceived.Sign() != 0 || profile.TipCount != 0 {
		t.Fatalf("expected zeroed counters: %+v", profile)
	}
	if profile.Split != nil {
		t.Fatalf("expected no split on fresh profile")
	}
	if state.platform.TotalCreators != 1 {
		t.Fatalf("expected totalCreators 1, got %d", state.platform.TotalCreators)
	}
	if len(state.creators) != 1 || state.creators[0] != creator {
		t.Fatalf("expected creator registry entry")
	}
	if evt := emitter.last(); evt == nil || evt.Type != EventTypeCreatorRegistered {
		t.Fatalf("expected registration event, got %+v", evt)
	}

	if _, err := engine.Register(creator, "Aurora", "ambient sets", "music", ""); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected duplicate registration rejection, got %v", err)
	}
	if state.platform.TotalCreators != 1 {
		t.Fatalf("duplicate registration must not change totalCreators")
	}
}

func TestRegisterValidation(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creator := addr(0x02)

	longName := make([]rune, MaxNameLen+1)
	for i := range longName {
		longName[i] = 'x'
	}

	cases := []struct {
		label    string
		name     string
		bio      string
		category string
		image    string
	}{
		{"empty name", "", "bio", "art", ""},
		{"empty bio", "name", "", "art", ""},
		{"empty category", "name", "bio", "", ""},
		{"long name", string(longName), "bio", "art", ""},
		{"whitespace name", "   ", "bio", "art", ""},
		{"multibyte category over byte limit", "name", "bio", strings.Repeat("é", 15), ""},
	}
	for _, tc := range cases {
		if _, err := engine.Register(creator, tc.name, tc.bio, tc.category, tc.image); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.label, err)
		}
	}
	if state.platform.TotalCreators != 0 {
		t.Fatalf("rejected registrations must not change totalCreators")
	}
	if len(state.profiles) != 0 {
		t.Fatalf("rejected registrations must not create profiles")
	}

	if _, err := engine.Register([20]byte{}, "name", "bio", "art", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected zero caller rejection, got %v", err)
	}
	if _, err := engine.Register(testVault, "name", "bio", "art", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected vault registration rejection, got %v", err)
	}

	// 10 two-byte runes sit exactly on the 20-byte category bound.
	if _, err := engine.Register(creator, "name", "bio", strings.Repeat("é", 10), ""); err != nil {
		t.Fatalf("category at the byte bound must be accepted: %v", err)
	}
}

func TestUpdateProfileRewritesTextOnly(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creator := addr(0x03)
	registerCreator(t, engine, creator, "Aurora")

	collaborator := addr(0x04)
	if _, err := engine.SetRevenueSplit(creator, collaborator, "mixer", 20); err != nil {
		t.Fatalf("set split: %v", err)
	}

	if _, err := engine.UpdateProfile(creator, "Borealis", "new bio", "video", "https://img.example/b.png"); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	profile := state.profiles[creator]
	if profile.Name != "Borealis" || profile.Category != "video" {
		t.Fatalf("expected rewritten text fields: %+v", profile)
	}
	if profile.Split == nil || profile.Split.Percent != 20 {
		t.Fatalf("update must not touch the revenue split")
	}
	if profile.TipCount != 0 || profile.TipsReceived.Sign() != 0 {
		t.Fatalf("update must not touch counters")
	}

	if _, err := engine.UpdateProfile(addr(0x05), "x", "y", "z", ""); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected unregistered caller rejection, got %v", err)
	}
}

func TestSendTipFeeScenario(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	creator := addr(0x10)
	supporter := addr(0x11)
	registerCreator(t, engine, creator, "Aurora")
	state.setAccount(supporter, 5_000_000)

	if err := engine.SetPlatformFee(testAdmin, 100); err != nil {
		t.Fatalf("set fee: %v", err)
	}

	before := sumBalances(state, supporter, creator, testVault)
	receipt, err := engine.SendTip(&Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(2_000_000)}, creator, "great set")
	if err != nil {
		t.Fatalf("send tip: %v", err)
	}

	if receipt.Fee.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("unexpected fee: %s", receipt.Fee)
	}
	if receipt.CreatorShare.Cmp(big.NewInt(1_980_000)) != 0 {
		t.Fatalf("unexpected creator share: %s", receipt.CreatorShare)
	}
	if receipt.CollabShare.Sign() != 0 {
		t.Fatalf("expected no collaborator share: %s", receipt.CollabShare)
	}
	if new(big.Int).Add(receipt.Fee, receipt.CreatorShare).Cmp(receipt.Amount) != 0 {
		t.Fatalf("fee + afterFee must equal amount")
	}

	profile := state.profiles[creator]
	if profile.TipsReceived.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("tipsReceived must record the gross amount, got %s", profile.TipsReceived)
	}
	if profile.TipCount != 1 {
		t.Fatalf("unexpected tip count: %d", profile.TipCount)
	}
	if state.platform.TotalValueProcessed.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("unexpected totalValueProcessed: %s", state.platform.TotalValueProcessed)
	}
	if state.platform.TotalTipCount != 1 {
		t.Fatalf("unexpected totalTipCount: %d", state.platform.TotalTipCount)
	}
	if state.platform.TotalFeesAccumulated.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("unexpected accumulated fees: %s", state.platform.TotalFeesAccumulated)
	}

	if got := state.account(supporter).Balance; got.Cmp(big.NewInt(3_000_000)) != 0 {
		t.Fatalf("unexpected supporter balance: %s", got)
	}
	if got := state.account(creator).Balance; got.Cmp(big.NewInt(1_980_000)) != 0 {
		t.Fatalf("unexpected creator balance: %s", got)
	}
	if got := state.account(testVault).Balance; got.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("unexpected vault balance: %s", got)
	}
	after := sumBalances(state, supporter, creator, testVault)
	if before.Cmp(after) != 0 {
		t.Fatalf("tip must not create or destroy value: before %s after %s", before, after)
	}
	if evt := emitter.last(); evt == nil || evt.Type != EventTypeTipSent {
		t.Fatalf("expected tip event, got %+v", evt)
	} else if evt.Attributes["message"] != "great set" {
		t.Fatalf("expected message attribute, got %+v", evt.Attributes)
	}
}

func TestSendTipSplitScenario(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creator := addr(0x20)
	supporter := addr(0x21)
	collaborator := addr(0x22)
	registerCreator(t, engine, creator, "Aurora")
	state.setAccount(supporter, 2_000_000)

	if err := engine.SetPlatformFee(testAdmin, 100); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if _, err := engine.SetRevenueSplit(creator, collaborator, "mix engineer", 20); err != nil {
		t.Fatalf("set split: %v", err)
	}

	receipt, err := engine.SendTip(&Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(1_000_000)}, creator, "")
	if err != nil {
		t.Fatalf("send tip: %v", err)
	}
	if receipt.Fee.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("unexpected fee: %s", receipt.Fee)
	}
	if receipt.CollabShare.Cmp(big.NewInt(198_000)) != 0 {
		t.Fatalf("unexpected collaborator share: %s", receipt.CollabShare)
	}
	if receipt.CreatorShare.Cmp(big.NewInt(792_000)) != 0 {
		t.Fatalf("unexpected creator share: %s", receipt.CreatorShare)
	}
	if receipt.Collaborator != collaborator {
		t.Fatalf("unexpected collaborator on receipt")
	}

	// The collaborator share never leaves the vault; it is tracked, not paid.
	if got := state.account(collaborator).Balance; got.Sign() != 0 {
		t.Fatalf("collaborator must not be paid, got %s", got)
	}
	if got := state.account(creator).Balance; got.Cmp(big.NewInt(792_000)) != 0 {
		t.Fatalf("unexpected creator balance: %s", got)
	}
	if got := state.account(testVault).Balance; got.Cmp(big.NewInt(208_000)) != 0 {
		t.Fatalf("vault must retain fee plus collaborator share, got %s", got)
	}
	if state.platform.RetainedSplitTotal.Cmp(big.NewInt(198_000)) != 0 {
		t.Fatalf("unexpected retained split total: %s", state.platform.RetainedSplitTotal)
	}
	if state.profiles[creator].TipsReceived.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("tipsReceived must stay gross")
	}
}

func TestSendTipGuards(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creator := addr(0x30)
	supporter := addr(0x31)
	registerCreator(t, engine, creator, "Aurora")
	state.setAccount(supporter, 10_000_000)

	cases := []struct {
		label   string
		payment *Payment
		target  [20]byte
		want    error
	}{
		{"below minimum", &Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(99_999)}, creator, ErrInsufficientAmount},
		{"unregistered target", &Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(200_000)}, addr(0x99), ErrNotRegistered},
		{"misdirected payment", &Payment{From: supporter, Receiver: addr(0x66), Amount: big.NewInt(200_000)}, creator, ErrIntegrity},
		{"close directive", &Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(200_000), CloseTo: supporter[:]}, creator, ErrIntegrity},
		{"rekey directive", &Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(200_000), RekeyTo: supporter[:]}, creator, ErrIntegrity},
		{"self tip", &Payment{From: creator, Receiver: testVault, Amount: big.NewInt(200_000)}, creator, ErrSelfReference},
	}
	for _, tc := range cases {
		if _, err := engine.SendTip(tc.payment, tc.target, ""); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.label, tc.want, err)
		}
	}

	if state.platform.TotalTipCount != 0 || state.platform.TotalValueProcessed.Sign() != 0 {
		t.Fatalf("rejected tips must not change platform totals")
	}
	if got := state.account(supporter).Balance; got.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("rejected tips must not move funds, got %s", got)
	}
	if profile := state.profiles[creator]; profile.TipCount != 0 || profile.TipsReceived.Sign() != 0 {
		t.Fatalf("rejected tips must not change profile counters")
	}
}

func TestSendTipInsufficientBalance(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creator := addr(0x32)
	supporter := addr(0x33)
	registerCreator(t, engine, creator, "Aurora")
	state.setAccount(supporter, 150_000)

	if _, err := engine.SendTip(&Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(200_000)}, creator, ""); !errors.Is(err, ErrInsufficientAmount) {
		t.Fatalf("expected insufficient balance rejection, got %v", err)
	}
	if got := state.account(supporter).Balance; got.Cmp(big.NewInt(150_000)) != 0 {
		t.Fatalf("balance must be untouched after rejection, got %s", got)
	}
}

func TestPauseGate(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creator := addr(0x40)
	supporter := addr(0x41)
	registerCreator(t, engine, creator, "Aurora")
	state.setAccount(supporter, 1_000_000)

	if err := engine.Pause(addr(0x99)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected non-admin pause rejection, got %v", err)
	}
	if err := engine.Pause(testAdmin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := engine.Pause(testAdmin); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected double pause rejection, got %v", err)
	}

	if _, err := engine.Register(addr(0x42), "n", "b", "c", ""); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected paused register rejection, got %v", err)
	}
	if _, err := engine.SendTip(&Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(200_000)}, creator, ""); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected paused tip rejection, got %v", err)
	}
	if _, err := engine.SetRevenueSplit(creator, addr(0x43), "k", 10); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected paused split rejection, got %v", err)
	}
	if _, err := engine.MintBadge(testAdmin, supporter, TierBronze, creator); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected paused mint rejection, got %v", err)
	}

	stats, err := engine.PlatformStats()
	if err != nil {
		t.Fatalf("stats while paused: %v", err)
	}
	if !stats.Paused {
		t.Fatalf("stats must report the paused flag")
	}

	if err := engine.Unpause(testAdmin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := engine.Unpause(testAdmin); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected double unpause rejection, got %v", err)
	}
	if _, err := engine.Register(addr(0x42), "n", "b", "c", ""); err != nil {
		t.Fatalf("register after unpause: %v", err)
	}
}

func TestAdminHandoff(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	next := addr(0x50)
	stranger := addr(0x51)

	if err := engine.TransferAdmin(stranger, next); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected non-admin transfer rejection, got %v", err)
	}
	if err := engine.TransferAdmin(testAdmin, testAdmin); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected self transfer rejection, got %v", err)
	}
	if err := engine.TransferAdmin(testAdmin, [20]byte{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected zero target rejection, got %v", err)
	}
	if err := engine.AcceptAdmin(next); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected accept without pending rejection, got %v", err)
	}

	if err := engine.TransferAdmin(testAdmin, next); err != nil {
		t.Fatalf("transfer admin: %v", err)
	}
	if state.platform.PendingAdmin != next {
		t.Fatalf("expected pending admin to be recorded")
	}
	if err := engine.AcceptAdmin(stranger); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected stranger accept rejection, got %v", err)
	}
	if err := engine.AcceptAdmin(next); err != nil {
		t.Fatalf("accept admin: %v", err)
	}
	if state.platform.Admin != next {
		t.Fatalf("expected admin handoff to complete")
	}
	if !isZeroAddress(state.platform.PendingAdmin) {
		t.Fatalf("expected pending admin to be cleared")
	}

	// The old admin loses privileges immediately.
	if err := engine.Pause(testAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected old admin to be locked out, got %v", err)
	}
	if err := engine.Pause(next); err != nil {
		t.Fatalf("new admin pause: %v", err)
	}
}

func TestRevenueSplitValidation(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creator := addr(0x60)
	collaborator := addr(0x61)
	registerCreator(t, engine, creator, "Aurora")

	if _, err := engine.SetRevenueSplit(addr(0x62), collaborator, "k", 10); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected unregistered caller rejection, got %v", err)
	}
	if _, err := engine.SetRevenueSplit(creator, collaborator, "k", 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected zero percent rejection, got %v", err)
	}
	if _, err := engine.SetRevenueSplit(creator, collaborator, "k", 51); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected oversized percent rejection, got %v", err)
	}
	if _, err := engine.SetRevenueSplit(creator, [20]byte{}, "k", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected zero collaborator rejection, got %v", err)
	}
	if _, err := engine.SetRevenueSplit(creator, creator, "k", 10); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected self collaborator rejection, got %v", err)
	}
	if _, err := engine.SetRevenueSplit(creator, collaborator, "   ", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected empty name rejection, got %v", err)
	}

	if _, err := engine.SetRevenueSplit(creator, collaborator, "mix engineer", 50); err != nil {
		t.Fatalf("set split: %v", err)
	}
	split := state.profiles[creator].Split
	if split == nil || split.Percent != 50 || split.Collaborator != collaborator {
		t.Fatalf("unexpected stored split: %+v", split)
	}

	if _, err := engine.RemoveRevenueSplit(creator); err != nil {
		t.Fatalf("remove split: %v", err)
	}
	if state.profiles[creator].Split != nil {
		t.Fatalf("expected split to be cleared")
	}
	if _, err := engine.RemoveRevenueSplit(creator); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected absent split rejection, got %v", err)
	}
	if _, err := engine.RemoveRevenueSplit(addr(0x62)); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected unregistered removal rejection, got %v", err)
	}
}

func TestMintBadge(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	creator := addr(0x70)
	supporter := addr(0x71)
	registerCreator(t, engine, creator, "Aurora")

	if _, err := engine.MintBadge(addr(0x72), supporter, TierBronze, creator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected stranger mint rejection, got %v", err)
	}
	if _, err := engine.MintBadge(testAdmin, supporter, 0, creator); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected tier 0 rejection, got %v", err)
	}
	if _, err := engine.MintBadge(testAdmin, supporter, 5, creator); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected tier 5 rejection, got %v", err)
	}
	if _, err := engine.MintBadge(testAdmin, supporter, TierBronze, addr(0x73)); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected unregistered creator rejection, got %v", err)
	}

	first, err := engine.MintBadge(testAdmin, supporter, TierBronze, creator)
	if err != nil {
		t.Fatalf("admin mint: %v", err)
	}
	second, err := engine.MintBadge(creator, supporter, TierDiamond, creator)
	if err != nil {
		t.Fatalf("creator mint: %v", err)
	}
	if first.TokenID == second.TokenID {
		t.Fatalf("token ids must be unique")
	}
	if state.platform.TotalBadgesMinted != 2 {
		t.Fatalf("unexpected totalBadgesMinted: %d", state.platform.TotalBadgesMinted)
	}
	badges, err := engine.Badges(creator)
	if err != nil {
		t.Fatalf("badges: %v", err)
	}
	if len(badges) != 2 {
		t.Fatalf("expected 2 badges, got %d", len(badges))
	}
	if evt := emitter.last(); evt == nil || evt.Type != EventTypeBadgeMinted {
		t.Fatalf("expected badge event, got %+v", evt)
	} else if evt.Attributes["tierName"] != "Diamond" {
		t.Fatalf("expected tier name attribute, got %+v", evt.Attributes)
	}
}

func TestAdminSettings(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	stranger := addr(0x80)

	if err := engine.SetMinTipAmount(stranger, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected non-admin rejection, got %v", err)
	}
	if err := engine.SetMinTipAmount(testAdmin, big.NewInt(0)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected zero minimum rejection, got %v", err)
	}
	if err := engine.SetMinTipAmount(testAdmin, big.NewInt(-5)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected negative minimum rejection, got %v", err)
	}
	if err := engine.SetMinTipAmount(testAdmin, big.NewInt(50_000)); err != nil {
		t.Fatalf("set min tip: %v", err)
	}
	if state.platform.MinTipAmount.Cmp(big.NewInt(50_000)) != 0 {
		t.Fatalf("unexpected stored minimum: %s", state.platform.MinTipAmount)
	}

	if err := engine.SetPlatformFee(testAdmin, MaxPlatformFeeBps+1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected oversized fee rejection, got %v", err)
	}
	if err := engine.SetPlatformFee(testAdmin, MaxPlatformFeeBps); err != nil {
		t.Fatalf("set max fee: %v", err)
	}
	if err := engine.SetPlatformFee(testAdmin, 0); err != nil {
		t.Fatalf("zero fee must be allowed: %v", err)
	}

	bad := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(2), big.NewInt(4)}
	if err := engine.SetBadgeThresholds(testAdmin, bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected non-ascending rejection, got %v", err)
	}
	if err := engine.SetBadgeThresholds(testAdmin, bad[:3]); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected wrong arity rejection, got %v", err)
	}
	good := []*big.Int{big.NewInt(10), big.NewInt(20), big.NewInt(30), big.NewInt(40)}
	if err := engine.SetBadgeThresholds(testAdmin, good); err != nil {
		t.Fatalf("set thresholds: %v", err)
	}
	gold, err := engine.ThresholdForTier(TierGold)
	if err != nil {
		t.Fatalf("threshold for tier: %v", err)
	}
	if gold.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("unexpected gold threshold: %s", gold)
	}
	if _, err := engine.ThresholdForTier(9); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected invalid tier rejection, got %v", err)
	}
}

func TestWithdrawPlatformFees(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creator := addr(0x90)
	supporter := addr(0x91)
	registerCreator(t, engine, creator, "Aurora")
	state.setAccount(supporter, 10_000_000)

	if err := engine.SetPlatformFee(testAdmin, 100); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if _, err := engine.SendTip(&Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(2_000_000)}, creator, ""); err != nil {
		t.Fatalf("send tip: %v", err)
	}
	// Vault now holds the 20,000 fee, below the reserve floor.
	if _, err := engine.WithdrawPlatformFees(testAdmin, big.NewInt(20_000)); !errors.Is(err, ErrInsufficientAmount) {
		t.Fatalf("expected reserve breach rejection, got %v", err)
	}

	vaultAcc := state.account(testVault)
	vaultAcc.Balance = new(big.Int).Add(vaultAcc.Balance, big.NewInt(200_000))
	if err := state.PutAccount(testVault[:], vaultAcc); err != nil {
		t.Fatalf("seed vault: %v", err)
	}

	if _, err := engine.WithdrawPlatformFees(addr(0x92), big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected non-admin rejection, got %v", err)
	}
	if _, err := engine.WithdrawPlatformFees(testAdmin, big.NewInt(0)); !errors.Is(err, ErrInsufficientAmount) {
		t.Fatalf("expected zero amount rejection, got %v", err)
	}
	if _, err := engine.WithdrawPlatformFees(testAdmin, big.NewInt(20_001)); !errors.Is(err, ErrInsufficientAmount) {
		t.Fatalf("expected over-withdrawal rejection, got %v", err)
	}

	remaining, err := engine.WithdrawPlatformFees(testAdmin, big.NewInt(20_000))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if remaining.Sign() != 0 {
		t.Fatalf("expected no fees remaining, got %s", remaining)
	}
	if got := state.account(testAdmin).Balance; got.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("unexpected admin balance: %s", got)
	}
	if state.platform.TotalFeesAccumulated.Sign() != 0 {
		t.Fatalf("expected fees accumulator drained")
	}
}

func TestConservationAcrossTips(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creatorA := addr(0xA0)
	creatorB := addr(0xA1)
	supporter := addr(0xA2)
	collaborator := addr(0xA3)
	registerCreator(t, engine, creatorA, "Aurora")
	registerCreator(t, engine, creatorB, "Borealis")
	state.setAccount(supporter, 50_000_000)

	if _, err := engine.SetRevenueSplit(creatorB, collaborator, "mixer", 33); err != nil {
		t.Fatalf("set split: %v", err)
	}

	before := sumBalances(state, supporter, creatorA, creatorB, collaborator, testVault)
	amounts := []int64{100_000, 250_000, 1_000_000, 7_777_777}
	for i, amount := range amounts {
		target := creatorA
		if i%2 == 1 {
			target = creatorB
		}
		if _, err := engine.SendTip(&Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(amount)}, target, ""); err != nil {
			t.Fatalf("tip %d: %v", i, err)
		}
	}
	after := sumBalances(state, supporter, creatorA, creatorB, collaborator, testVault)
	if before.Cmp(after) != 0 {
		t.Fatalf("value must be conserved: before %s after %s", before, after)
	}

	sumReceived := big.NewInt(0)
	var sumCount uint64
	for _, profile := range state.profiles {
		sumReceived = new(big.Int).Add(sumReceived, profile.TipsReceived)
		sumCount += profile.TipCount
	}
	if sumReceived.Cmp(state.platform.TotalValueProcessed) != 0 {
		t.Fatalf("sum(tipsReceived) %s != totalValueProcessed %s", sumReceived, state.platform.TotalValueProcessed)
	}
	if sumCount != state.platform.TotalTipCount {
		t.Fatalf("sum(tipCount) %d != totalTipCount %d", sumCount, state.platform.TotalTipCount)
	}

	// Everything the vault kept is either fees or retained collaborator shares.
	vaultBalance := state.account(testVault).Balance
	tracked := new(big.Int).Add(state.platform.TotalFeesAccumulated, state.platform.RetainedSplitTotal)
	if vaultBalance.Cmp(tracked) != 0 {
		t.Fatalf("vault balance %s != fees + retained %s", vaultBalance, tracked)
	}
}

func TestQueriesRejectUnregistered(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	stranger := addr(0xB0)

	if _, err := engine.CreatorName(stranger); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected name query rejection, got %v", err)
	}
	if _, err := engine.TipsReceived(stranger); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected tips query rejection, got %v", err)
	}
	if _, err := engine.TipRecord(stranger); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected record query rejection, got %v", err)
	}
	if _, err := engine.RevenueSplitPercent(stranger); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected split query rejection, got %v", err)
	}
	if _, err := engine.Badges(stranger); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected badges query rejection, got %v", err)
	}
	registered, err := engine.IsRegistered(stranger)
	if err != nil {
		t.Fatalf("isRegistered must not error: %v", err)
	}
	if registered {
		t.Fatalf("stranger must not be registered")
	}
}

func TestTipRecordMatchesProfile(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	creator := addr(0xC0)
	supporter := addr(0xC1)
	registerCreator(t, engine, creator, "Aurora")
	state.setAccount(supporter, 1_000_000)

	if _, err := engine.SendTip(&Payment{From: supporter, Receiver: testVault, Amount: big.NewInt(500_000)}, creator, ""); err != nil {
		t.Fatalf("send tip: %v", err)
	}
	record, err := engine.TipRecord(creator)
	if err != nil {
		t.Fatalf("tip record: %v", err)
	}
	if record.TipsReceived.Cmp(big.NewInt(500_000)) != 0 || record.TipCount != 1 {
		t.Fatalf("unexpected record: %+v", record)
	}
}
