package tipping

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"lukechampine.com/blake3"

	"tipvault/core/events"
	"tipvault/core/types"
)

type engineState interface {
	TippingPlatformGet() (*PlatformState, bool, error)
	TippingPlatformPut(platform *PlatformState) error
	TippingProfileGet(addr [20]byte) (*Profile, bool, error)
	TippingProfilePut(profile *Profile) error
	TippingCreatorsAppend(addr [20]byte) error
	TippingCreatorsList() ([][20]byte, error)
	TippingBadgesList(creator [20]byte) ([]*Badge, error)
	TippingBadgeAppend(badge *Badge) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine wires the tipping platform's business logic with persistence and
// event emission. Every mutating call runs its guards before touching state
// so a rejection leaves nothing behind.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	vault   [20]byte
}

// NewEngine constructs a tipping engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetVault configures the platform's own account, the required receiver of
// every tip payment and the holder of accumulated fees.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// Vault returns the platform account tips must be directed to.
func (e *Engine) Vault() [20]byte { return e.vault }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) nowUnix() uint64 {
	ts := e.now()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return types.NewAccount()
	}
	acc.Normalize()
	return acc
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func validateText(field string, value string, max int, required bool) (string, error) {
	normalized := normalizeText(value)
	if normalized == "" {
		if required {
			return "", fmt.Errorf("%w: %s must not be empty", ErrValidation, field)
		}
		return "", nil
	}
	if len(normalized) > max {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrValidation, field, max)
	}
	return normalized, nil
}

func badgeTokenID(creator [20]byte, supporter [20]byte, tier uint8, seq uint64) [32]byte {
	buf := bytes.NewBuffer(nil)
	buf.Write(creator[:])
	buf.Write(supporter[:])
	buf.WriteByte(tier)
	_ = binary.Write(buf, binary.BigEndian, seq)
	return blake3.Sum256(buf.Bytes())
}

func (e *Engine) loadPlatform() (*PlatformState, error) {
	platform, ok, err := e.state.TippingPlatformGet()
	if err != nil {
		return nil, err
	}
	if !ok || platform == nil {
		return nil, fmt.Errorf("%w: platform not initialized", ErrIntegrity)
	}
	return platform, nil
}

func guardNotPaused(platform *PlatformState) error {
	if platform.Paused {
		return ErrPaused
	}
	return nil
}

func guardAdmin(platform *PlatformState, caller [20]byte) error {
	if caller != platform.Admin {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) loadRegistered(addr [20]byte) (*Profile, error) {
	profile, ok, err := e.state.TippingProfileGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || profile == nil {
		return nil, ErrNotRegistered
	}
	return profile, nil
}

// Initialize seeds the singleton platform record exactly once and installs
// the initializing caller as admin.
func (e *Engine) Initialize(admin [20]byte) (*PlatformState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(admin) {
		return nil, fmt.Errorf("%w: admin address must not be zero", ErrValidation)
	}
	if _, ok, err := e.state.TippingPlatformGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, errAlreadyInitialized
	}
	platform := &PlatformState{
		TotalValueProcessed:  big.NewInt(0),
		MinTipAmount:         DefaultMinTipAmount(),
		PlatformFeeBps:       DefaultPlatformFeeBps,
		BadgeThresholds:      DefaultBadgeThresholds(),
		Admin:                admin,
		TotalFeesAccumulated: big.NewInt(0),
		RetainedSplitTotal:   big.NewInt(0),
	}
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return nil, err
	}
	e.emit(PlatformInitializedEvent(hexAddr(admin)))
	return platform, nil
}

// Register creates the caller's creator profile. Name, bio and category are
// required; the image URL may be empty.
func (e *Engine) Register(caller [20]byte, name, bio, category, imageURL string) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := guardNotPaused(platform); err != nil {
		return nil, err
	}
	if isZeroAddress(caller) {
		return nil, fmt.Errorf("%w: caller address must not be zero", ErrValidation)
	}
	if caller == e.vault {
		return nil, fmt.Errorf("%w: the platform vault cannot register", ErrValidation)
	}
	name, err = validateText("name", name, MaxNameLen, true)
	if err != nil {
		return nil, err
	}
	bio, err = validateText("bio", bio, MaxBioLen, true)
	if err != nil {
		return nil, err
	}
	category, err = validateText("category", category, MaxCategoryLen, true)
	if err != nil {
		return nil, err
	}
	imageURL, err = validateText("image url", imageURL, MaxImageURLLen, false)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.TippingProfileGet(caller); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyRegistered
	}
	profile := &Profile{
		Address:      caller,
		Name:         name,
		Bio:          bio,
		Category:     category,
		ImageURL:     imageURL,
		TipsReceived: big.NewInt(0),
		RegisteredAt: e.nowUnix(),
	}
	if err := e.state.TippingProfilePut(profile); err != nil {
		return nil, err
	}
	if err := e.state.TippingCreatorsAppend(caller); err != nil {
		return nil, err
	}
	platform.TotalCreators++
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return nil, err
	}
	e.emit(CreatorRegisteredEvent(hexAddr(caller), profile.Name, profile.Category))
	return profile, nil
}

// UpdateProfile rewrites the caller's profile text. Counters and the revenue
// split are never touched here.
func (e *Engine) UpdateProfile(caller [20]byte, name, bio, category, imageURL string) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := guardNotPaused(platform); err != nil {
		return nil, err
	}
	profile, err := e.loadRegistered(caller)
	if err != nil {
		return nil, err
	}
	name, err = validateText("name", name, MaxNameLen, true)
	if err != nil {
		return nil, err
	}
	bio, err = validateText("bio", bio, MaxBioLen, true)
	if err != nil {
		return nil, err
	}
	category, err = validateText("category", category, MaxCategoryLen, true)
	if err != nil {
		return nil, err
	}
	imageURL, err = validateText("image url", imageURL, MaxImageURLLen, false)
	if err != nil {
		return nil, err
	}
	profile.Name = name
	profile.Bio = bio
	profile.Category = category
	profile.ImageURL = imageURL
	if err := e.state.TippingProfilePut(profile); err != nil {
		return nil, err
	}
	e.emit(ProfileUpdatedEvent(hexAddr(caller), profile.Name))
	return profile, nil
}

// SendTip accepts a payment directed at the platform vault and divides it
// between the platform fee, the creator and an optional collaborator share.
// Guards run in a fixed order: pause, target registration, minimum amount,
// payment destination, directive fields, self-tip.
func (e *Engine) SendTip(payment *Payment, creator [20]byte, message string) (*TipReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: payment required", ErrValidation)
	}
	if isZeroAddress(e.vault) {
		return nil, errVaultNotSet
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := guardNotPaused(platform); err != nil {
		return nil, err
	}
	profile, err := e.loadRegistered(creator)
	if err != nil {
		return nil, err
	}
	amount := payment.Amount
	if amount == nil {
		return nil, fmt.Errorf("%w: tip amount required", ErrValidation)
	}
	if amount.Cmp(platform.MinTipAmount) < 0 {
		return nil, fmt.Errorf("%w: tip %s below minimum %s", ErrInsufficientAmount, amount, platform.MinTipAmount)
	}
	if payment.Receiver != e.vault {
		return nil, fmt.Errorf("%w: payment receiver is not the platform vault", ErrIntegrity)
	}
	if len(payment.CloseTo) != 0 {
		return nil, fmt.Errorf("%w: payment carries a close-to directive", ErrIntegrity)
	}
	if len(payment.RekeyTo) != 0 {
		return nil, fmt.Errorf("%w: payment carries a rekey directive", ErrIntegrity)
	}
	if payment.From == creator {
		return nil, fmt.Errorf("%w: creators cannot tip themselves", ErrSelfReference)
	}
	if payment.From == e.vault {
		return nil, fmt.Errorf("%w: the platform vault cannot tip", ErrValidation)
	}
	message, err = validateText("message", message, MaxTipMessageLen, false)
	if err != nil {
		return nil, err
	}

	supporterAcc, err := e.state.GetAccount(payment.From[:])
	if err != nil {
		return nil, err
	}
	supporterAcc = ensureAccount(supporterAcc)
	if supporterAcc.Balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: supporter balance %s below tip amount %s", ErrInsufficientAmount, supporterAcc.Balance, amount)
	}

	fee, afterFee := splitFee(amount, platform.PlatformFeeBps)
	collabShare := big.NewInt(0)
	creatorShare := afterFee
	var collaborator [20]byte
	if profile.Split != nil && profile.Split.Percent > 0 {
		collabShare, creatorShare = splitShares(afterFee, profile.Split.Percent)
		collaborator = profile.Split.Collaborator
	}

	// The gross amount lands in the vault and only the creator share is paid
	// back out. The fee stays behind, tracked by TotalFeesAccumulated, and so
	// does the collaborator share, tracked by RetainedSplitTotal.
	// TODO: pay collabShare out to the collaborator once the payout policy
	// for retained shares is settled.
	supporterAcc.Balance = new(big.Int).Sub(supporterAcc.Balance, amount)
	vaultAcc, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return nil, err
	}
	vaultAcc = ensureAccount(vaultAcc)
	vaultAcc.Balance = new(big.Int).Add(vaultAcc.Balance, amount)
	vaultAcc.Balance = new(big.Int).Sub(vaultAcc.Balance, creatorShare)
	creatorAcc, err := e.state.GetAccount(creator[:])
	if err != nil {
		return nil, err
	}
	creatorAcc = ensureAccount(creatorAcc)
	creatorAcc.Balance = new(big.Int).Add(creatorAcc.Balance, creatorShare)

	if err := e.state.PutAccount(payment.From[:], supporterAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.vault[:], vaultAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(creator[:], creatorAcc); err != nil {
		return nil, err
	}

	profile.TipsReceived = new(big.Int).Add(newBigInt(profile.TipsReceived), amount)
	profile.TipCount++
	if err := e.state.TippingProfilePut(profile); err != nil {
		return nil, err
	}
	platform.TotalValueProcessed = new(big.Int).Add(newBigInt(platform.TotalValueProcessed), amount)
	platform.TotalTipCount++
	platform.TotalFeesAccumulated = new(big.Int).Add(newBigInt(platform.TotalFeesAccumulated), fee)
	if collabShare.Sign() > 0 {
		platform.RetainedSplitTotal = new(big.Int).Add(newBigInt(platform.RetainedSplitTotal), collabShare)
	}
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return nil, err
	}

	e.emit(TipSentEvent(hexAddr(creator), hexAddr(payment.From), amount.String(), fee.String(), creatorShare.String(), collabShare.String(), message))
	return &TipReceipt{
		Creator:      creator,
		Supporter:    payment.From,
		Amount:       newBigInt(amount),
		Fee:          fee,
		CreatorShare: creatorShare,
		CollabShare:  collabShare,
		Collaborator: collaborator,
		TippedAt:     e.nowUnix(),
	}, nil
}

// SetRevenueSplit configures a collaborator share on the caller's profile.
// The split only changes configuration; value moves at the next tip.
func (e *Engine) SetRevenueSplit(caller [20]byte, collaborator [20]byte, name string, percent uint8) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := guardNotPaused(platform); err != nil {
		return nil, err
	}
	profile, err := e.loadRegistered(caller)
	if err != nil {
		return nil, err
	}
	if percent < MinSplitPercent || percent > MaxSplitPercent {
		return nil, fmt.Errorf("%w: split percent must be between %d and %d", ErrValidation, MinSplitPercent, MaxSplitPercent)
	}
	if isZeroAddress(collaborator) {
		return nil, fmt.Errorf("%w: collaborator address must not be zero", ErrValidation)
	}
	if collaborator == caller {
		return nil, fmt.Errorf("%w: collaborator must differ from the creator", ErrSelfReference)
	}
	name, err = validateText("collaborator name", name, MaxNameLen, true)
	if err != nil {
		return nil, err
	}
	profile.Split = &RevenueSplit{
		Collaborator: collaborator,
		Name:         name,
		Percent:      percent,
	}
	if err := e.state.TippingProfilePut(profile); err != nil {
		return nil, err
	}
	e.emit(RevenueSplitSetEvent(hexAddr(caller), hexAddr(collaborator), name, strconv.Itoa(int(percent))))
	return profile, nil
}

// RemoveRevenueSplit clears the caller's collaborator split. A profile with
// no split configured has nothing to clear and the call is rejected.
func (e *Engine) RemoveRevenueSplit(caller [20]byte) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := guardNotPaused(platform); err != nil {
		return nil, err
	}
	profile, err := e.loadRegistered(caller)
	if err != nil {
		return nil, err
	}
	if profile.Split == nil {
		return nil, fmt.Errorf("%w: no revenue split configured", ErrValidation)
	}
	profile.Split = nil
	if err := e.state.TippingProfilePut(profile); err != nil {
		return nil, err
	}
	e.emit(RevenueSplitRemovedEvent(hexAddr(caller)))
	return profile, nil
}

// MintBadge mints an appreciation token for a supporter against a registered
// creator. Only the admin or the creator themselves may mint, and no
// threshold is verified on-chain; the tier claim is the caller's
// responsibility.
func (e *Engine) MintBadge(caller [20]byte, supporter [20]byte, tier uint8, creator [20]byte) (*Badge, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := guardNotPaused(platform); err != nil {
		return nil, err
	}
	if caller != platform.Admin && caller != creator {
		return nil, ErrUnauthorized
	}
	tierName, ok := BadgeTierName(tier)
	if !ok {
		return nil, fmt.Errorf("%w: tier must be between %d and %d", ErrValidation, TierBronze, TierDiamond)
	}
	if isZeroAddress(supporter) {
		return nil, fmt.Errorf("%w: supporter address must not be zero", ErrValidation)
	}
	if _, err := e.loadRegistered(creator); err != nil {
		return nil, err
	}
	badge := &Badge{
		TokenID:   badgeTokenID(creator, supporter, tier, platform.TotalBadgesMinted),
		Creator:   creator,
		Supporter: supporter,
		Tier:      tier,
		MintedAt:  e.nowUnix(),
	}
	if err := e.state.TippingBadgeAppend(badge); err != nil {
		return nil, err
	}
	platform.TotalBadgesMinted++
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return nil, err
	}
	e.emit(BadgeMintedEvent(hex.EncodeToString(badge.TokenID[:]), hexAddr(creator), hexAddr(supporter), strconv.Itoa(int(tier)), tierName))
	return badge, nil
}

// Pause engages the circuit breaker.
func (e *Engine) Pause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if err := guardAdmin(platform, caller); err != nil {
		return err
	}
	if platform.Paused {
		return fmt.Errorf("%w: platform already paused", ErrValidation)
	}
	platform.Paused = true
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return err
	}
	e.emit(PlatformPausedEvent(hexAddr(caller)))
	return nil
}

// Unpause releases the circuit breaker.
func (e *Engine) Unpause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if err := guardAdmin(platform, caller); err != nil {
		return err
	}
	if !platform.Paused {
		return fmt.Errorf("%w: platform is not paused", ErrValidation)
	}
	platform.Paused = false
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return err
	}
	e.emit(PlatformUnpausedEvent(hexAddr(caller)))
	return nil
}

// TransferAdmin proposes a new admin. The handoff only completes when the
// proposed identity calls AcceptAdmin, so a mistyped target cannot lock out
// control.
func (e *Engine) TransferAdmin(caller [20]byte, newAdmin [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if err := guardAdmin(platform, caller); err != nil {
		return err
	}
	if isZeroAddress(newAdmin) {
		return fmt.Errorf("%w: new admin address must not be zero", ErrValidation)
	}
	if newAdmin == platform.Admin {
		return fmt.Errorf("%w: new admin matches the current admin", ErrSelfReference)
	}
	platform.PendingAdmin = newAdmin
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return err
	}
	e.emit(AdminPendingEvent(hexAddr(platform.Admin), hexAddr(newAdmin)))
	return nil
}

// AcceptAdmin completes a proposed handoff. Only the pending identity may
// accept; the previous admin loses privileges immediately.
func (e *Engine) AcceptAdmin(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if isZeroAddress(platform.PendingAdmin) {
		return fmt.Errorf("%w: no admin transfer pending", ErrValidation)
	}
	if caller != platform.PendingAdmin {
		return ErrUnauthorized
	}
	previous := platform.Admin
	platform.Admin = caller
	platform.PendingAdmin = [20]byte{}
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return err
	}
	e.emit(AdminAcceptedEvent(hexAddr(previous), hexAddr(caller)))
	return nil
}

// SetMinTipAmount rewrites the minimum accepted tip.
func (e *Engine) SetMinTipAmount(caller [20]byte, value *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if err := guardAdmin(platform, caller); err != nil {
		return err
	}
	if value == nil || value.Sign() <= 0 {
		return fmt.Errorf("%w: minimum tip must be positive", ErrValidation)
	}
	platform.MinTipAmount = new(big.Int).Set(value)
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return err
	}
	e.emit(ParamsUpdatedEvent("minTipAmount", value.String()))
	return nil
}

// SetPlatformFee rewrites the fee rate, capped at 10%.
func (e *Engine) SetPlatformFee(caller [20]byte, bps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if err := guardAdmin(platform, caller); err != nil {
		return err
	}
	if bps > MaxPlatformFeeBps {
		return fmt.Errorf("%w: fee must not exceed %d bps", ErrValidation, MaxPlatformFeeBps)
	}
	platform.PlatformFeeBps = bps
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return err
	}
	e.emit(ParamsUpdatedEvent("platformFeeBps", strconv.FormatUint(uint64(bps), 10)))
	return nil
}

// SetBadgeThresholds rewrites the four reference tier thresholds. They must
// be positive and strictly ascending.
func (e *Engine) SetBadgeThresholds(caller [20]byte, thresholds []*big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return err
	}
	if err := guardAdmin(platform, caller); err != nil {
		return err
	}
	if len(thresholds) != badgeTierCount {
		return fmt.Errorf("%w: exactly %d thresholds required", ErrValidation, badgeTierCount)
	}
	clean := make([]*big.Int, 0, badgeTierCount)
	for i, threshold := range thresholds {
		if threshold == nil || threshold.Sign() <= 0 {
			return fmt.Errorf("%w: threshold %d must be positive", ErrValidation, i+1)
		}
		if i > 0 && threshold.Cmp(clean[i-1]) <= 0 {
			return fmt.Errorf("%w: thresholds must be strictly ascending", ErrValidation)
		}
		clean = append(clean, new(big.Int).Set(threshold))
	}
	platform.BadgeThresholds = clean
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return err
	}
	values := make([]string, 0, len(clean))
	for _, threshold := range clean {
		values = append(values, threshold.String())
	}
	e.emit(ParamsUpdatedEvent("badgeThresholds", strings.Join(values, ",")))
	return nil
}

// WithdrawPlatformFees pays accumulated fees out of the vault to the admin.
// The vault must keep its minimum reserve after the withdrawal. Returns the
// fees remaining.
func (e *Engine) WithdrawPlatformFees(caller [20]byte, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(e.vault) {
		return nil, errVaultNotSet
	}
	platform, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if err := guardAdmin(platform, caller); err != nil {
		return nil, err
	}
	if amount == nil {
		return nil, fmt.Errorf("%w: withdrawal amount required", ErrValidation)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: withdrawal must be positive", ErrInsufficientAmount)
	}
	accumulated := newBigInt(platform.TotalFeesAccumulated)
	if amount.Cmp(accumulated) > 0 {
		return nil, fmt.Errorf("%w: withdrawal %s exceeds accumulated fees %s", ErrInsufficientAmount, amount, accumulated)
	}
	vaultAcc, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return nil, err
	}
	vaultAcc = ensureAccount(vaultAcc)
	remaining := new(big.Int).Sub(vaultAcc.Balance, amount)
	if remaining.Cmp(vaultReserve) < 0 {
		return nil, fmt.Errorf("%w: withdrawal would drop the vault below its reserve of %s", ErrInsufficientAmount, vaultReserve)
	}
	adminAcc, err := e.state.GetAccount(caller[:])
	if err != nil {
		return nil, err
	}
	adminAcc = ensureAccount(adminAcc)
	vaultAcc.Balance = remaining
	adminAcc.Balance = new(big.Int).Add(adminAcc.Balance, amount)
	if err := e.state.PutAccount(e.vault[:], vaultAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(caller[:], adminAcc); err != nil {
		return nil, err
	}
	platform.TotalFeesAccumulated = new(big.Int).Sub(accumulated, amount)
	if err := e.state.TippingPlatformPut(platform); err != nil {
		return nil, err
	}
	e.emit(FeesWithdrawnEvent(hexAddr(caller), amount.String(), platform.TotalFeesAccumulated.String()))
	return newBigInt(platform.TotalFeesAccumulated), nil
}
