package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"tipvault/core/genesis"
	"tipvault/core/state"
	"tipvault/core/types"
	"tipvault/crypto"
	"tipvault/native/tipping"
	"tipvault/observability"
	"tipvault/observability/metrics"
	"tipvault/storage"
)

// ErrNodeClosed is returned by submissions after Close.
var ErrNodeClosed = errors.New("core: node is closed")

// Node is the central controller: it owns the database handle, serializes
// state access, applies transactions, and fans emitted events out to feed
// subscribers.
type Node struct {
	db           storage.Database
	manager      *state.Manager
	state        *StateProcessor
	validatorKey *crypto.PrivateKey
	vault        [20]byte
	logger       *slog.Logger

	stateMu sync.Mutex

	subMu   sync.Mutex
	subs    map[uint64]chan types.Event
	nextSub uint64
	closed  bool
}

// NewNode bootstraps a node: genesis is applied if the database is fresh,
// verified against the spec otherwise. The validator key identifies the
// operator; it holds no protocol role beyond dev-mode genesis defaults.
func NewNode(db storage.Database, validatorKey *crypto.PrivateKey, spec *genesis.Spec, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	if spec == nil {
		return nil, fmt.Errorf("core: genesis spec must not be nil")
	}
	if spec.ChainID != types.ChainID() {
		return nil, fmt.Errorf("core: genesis spec declares chain %d, node is built for %d", spec.ChainID, types.ChainID())
	}
	if logger == nil {
		logger = slog.Default()
	}

	manager := state.NewManager(db)
	if err := genesis.Apply(manager, spec); err != nil {
		return nil, fmt.Errorf("core: apply genesis: %w", err)
	}

	sp := NewStateProcessor(manager)
	vault := spec.VaultAddress()
	sp.SetVault(vault)

	node := &Node{
		db:           db,
		manager:      manager,
		state:        sp,
		validatorKey: validatorKey,
		vault:        vault,
		logger:       logger,
		subs:         make(map[uint64]chan types.Event),
	}
	node.refreshGauges()
	return node, nil
}

// ChainID returns the ledger identifier this node was built for.
func (n *Node) ChainID() uint64 { return types.ChainID() }

// Vault returns the platform vault address.
func (n *Node) Vault() [20]byte { return n.vault }

// ValidatorAddress returns the operator address, or the zero address when
// the node runs without a key.
func (n *Node) ValidatorAddress() crypto.Address {
	if n.validatorKey == nil {
		return crypto.NewAddress(make([]byte, crypto.AddressLength))
	}
	return n.validatorKey.PubKey().Address()
}

// SubmitTransaction verifies and applies a signed transaction, publishes the
// resulting events to feed subscribers, and returns them to the caller.
func (n *Node) SubmitTransaction(tx *types.Transaction) ([]types.Event, error) {
	n.subMu.Lock()
	closed := n.closed
	n.subMu.Unlock()
	if closed {
		return nil, ErrNodeClosed
	}

	n.stateMu.Lock()
	applied, err := n.state.ApplyTransaction(tx)
	if err != nil {
		n.stateMu.Unlock()
		return nil, err
	}
	n.recordMetrics(applied)
	n.stateMu.Unlock()

	hash, hashErr := tx.Hash()
	if hashErr == nil {
		n.logger.Info("transaction applied",
			slog.Int("txType", int(tx.Type)),
			slog.String("hash", fmt.Sprintf("%x", hash)),
			slog.Int("events", len(applied)),
		)
	}
	n.publish(applied)
	return applied, nil
}

// GetAccount returns the account record for addr.
func (n *Node) GetAccount(addr []byte) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.manager.GetAccount(addr)
}

// Query runs fn against the tipping engine under the state lock. Handlers
// use it for every read so queries never observe a half-applied overlay.
func (n *Node) Query(fn func(*tipping.Engine) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return fn(n.state.Engine())
}

// Subscribe registers a feed subscriber with the given backlog. Events that
// arrive while the backlog is full are dropped for that subscriber rather
// than stalling transaction processing. The returned cancel function is safe
// to call more than once.
func (n *Node) Subscribe(backlog int) (<-chan types.Event, func()) {
	if backlog <= 0 {
		backlog = 64
	}
	ch := make(chan types.Event, backlog)

	n.subMu.Lock()
	defer n.subMu.Unlock()
	if n.closed {
		close(ch)
		return ch, func() {}
	}
	id := n.nextSub
	n.nextSub++
	n.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.subMu.Lock()
			defer n.subMu.Unlock()
			if _, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close stops the feed and rejects further submissions. The database handle
// stays open; the caller that opened it closes it.
func (n *Node) Close() {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}

func (n *Node) publish(evts []types.Event) {
	if len(evts) == 0 {
		return
	}
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if n.closed {
		return
	}
	for _, evt := range evts {
		observability.Events().RecordEmitted(evt.Type)
		for _, ch := range n.subs {
			select {
			case ch <- evt:
			default:
				observability.Events().RecordDropped(evt.Type)
			}
		}
	}
}

// recordMetrics feeds the tipping registries from applied events. Called
// with the state lock held so gauge refreshes read a settled overlay.
func (n *Node) recordMetrics(evts []types.Event) {
	reg := metrics.Tipping()
	for _, evt := range evts {
		switch evt.Type {
		case tipping.EventTypeTipSent:
			reg.ObserveTip(
				parseAttrAmount(evt, "amount"),
				parseAttrAmount(evt, "fee"),
				parseAttrAmount(evt, "collabShare"),
			)
		case tipping.EventTypeBadgeMinted:
			reg.ObserveBadge(evt.Attribute("tierName"))
		case tipping.EventTypeFeesWithdrawn:
			reg.ObserveWithdrawal()
		case tipping.EventTypePlatformPaused:
			reg.SetPaused(true)
		case tipping.EventTypePlatformUnpaused:
			reg.SetPaused(false)
		case tipping.EventTypeCreatorRegistered:
			if count, err := n.state.Engine().TotalCreators(); err == nil {
				reg.SetCreators(count)
			}
		}
	}
}

// refreshGauges seeds gauge metrics from persisted state on boot.
func (n *Node) refreshGauges() {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	engine := n.state.Engine()
	if count, err := engine.TotalCreators(); err == nil {
		metrics.Tipping().SetCreators(count)
	}
	if paused, err := engine.IsPaused(); err == nil {
		metrics.Tipping().SetPaused(paused)
	}
}

func parseAttrAmount(evt types.Event, key string) *big.Int {
	value, ok := new(big.Int).SetString(evt.Attribute(key), 10)
	if !ok {
		return big.NewInt(0)
	}
	return value
}
