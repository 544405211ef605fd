// core/genesis/loader.go
package genesis

import (
	"errors"
	"fmt"
	"math/big"

	"tipvault/core/state"
	"tipvault/native/tipping"
)

// ErrChainIDMismatch is returned when a database was bootstrapped for a
// different chain than the spec describes.
var ErrChainIDMismatch = errors.New("genesis: chain id mismatch")

var appliedKey = []byte("genesis/applied")

type storedGenesisMarker struct {
	ChainID   uint64
	AppliedAt uint64
}

// Applied reports whether the database already carries a genesis marker and
// the chain id it was bootstrapped for.
func Applied(manager *state.Manager) (bool, uint64, error) {
	var marker storedGenesisMarker
	ok, err := manager.KVGet(appliedKey, &marker)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return false, 0, nil
	}
	return true, marker.ChainID, nil
}

// Apply bootstraps ledger state from the spec: balance allocations first,
// then the one-time platform initialization and any parameter overrides. The
// call is idempotent; a database that already carries the genesis marker is
// left untouched after the chain id is verified. All writes land in one
// commit so a failed bootstrap leaves an empty database.
func Apply(manager *state.Manager, spec *Spec) error {
	if manager == nil {
		return fmt.Errorf("genesis: state manager must not be nil")
	}
	if spec == nil {
		return fmt.Errorf("genesis: spec must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	applied, chainID, err := Applied(manager)
	if err != nil {
		return err
	}
	if applied {
		if chainID != spec.ChainID {
			return fmt.Errorf("%w: database carries %d, spec declares %d", ErrChainIDMismatch, chainID, spec.ChainID)
		}
		return nil
	}

	if err := apply(manager, spec); err != nil {
		manager.Reset()
		return err
	}
	if err := manager.Commit(); err != nil {
		manager.Reset()
		return err
	}
	return nil
}

func apply(manager *state.Manager, spec *Spec) error {
	for _, alloc := range spec.Allocations() {
		account, err := manager.GetAccount(alloc.Address[:])
		if err != nil {
			return fmt.Errorf("load account %x: %w", alloc.Address, err)
		}
		account.Balance = new(big.Int).Set(alloc.Amount)
		if err := manager.PutAccount(alloc.Address[:], account); err != nil {
			return fmt.Errorf("persist account %x: %w", alloc.Address, err)
		}
	}

	engine := tipping.NewEngine()
	engine.SetState(manager)
	engine.SetVault(spec.VaultAddress())
	genesisTime := spec.GenesisTimestamp()
	if !genesisTime.IsZero() {
		unix := genesisTime.Unix()
		engine.SetNowFunc(func() int64 { return unix })
	}

	admin := spec.AdminAddress()
	if _, err := engine.Initialize(admin); err != nil {
		return fmt.Errorf("initialize platform: %w", err)
	}
	if spec.minTipAmount != nil {
		if err := engine.SetMinTipAmount(admin, spec.minTipAmount); err != nil {
			return fmt.Errorf("minTipAmount override: %w", err)
		}
	}
	if spec.PlatformFeeBps != nil {
		if err := engine.SetPlatformFee(admin, *spec.PlatformFeeBps); err != nil {
			return fmt.Errorf("platformFeeBps override: %w", err)
		}
	}
	if len(spec.thresholds) == 4 {
		if err := engine.SetBadgeThresholds(admin, spec.thresholds); err != nil {
			return fmt.Errorf("badgeThresholds override: %w", err)
		}
	}

	marker := storedGenesisMarker{ChainID: spec.ChainID}
	if !genesisTime.IsZero() && genesisTime.Unix() > 0 {
		marker.AppliedAt = uint64(genesisTime.Unix())
	}
	return manager.KVPut(appliedKey, &marker)
}
