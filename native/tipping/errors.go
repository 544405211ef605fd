package tipping

import "errors"

// Sentinel errors exposed to callers. Validation failures wrap ErrValidation
// with detail so errors.Is keeps working across the RPC boundary.
var (
	ErrPaused             = errors.New("tipping engine: platform paused")
	ErrUnauthorized       = errors.New("tipping engine: caller not authorized")
	ErrNotRegistered      = errors.New("tipping engine: creator not registered")
	ErrAlreadyRegistered  = errors.New("tipping engine: creator already registered")
	ErrValidation         = errors.New("tipping engine: invalid argument")
	ErrInsufficientAmount = errors.New("tipping engine: amount below required threshold")
	ErrSelfReference      = errors.New("tipping engine: self reference")
	ErrIntegrity          = errors.New("tipping engine: integrity violation")
)

var (
	errNilState           = errors.New("tipping engine: state not configured")
	errVaultNotSet        = errors.New("tipping engine: vault not configured")
	errAlreadyInitialized = errors.New("tipping engine: platform already initialized")
)
