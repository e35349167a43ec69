package models

import "errors"

var (
	// ErrDataUnavailable is returned when no price has ever been cached for a
	// symbol and the provider cannot supply one.
	ErrDataUnavailable = errors.New("price data unavailable")

	// ErrStaleData marks a price served past its TTL because the provider
	// could not be reached. Callers normally inspect PricePoint.Stale instead.
	ErrStaleData = errors.New("price data is stale")

	// ErrInsufficientHistory is returned when a price window is too short for
	// the requested indicator. The symbol is skipped for the cycle.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrInsufficientFunds rejects a buy whose cost exceeds available cash.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientPosition rejects a sell larger than the current holding.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrProviderTimeout is returned when a provider fetch exceeds its bound.
	ErrProviderTimeout = errors.New("provider request timed out")

	// ErrUnknownAction rejects a trade whose action is not buy or sell.
	ErrUnknownAction = errors.New("unknown trade action")

	// ErrInvalidQuantity rejects a trade with a zero or negative quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)
