package engine

import (
	"errors"

	"heimdall/domain/circuit"
	"heimdall/domain/orderbook"
)

// Rejection kinds surfaced by the engine API. Halt errors originate in
// domain/circuit and the filled-order cancel error in domain/orderbook;
// they are re-exported here so callers match against one package.
var (
	ErrMarketHalted   = circuit.ErrMarketHalted
	ErrPreOpenAuction = circuit.ErrPreOpenAuction
	ErrOrderFilled    = orderbook.ErrOrderFilled

	ErrBandViolation = errors.New("limit price outside symbol price band")
	ErrUnknownOrder  = errors.New("unknown order id")
	ErrInvalidPrice  = errors.New("invalid price")
	ErrInvalidQty    = errors.New("invalid quantity")
)
