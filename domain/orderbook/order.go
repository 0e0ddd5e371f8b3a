package orderbook

import (
	"errors"
	"fmt"
	"time"
)

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the side an incoming order trades against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide maps the wire token ("BUY"/"SELL") to a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	}
	return 0, fmt.Errorf("invalid order side: %q", s)
}

type Variant uint8

const (
	Limit Variant = iota
	Market
	IOC
	FOK
)

func (v Variant) String() string {
	switch v {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	}
	return "UNKNOWN"
}

// ParseVariant maps the wire token to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "LIMIT":
		return Limit, nil
	case "MARKET":
		return Market, nil
	case "IOC":
		return IOC, nil
	case "FOK":
		return FOK, nil
	}
	return 0, fmt.Errorf("invalid order variant: %q", s)
}

type Status uint8

const (
	Active Status = iota
	PartiallyFilled
	Filled
	Cancelled
)

func (st Status) String() string {
	switch st {
	case Active:
		return "ACTIVE"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// Terminal reports whether no further fills may touch the order.
func (st Status) Terminal() bool {
	return st == Filled || st == Cancelled
}

// ErrOrderFilled is returned by Book.Cancel when the target already
// executed in full.
var ErrOrderFilled = errors.New("order already filled")

// Order is a live order. Prices are integer ticks; Market orders carry
// price 0. The next/prev links are owned by the price level the order
// currently rests in.
type Order struct {
	ID          uint64
	Symbol      string
	Side        Side
	Variant     Variant
	Price       int64
	Qty         int64
	Filled      int64
	Status      Status
	SubmittedAt time.Time

	next *Order
	prev *Order
}

func (o *Order) Remaining() int64 {
	return o.Qty - o.Filled
}

// Next returns the order behind o in its price level queue.
func (o *Order) Next() *Order { return o.next }

// applyFill commits q executed units and recomputes the status.
// Callers hold the book's exclusive lock.
func (o *Order) applyFill(q int64) {
	o.Filled += q
	if o.Filled >= o.Qty {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
}

// Trade is one execution between a buy and a sell order. Immutable
// once appended to the trade log; Seq is assigned by the log.
type Trade struct {
	Seq         uint64
	BuyOrderID  uint64
	SellOrderID uint64
	Symbol      string
	Price       int64
	Qty         int64
	ExecutedAt  time.Time
}

// Resting is one row of a read-only book snapshot.
type Resting struct {
	Price       int64
	Remaining   int64
	ID          uint64
	Variant     Variant
	Status      Status
	SubmittedAt time.Time
}
