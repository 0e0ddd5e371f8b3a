package orderbook

import (
	"sync"
	"time"
)

// Book holds both sides for one symbol behind a single reader-writer
// lock. Mutating protocols (submit, sweep, cancel) take the write
// lock; snapshots take the read lock. The execution methods
// (SubmitLimit, ExecuteMarket, ExecuteIOC, ExecuteFOK) return the
// trades they executed, in execution order.
type Book struct {
	symbol string
	mu     sync.RWMutex
	bids   *SideBook
	asks   *SideBook
	clock  func() time.Time
}

func NewBook(symbol string, clock func() time.Time) *Book {
	if clock == nil {
		clock = time.Now
	}
	return &Book{
		symbol: symbol,
		bids:   NewSideBook(Buy),
		asks:   NewSideBook(Sell),
		clock:  clock,
	}
}

func (b *Book) Symbol() string { return b.symbol }

func (b *Book) sideBook(s Side) *SideBook {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// SubmitLimit rests o at its price level and runs the matching pass.
func (b *Book) SubmitLimit(o *Order) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sideBook(o.Side).GetOrCreate(o.Price).Enqueue(o)
	trades := b.matchCross()
	b.pruneBestHeads()
	return trades
}

// matchCross drains the crossed region of the book. Executions happen
// at the best ask level price: an incoming buy lifts that level and
// pays the resting ask's price, while an incoming sell becomes the
// best ask itself and trades at its own limit price.
func (b *Book) matchCross() []Trade {
	var trades []Trade
	for {
		bb := b.bids.Best()
		ba := b.asks.Best()
		if bb == nil || ba == nil || bb.Price < ba.Price {
			break
		}

		buy := bb.Head()
		sell := ba.Head()
		if buy == nil {
			b.bids.Drop(bb.Price)
			continue
		}
		if sell == nil {
			b.asks.Drop(ba.Price)
			continue
		}

		// Lingering terminal heads are popped, not matched.
		if buy.Status.Terminal() {
			bb.PopFront()
			if bb.Empty() {
				b.bids.Drop(bb.Price)
			}
			continue
		}
		if sell.Status.Terminal() {
			ba.PopFront()
			if ba.Empty() {
				b.asks.Drop(ba.Price)
			}
			continue
		}

		q := min64(buy.Remaining(), sell.Remaining())
		buy.applyFill(q)
		sell.applyFill(q)
		trades = append(trades, Trade{
			BuyOrderID:  buy.ID,
			SellOrderID: sell.ID,
			Symbol:      b.symbol,
			Price:       ba.Price,
			Qty:         q,
			ExecutedAt:  b.clock(),
		})

		if buy.Status == Filled {
			bb.PopFront()
			if bb.Empty() {
				b.bids.Drop(bb.Price)
			}
		}
		if sell.Status == Filled {
			ba.PopFront()
			if ba.Empty() {
				b.asks.Drop(ba.Price)
			}
		}
	}
	return trades
}

// ExecuteMarket consumes opposite-side liquidity best to worst until o
// is filled or the side is exhausted. The residual never rests: a
// partially filled market order ends PartiallyFilled, an unfilled one
// Cancelled.
func (b *Book) ExecuteMarket(o *Order) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	trades := b.sweep(o, false)
	b.finishImmediate(o, Market)
	b.pruneBestHeads()
	return trades
}

// ExecuteIOC fills o against marketable levels only; whatever remains
// is cancelled, even after partial fills.
func (b *Book) ExecuteIOC(o *Order) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	trades := b.sweep(o, true)
	b.finishImmediate(o, IOC)
	b.pruneBestHeads()
	return trades
}

// ExecuteFOK fills o completely or not at all. The feasibility scan
// and the execution run under the same critical section, so a partial
// FOK fill is never observable.
func (b *Book) ExecuteFOK(o *Order) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	opp := b.sideBook(o.Side.Opposite())
	avail := int64(0)
	feasible := false
	opp.Walk(func(lvl *PriceLevel) bool {
		if !opp.Marketable(lvl.Price, o.Price) {
			return false
		}
		for m := lvl.Head(); m != nil; m = m.Next() {
			if m.Status != Cancelled {
				avail += m.Remaining()
			}
		}
		if avail >= o.Qty {
			feasible = true
			return false
		}
		return true
	})
	if !feasible {
		o.Status = Cancelled
		return nil
	}

	trades := b.sweep(o, true)
	b.pruneBestHeads()
	return trades
}

// sweep walks the opposite side best to worst, consuming FIFO within
// each level. With limited set, the walk stops at the first level not
// marketable against o.Price.
func (b *Book) sweep(o *Order, limited bool) []Trade {
	opp := b.sideBook(o.Side.Opposite())
	var trades []Trade

	for o.Remaining() > 0 {
		lvl := opp.Best()
		if lvl == nil {
			break
		}
		if limited && !opp.Marketable(lvl.Price, o.Price) {
			break
		}

		for o.Remaining() > 0 {
			maker := lvl.Head()
			if maker == nil {
				break
			}
			if maker.Status.Terminal() {
				lvl.PopFront()
				continue
			}

			q := min64(o.Remaining(), maker.Remaining())
			o.applyFill(q)
			maker.applyFill(q)

			t := Trade{
				Symbol:     b.symbol,
				Price:      lvl.Price,
				Qty:        q,
				ExecutedAt: b.clock(),
			}
			if o.Side == Buy {
				t.BuyOrderID, t.SellOrderID = o.ID, maker.ID
			} else {
				t.BuyOrderID, t.SellOrderID = maker.ID, o.ID
			}
			trades = append(trades, t)

			if maker.Status == Filled {
				lvl.PopFront()
			}
		}

		if lvl.Empty() {
			opp.Drop(lvl.Price)
		}
	}
	return trades
}

// finishImmediate settles the terminal status of a never-resting order
// after its sweep. IOC residuals are always cancelled; market orders
// keep PartiallyFilled when something executed and are cancelled when
// nothing did.
func (b *Book) finishImmediate(o *Order, v Variant) {
	if o.Remaining() == 0 {
		return
	}
	if v == Market && o.Filled > 0 {
		o.Status = PartiallyFilled
		return
	}
	o.Status = Cancelled
}

// Cancel marks o cancelled under the exclusive lock. Physical removal
// from its price level is lazy: the next pass over that level pops it.
// Cancelling an already cancelled order is a no-op.
func (b *Book) Cancel(o *Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch o.Status {
	case Filled:
		return ErrOrderFilled
	case Cancelled:
		return nil
	}
	o.Status = Cancelled
	return nil
}

// Snapshot returns the resting orders still eligible to trade: bids in
// descending price order, asks ascending, FIFO within each level.
func (b *Book) Snapshot() (bids, asks []Resting) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	collect := func(lvl *PriceLevel, out *[]Resting) bool {
		for o := lvl.Head(); o != nil; o = o.Next() {
			if o.Status == Active || o.Status == PartiallyFilled {
				*out = append(*out, Resting{
					Price:       lvl.Price,
					Remaining:   o.Remaining(),
					ID:          o.ID,
					Variant:     o.Variant,
					Status:      o.Status,
					SubmittedAt: o.SubmittedAt,
				})
			}
		}
		return true
	}
	b.bids.Walk(func(lvl *PriceLevel) bool { return collect(lvl, &bids) })
	b.asks.Walk(func(lvl *PriceLevel) bool { return collect(lvl, &asks) })
	return bids, asks
}

// pruneBestHeads restores the cleanup invariant at the top of both
// sides: no terminal head, no empty level. Deeper levels stay lazy
// until they become best.
func (b *Book) pruneBestHeads() {
	for _, sb := range [2]*SideBook{b.bids, b.asks} {
		for {
			lvl := sb.Best()
			if lvl == nil {
				break
			}
			for h := lvl.Head(); h != nil && h.Status.Terminal(); h = lvl.Head() {
				lvl.PopFront()
			}
			if lvl.Empty() {
				sb.Drop(lvl.Price)
				continue
			}
			break
		}
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
