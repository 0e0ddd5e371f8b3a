// Package engine exposes the matching engine façade: order admission
// (circuit breaker state, per-symbol price bands), order ID
// allocation, the symbol registry, and dispatch into the per-symbol
// book protocols. All state lives in memory; the book starts empty on
// every run.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"heimdall/domain/circuit"
	"heimdall/domain/orderbook"
	"heimdall/infra/sequence"
	"heimdall/tradelog"
)

// Config fixes the engine-wide knobs at construction.
type Config struct {
	// ReferenceIndex seeds the market-wide circuit breaker.
	ReferenceIndex float64
	// SessionOpenHour/Minute anchor the halt-duration table.
	SessionOpenHour   int
	SessionOpenMinute int
	// PriceScale is the number of decimal places per tick. Scale 2
	// means a tick of 0.01.
	PriceScale int32
}

type Engine struct {
	cfg     Config
	log     *zap.Logger
	clock   func() time.Time
	ids     *sequence.Sequencer
	breaker *circuit.Breaker
	trades  *tradelog.Log

	booksMu sync.RWMutex
	books   map[string]*orderbook.Book

	ordersMu sync.RWMutex
	orders   map[uint64]*orderbook.Order

	bandsMu sync.RWMutex
	bands   map[string]Band
}

func New(cfg Config, trades *tradelog.Log, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if trades == nil {
		trades = tradelog.New(log)
	}
	return &Engine{
		cfg:   cfg,
		log:   log,
		clock: time.Now,
		ids:   sequence.New(0),
		breaker: circuit.New(circuit.Config{
			Reference:  cfg.ReferenceIndex,
			OpenHour:   cfg.SessionOpenHour,
			OpenMinute: cfg.SessionOpenMinute,
		}),
		trades: trades,
		books:  make(map[string]*orderbook.Book),
		orders: make(map[uint64]*orderbook.Order),
		bands:  make(map[string]Band),
	}
}

// book returns the symbol's book, creating it on first reference.
// Double-checked so the read path stays on the shared lock.
func (e *Engine) book(symbol string) *orderbook.Book {
	e.booksMu.RLock()
	b, ok := e.books[symbol]
	e.booksMu.RUnlock()
	if ok {
		return b
	}

	e.booksMu.Lock()
	defer e.booksMu.Unlock()
	if b, ok = e.books[symbol]; !ok {
		b = orderbook.NewBook(symbol, e.clock)
		e.books[symbol] = b
	}
	return b
}

// SetPriceBand installs or replaces the symbol's limit-price band.
func (e *Engine) SetPriceBand(symbol string, ref, pct decimal.Decimal) {
	band := newBand(ref, pct, e.cfg.PriceScale)
	e.bandsMu.Lock()
	e.bands[symbol] = band
	e.bandsMu.Unlock()

	e.log.Info("price band installed",
		zap.String("symbol", symbol),
		zap.String("reference", ref.String()),
		zap.String("percent", pct.String()))
}

// UpdateIndex feeds the circuit breaker and returns true iff this
// update newly triggered a halt.
func (e *Engine) UpdateIndex(value float64, now time.Time) bool {
	triggered := e.breaker.Update(value, now)
	if triggered {
		e.log.Warn("market circuit breaker triggered",
			zap.Float64("index", value),
			zap.String("level", e.breaker.TripLevel().String()),
			zap.String("status", e.breaker.Status().String()),
			zap.Time("halt_end", e.breaker.HaltEnd()))
	}
	return triggered
}

// MarketStatus reports the breaker state.
func (e *Engine) MarketStatus() circuit.Status {
	return e.breaker.Status()
}

// HaltEnd reports when the current halt or pre-open window expires.
func (e *Engine) HaltEnd() time.Time {
	return e.breaker.HaltEnd()
}

// PlaceOrder admits, allocates, and executes a new order, returning
// its id. On rejection no state changes and no id is consumed.
func (e *Engine) PlaceOrder(side orderbook.Side, variant orderbook.Variant, price decimal.Decimal, qty int64, symbol string) (uint64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQty, qty)
	}
	if err := e.breaker.Admit(); err != nil {
		return 0, err
	}

	var ticks int64
	if variant != orderbook.Market {
		t, err := e.toTicks(price)
		if err != nil {
			return 0, err
		}
		ticks = t
		if variant == orderbook.Limit {
			if err := e.checkBand(symbol, ticks); err != nil {
				return 0, err
			}
		}
	}

	id := e.ids.Next()
	o := &orderbook.Order{
		ID:          id,
		Symbol:      symbol,
		Side:        side,
		Variant:     variant,
		Price:       ticks,
		Qty:         qty,
		Status:      orderbook.Active,
		SubmittedAt: e.clock(),
	}

	e.ordersMu.Lock()
	e.orders[id] = o
	e.ordersMu.Unlock()

	book := e.book(symbol)
	var trades []orderbook.Trade
	switch variant {
	case orderbook.Limit:
		trades = book.SubmitLimit(o)
	case orderbook.Market:
		trades = book.ExecuteMarket(o)
	case orderbook.IOC:
		trades = book.ExecuteIOC(o)
	case orderbook.FOK:
		trades = book.ExecuteFOK(o)
	}
	e.trades.Append(trades...)

	e.log.Debug("order executed",
		zap.Uint64("id", id),
		zap.String("symbol", symbol),
		zap.String("side", side.String()),
		zap.String("variant", variant.String()),
		zap.Int64("qty", qty),
		zap.Int64("filled", o.Filled),
		zap.String("status", o.Status.String()),
		zap.Int("fills", len(trades)))
	return id, nil
}

// CancelOrder marks the order cancelled; the residual quantity never
// fills. Cancelling an already cancelled order is a benign no-op.
func (e *Engine) CancelOrder(id uint64) error {
	e.ordersMu.RLock()
	o := e.orders[id]
	e.ordersMu.RUnlock()
	if o == nil {
		return fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	return e.book(o.Symbol).Cancel(o)
}

// Order returns the live order record for id, or nil.
func (e *Engine) Order(id uint64) *orderbook.Order {
	e.ordersMu.RLock()
	defer e.ordersMu.RUnlock()
	return e.orders[id]
}

// SnapshotBook returns the symbol's resting orders: bids descending,
// asks ascending, submission order within a level.
func (e *Engine) SnapshotBook(symbol string) (bids, asks []orderbook.Resting) {
	return e.book(symbol).Snapshot()
}

// SnapshotTrades returns the symbol's executed trades in order.
func (e *Engine) SnapshotTrades(symbol string) []orderbook.Trade {
	return e.trades.BySymbol(symbol)
}

// FormatPrice renders ticks at the engine's price scale.
func (e *Engine) FormatPrice(ticks int64) string {
	return decimal.New(ticks, -e.cfg.PriceScale).StringFixed(e.cfg.PriceScale)
}

func (e *Engine) toTicks(price decimal.Decimal) (int64, error) {
	if price.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidPrice, price)
	}
	shifted := price.Shift(e.cfg.PriceScale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s is finer than the tick size", ErrInvalidPrice, price)
	}
	return shifted.IntPart(), nil
}

func (e *Engine) checkBand(symbol string, ticks int64) error {
	e.bandsMu.RLock()
	band, ok := e.bands[symbol]
	e.bandsMu.RUnlock()
	if !ok {
		return nil
	}
	return band.Check(ticks, e.cfg.PriceScale)
}
