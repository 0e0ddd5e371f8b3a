package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/domain/circuit"
	"heimdall/domain/orderbook"
	"heimdall/tradelog"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sessionTime(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func newTestEngine() *Engine {
	return New(Config{
		ReferenceIndex:  17500.0,
		SessionOpenHour: 9,
		PriceScale:      2,
	}, tradelog.New(nil), nil)
}

func TestPlaceOrderAllocatesMonotonicIDs(t *testing.T) {
	e := newTestEngine()
	var last uint64
	for i := 0; i < 5; i++ {
		id, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("10.00"), 1, "AAPL")
		require.NoError(t, err)
		require.Greater(t, id, last)
		last = id
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	e := newTestEngine()

	_, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("10.00"), 0, "AAPL")
	assert.ErrorIs(t, err, ErrInvalidQty)

	_, err = e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("10.005"), 1, "AAPL")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("-1"), 1, "AAPL")
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestLimitMatchScenario(t *testing.T) {
	e := newTestEngine()
	_, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("100.50"), 10, "AAPL")
	require.NoError(t, err)
	id2, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("101.00"), 5, "AAPL")
	require.NoError(t, err)
	id3, err := e.PlaceOrder(orderbook.Sell, orderbook.Limit, dec("100.00"), 8, "AAPL")
	require.NoError(t, err)

	trades := e.SnapshotTrades("AAPL")
	require.Len(t, trades, 2)
	assert.Equal(t, id2, trades[0].BuyOrderID)
	assert.Equal(t, id3, trades[0].SellOrderID)
	assert.Equal(t, "100.00", e.FormatPrice(trades[0].Price))
	assert.Equal(t, int64(5), trades[0].Qty)
	assert.Equal(t, int64(3), trades[1].Qty)

	bids, asks := e.SnapshotBook("AAPL")
	require.Len(t, bids, 1)
	assert.Equal(t, int64(7), bids[0].Remaining)
	assert.Empty(t, asks)

	// Trade quantities reconcile with order fill counters.
	for _, id := range []uint64{id2, id3} {
		var sum int64
		for _, tr := range trades {
			if tr.BuyOrderID == id || tr.SellOrderID == id {
				sum += tr.Qty
			}
		}
		assert.Equal(t, e.Order(id).Filled, sum)
	}
}

func TestPriceBandGate(t *testing.T) {
	e := newTestEngine()
	e.SetPriceBand("RELIANCE", dec("2000"), dec("5"))

	_, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("2200"), 10, "RELIANCE")
	assert.ErrorIs(t, err, ErrBandViolation)
	_, err = e.PlaceOrder(orderbook.Sell, orderbook.Limit, dec("1850"), 10, "RELIANCE")
	assert.ErrorIs(t, err, ErrBandViolation)

	// Boundaries are inclusive.
	_, err = e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("2100"), 10, "RELIANCE")
	assert.NoError(t, err)
	_, err = e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("2050"), 10, "RELIANCE")
	assert.NoError(t, err)

	// Rejected orders leave no trace in the book.
	bids, _ := e.SnapshotBook("RELIANCE")
	assert.Len(t, bids, 2)
}

func TestBandChecksLimitOnly(t *testing.T) {
	e := newTestEngine()
	e.SetPriceBand("RELIANCE", dec("2000"), dec("5"))

	// IOC and FOK carry prices outside the band but are not band-checked.
	_, err := e.PlaceOrder(orderbook.Buy, orderbook.IOC, dec("2500"), 1, "RELIANCE")
	assert.NoError(t, err)
	_, err = e.PlaceOrder(orderbook.Buy, orderbook.FOK, dec("2500"), 1, "RELIANCE")
	assert.NoError(t, err)
	_, err = e.PlaceOrder(orderbook.Buy, orderbook.Market, decimal.Zero, 1, "RELIANCE")
	assert.NoError(t, err)
}

func TestBandReplacement(t *testing.T) {
	e := newTestEngine()
	e.SetPriceBand("INFY", dec("1500"), dec("10"))
	_, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("1700"), 1, "INFY")
	assert.ErrorIs(t, err, ErrBandViolation)

	e.SetPriceBand("INFY", dec("1500"), dec("20"))
	_, err = e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("1700"), 1, "INFY")
	assert.NoError(t, err)
}

func TestHaltGatesAdmission(t *testing.T) {
	e := newTestEngine()

	// 12% drop at 11:30 triggers a 45-minute L1 halt.
	require.True(t, e.UpdateIndex(15400, sessionTime(11, 30)))
	require.Equal(t, circuit.Halted, e.MarketStatus())

	for _, v := range []orderbook.Variant{orderbook.Limit, orderbook.Market, orderbook.IOC, orderbook.FOK} {
		_, err := e.PlaceOrder(orderbook.Buy, v, dec("10.00"), 1, "INFY")
		assert.ErrorIs(t, err, ErrMarketHalted, v.String())
	}

	// Halt expiry leads into the pre-open window; still no admission.
	e.UpdateIndex(15400, sessionTime(12, 20))
	require.Equal(t, circuit.PreOpen, e.MarketStatus())
	_, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("10.00"), 1, "INFY")
	assert.ErrorIs(t, err, ErrPreOpenAuction)

	// After the window trading resumes.
	e.UpdateIndex(15400, sessionTime(12, 40))
	require.Equal(t, circuit.Normal, e.MarketStatus())
	_, err = e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("10.00"), 1, "INFY")
	assert.NoError(t, err)
}

func TestCancelOrder(t *testing.T) {
	e := newTestEngine()

	err := e.CancelOrder(999)
	assert.ErrorIs(t, err, ErrUnknownOrder)

	id, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("10.00"), 5, "AAPL")
	require.NoError(t, err)
	require.NoError(t, e.CancelOrder(id))

	// Place then cancel leaves the book empty of that id.
	bids, asks := e.SnapshotBook("AAPL")
	assert.Empty(t, bids)
	assert.Empty(t, asks)

	// Second cancel stays benign.
	assert.NoError(t, e.CancelOrder(id))

	// A fully filled order refuses cancellation.
	buy, _ := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("10.00"), 5, "AAPL")
	_, err = e.PlaceOrder(orderbook.Sell, orderbook.Limit, dec("10.00"), 5, "AAPL")
	require.NoError(t, err)
	assert.ErrorIs(t, e.CancelOrder(buy), ErrOrderFilled)
}

func TestMarketIOCFOKNeverRest(t *testing.T) {
	e := newTestEngine()
	_, err := e.PlaceOrder(orderbook.Sell, orderbook.Limit, dec("25.50"), 5, "MSFT")
	require.NoError(t, err)

	_, err = e.PlaceOrder(orderbook.Buy, orderbook.Market, decimal.Zero, 7, "MSFT")
	require.NoError(t, err)
	_, err = e.PlaceOrder(orderbook.Buy, orderbook.IOC, dec("30.00"), 7, "MSFT")
	require.NoError(t, err)
	_, err = e.PlaceOrder(orderbook.Buy, orderbook.FOK, dec("30.00"), 7, "MSFT")
	require.NoError(t, err)

	bids, _ := e.SnapshotBook("MSFT")
	assert.Empty(t, bids)
}

func TestConcurrentSymbolsConserveFills(t *testing.T) {
	e := newTestEngine()
	symbols := []string{"AAPL", "MSFT", "GOOG", "AMZN"}
	const perSymbol = 50

	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(2)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < perSymbol; i++ {
				_, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, dec("10.00"), 2, sym)
				assert.NoError(t, err)
			}
		}(sym)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < perSymbol; i++ {
				_, err := e.PlaceOrder(orderbook.Sell, orderbook.Limit, dec("10.00"), 2, sym)
				assert.NoError(t, err)
			}
		}(sym)
	}
	wg.Wait()

	for _, sym := range symbols {
		trades := e.SnapshotTrades(sym)
		filled := make(map[uint64]int64)
		for _, tr := range trades {
			require.Equal(t, sym, tr.Symbol)
			require.Positive(t, tr.Qty)
			filled[tr.BuyOrderID] += tr.Qty
			filled[tr.SellOrderID] += tr.Qty
		}
		for id, sum := range filled {
			o := e.Order(id)
			require.NotNil(t, o)
			assert.Equal(t, o.Filled, sum, "order %d on %s", id, sym)
			assert.LessOrEqual(t, o.Filled, o.Qty)
		}

		// Equal opposing flow at one price fully crosses.
		bids, asks := e.SnapshotBook(sym)
		assert.Empty(t, bids, sym)
		assert.Empty(t, asks, sym)
	}
}

func TestSnapshotTradesIsolatedBySymbol(t *testing.T) {
	e := newTestEngine()
	for i, sym := range []string{"AAPL", "MSFT"} {
		px := dec(fmt.Sprintf("%d.00", 10+i))
		_, err := e.PlaceOrder(orderbook.Buy, orderbook.Limit, px, 1, sym)
		require.NoError(t, err)
		_, err = e.PlaceOrder(orderbook.Sell, orderbook.Limit, px, 1, sym)
		require.NoError(t, err)
	}
	require.Len(t, e.SnapshotTrades("AAPL"), 1)
	require.Len(t, e.SnapshotTrades("MSFT"), 1)
	assert.Empty(t, e.SnapshotTrades("GOOG"))
}
