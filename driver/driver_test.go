package driver

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/engine"
	"heimdall/tradelog"
)

func testClock() time.Time {
	return time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)
}

func runScript(t *testing.T, script string) (eng *engine.Engine, out, diag string) {
	t.Helper()
	eng = engine.New(engine.Config{
		ReferenceIndex:  17500.0,
		SessionOpenHour: 9,
		PriceScale:      2,
	}, tradelog.New(nil), nil)

	var outBuf, diagBuf bytes.Buffer
	err := Run(strings.NewReader(script), &outBuf, &diagBuf, eng, testClock)
	require.NoError(t, err)
	return eng, outBuf.String(), diagBuf.String()
}

func TestScriptLimitMatch(t *testing.T) {
	_, out, diag := runScript(t, `
place_order BUY LIMIT 100.50 10 AAPL
place_order BUY LIMIT 101.00 5 AAPL
place_order SELL LIMIT 100.00 8 AAPL
print_orderbook AAPL
print_trades AAPL
`)
	assert.Empty(t, diag)
	assert.Contains(t, out, "Order Placed: BUY 10 AAPL at 100.50 (LIMIT, ID: 1)")
	assert.Contains(t, out, "Trade Executed: 5 AAPL at 100.00 (Buy: 2, Sell: 3)")
	assert.Contains(t, out, "Trade Executed: 3 AAPL at 100.00 (Buy: 1, Sell: 3)")
	assert.Contains(t, out, "Order Book for AAPL")
	assert.Contains(t, out, "Price: 100.50, Qty: 7, ID: 1, Type: LIMIT, Status: PARTIALLY_FILLED")
	assert.Contains(t, out, "Trade History for AAPL")
}

func TestScriptMarketOrderIgnoresPriceToken(t *testing.T) {
	eng, out, diag := runScript(t, `
place_order SELL LIMIT 25.50 5 MSFT
place_order SELL LIMIT 26.00 10 MSFT
place_order BUY MARKET 0.0 7 MSFT
`)
	assert.Empty(t, diag)
	assert.Contains(t, out, "Order Placed: BUY 7 MSFT at MARKET (ID: 3)")
	assert.Contains(t, out, "Trade Executed: 5 MSFT at 25.50 (Buy: 3, Sell: 1)")
	assert.Contains(t, out, "Trade Executed: 2 MSFT at 26.00 (Buy: 3, Sell: 2)")
	require.Len(t, eng.SnapshotTrades("MSFT"), 2)
}

func TestScriptCancel(t *testing.T) {
	_, out, diag := runScript(t, `
place_order BUY LIMIT 50.00 5 GOOG
cancel_order 1
cancel_order 99
`)
	assert.Contains(t, out, "Order cancelled: 1")
	assert.Contains(t, diag, "cancel rejected: unknown order id: 99")
}

func TestScriptDiagnostics(t *testing.T) {
	_, _, diag := runScript(t, `
bogus_command AAPL
place_order BUY WEIRD 1.00 1 AAPL
place_order BUY LIMIT oops 1 AAPL
place_order BUY LIMIT 1.00 none AAPL
place_order BUY LIMIT 1.00 1
cancel_order abc
`)
	assert.Contains(t, diag, "unknown command: bogus_command")
	assert.Contains(t, diag, `invalid order variant: "WEIRD"`)
	assert.Contains(t, diag, `invalid price: "oops"`)
	assert.Contains(t, diag, `invalid quantity: "none"`)
	assert.Contains(t, diag, "want SIDE VARIANT PRICE QTY SYMBOL")
	assert.Contains(t, diag, `invalid order id: "abc"`)
}

func TestScriptBandCommands(t *testing.T) {
	_, out, diag := runScript(t, `
set_price_band RELIANCE 2000 5
place_order BUY LIMIT 2200.00 10 RELIANCE
place_order BUY LIMIT 2050.00 10 RELIANCE
`)
	assert.Contains(t, out, "Price band set: RELIANCE 5% around 2000")
	assert.Contains(t, diag, "order rejected")
	assert.Contains(t, diag, "price band")
	// The rejected order consumed no id.
	assert.Contains(t, out, "Order Placed: BUY 10 RELIANCE at 2050.00 (LIMIT, ID: 1)")
}

func TestScriptCircuitBreaker(t *testing.T) {
	_, out, diag := runScript(t, `
update_index 15400
place_order BUY LIMIT 10.00 1 INFY
`)
	assert.Contains(t, out, "MARKET CIRCUIT BREAKER TRIGGERED!")
	assert.Contains(t, out, "Trading halted until: 12:15:00")
	assert.Contains(t, diag, "order rejected: market halted")
}

func TestScriptExitStopsProcessing(t *testing.T) {
	eng, _, _ := runScript(t, `
place_order BUY LIMIT 10.00 1 AAPL
exit
place_order BUY LIMIT 10.00 1 AAPL
`)
	bids, _ := eng.SnapshotBook("AAPL")
	require.Len(t, bids, 1)
}

func TestScriptBlankAndUnknownLinesSkipped(t *testing.T) {
	eng, _, diag := runScript(t, "\n\nnope\nplace_order BUY LIMIT 10.00 1 AAPL\n")
	assert.Contains(t, diag, "unknown command: nope")
	bids, _ := eng.SnapshotBook("AAPL")
	require.Len(t, bids, 1)
}
