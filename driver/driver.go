// Package driver interprets the line-oriented command language and
// translates it onto the engine API. One command per line, whitespace
// separated; anything the driver cannot parse produces a diagnostic
// and is skipped, so a bad line never aborts a script.
package driver

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"heimdall/domain/circuit"
	"heimdall/domain/orderbook"
	"heimdall/engine"
)

// Run consumes commands from in until "exit" or EOF. Normal output
// goes to out, diagnostics to diag. The clock feeds update_index.
func Run(in io.Reader, out, diag io.Writer, eng *engine.Engine, clock func() time.Time) error {
	if clock == nil {
		clock = time.Now
	}
	d := &driver{out: out, diag: diag, eng: eng, clock: clock}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if !d.dispatch(strings.Fields(scanner.Text())) {
			return nil
		}
	}
	return scanner.Err()
}

type driver struct {
	out   io.Writer
	diag  io.Writer
	eng   *engine.Engine
	clock func() time.Time
}

// dispatch runs one command line; false means exit.
func (d *driver) dispatch(args []string) bool {
	if len(args) == 0 {
		return true
	}
	switch args[0] {
	case "exit":
		return false
	case "place_order":
		d.placeOrder(args[1:])
	case "cancel_order":
		d.cancelOrder(args[1:])
	case "print_orderbook":
		d.printOrderBook(args[1:])
	case "print_trades":
		d.printTrades(args[1:])
	case "update_index":
		d.updateIndex(args[1:])
	case "set_price_band":
		d.setPriceBand(args[1:])
	default:
		fmt.Fprintf(d.diag, "unknown command: %s\n", args[0])
	}
	return true
}

// place_order SIDE VARIANT PRICE QTY SYMBOL. The price token is
// required for MARKET too (conventionally 0.0) but ignored.
func (d *driver) placeOrder(args []string) {
	if len(args) != 5 {
		fmt.Fprintf(d.diag, "place_order: want SIDE VARIANT PRICE QTY SYMBOL, got %d args\n", len(args))
		return
	}
	side, err := orderbook.ParseSide(args[0])
	if err != nil {
		fmt.Fprintln(d.diag, err)
		return
	}
	variant, err := orderbook.ParseVariant(args[1])
	if err != nil {
		fmt.Fprintln(d.diag, err)
		return
	}
	price, err := decimal.NewFromString(args[2])
	if err != nil {
		fmt.Fprintf(d.diag, "invalid price: %q\n", args[2])
		return
	}
	qty, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		fmt.Fprintf(d.diag, "invalid quantity: %q\n", args[3])
		return
	}
	symbol := args[4]

	id, err := d.eng.PlaceOrder(side, variant, price, qty, symbol)
	if err != nil {
		fmt.Fprintf(d.diag, "order rejected: %v\n", err)
		return
	}

	if variant == orderbook.Market {
		fmt.Fprintf(d.out, "Order Placed: %s %d %s at MARKET (ID: %d)\n",
			side, qty, symbol, id)
	} else {
		fmt.Fprintf(d.out, "Order Placed: %s %d %s at %s (%s, ID: %d)\n",
			side, qty, symbol, price.StringFixed(2), variant, id)
	}

	for _, t := range d.eng.SnapshotTrades(symbol) {
		if t.BuyOrderID == id || t.SellOrderID == id {
			fmt.Fprintf(d.out, "Trade Executed: %d %s at %s (Buy: %d, Sell: %d)\n",
				t.Qty, t.Symbol, d.eng.FormatPrice(t.Price), t.BuyOrderID, t.SellOrderID)
		}
	}
}

func (d *driver) cancelOrder(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.diag, "cancel_order: want ID")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(d.diag, "invalid order id: %q\n", args[0])
		return
	}
	if err := d.eng.CancelOrder(id); err != nil {
		fmt.Fprintf(d.diag, "cancel rejected: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Order cancelled: %d\n", id)
}

func (d *driver) printOrderBook(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.diag, "print_orderbook: want SYMBOL")
		return
	}
	symbol := args[0]
	bids, asks := d.eng.SnapshotBook(symbol)

	fmt.Fprintf(d.out, "\nOrder Book for %s:\n-------------------\n", symbol)
	fmt.Fprintln(d.out, "Buy Orders (highest first):")
	d.printSide(bids)
	fmt.Fprintln(d.out, "\nSell Orders (lowest first):")
	d.printSide(asks)
}

func (d *driver) printSide(rows []orderbook.Resting) {
	for _, r := range rows {
		fmt.Fprintf(d.out, "Price: %s, Qty: %d, ID: %d, Type: %s, Status: %s, Time: %s\n",
			d.eng.FormatPrice(r.Price), r.Remaining, r.ID, r.Variant, r.Status,
			r.SubmittedAt.Format("2006-01-02 15:04:05"))
	}
}

func (d *driver) printTrades(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.diag, "print_trades: want SYMBOL")
		return
	}
	symbol := args[0]

	fmt.Fprintf(d.out, "\nTrade History for %s:\n------------------------\n", symbol)
	for _, t := range d.eng.SnapshotTrades(symbol) {
		fmt.Fprintf(d.out, "Time: %s, Qty: %d, Price: %s, Buy ID: %d, Sell ID: %d\n",
			t.ExecutedAt.Format("2006-01-02 15:04:05"), t.Qty,
			d.eng.FormatPrice(t.Price), t.BuyOrderID, t.SellOrderID)
	}
}

func (d *driver) updateIndex(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.diag, "update_index: want VALUE")
		return
	}
	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(d.diag, "invalid index value: %q\n", args[0])
		return
	}

	if d.eng.UpdateIndex(value, d.clock()) {
		fmt.Fprintln(d.out, "MARKET CIRCUIT BREAKER TRIGGERED!")
		switch d.eng.MarketStatus() {
		case circuit.Closed:
			fmt.Fprintln(d.out, "Trading halted for the remainder of the day.")
		case circuit.Halted:
			fmt.Fprintf(d.out, "Trading halted until: %s\n",
				d.eng.HaltEnd().Format("15:04:05"))
		}
	}
}

// set_price_band SYMBOL REF PCT installs or replaces the symbol's
// band; it applies to LIMIT orders placed after it.
func (d *driver) setPriceBand(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(d.diag, "set_price_band: want SYMBOL REF PCT")
		return
	}
	ref, err := decimal.NewFromString(args[1])
	if err != nil {
		fmt.Fprintf(d.diag, "invalid reference price: %q\n", args[1])
		return
	}
	pct, err := decimal.NewFromString(args[2])
	if err != nil {
		fmt.Fprintf(d.diag, "invalid band percent: %q\n", args[2])
		return
	}
	d.eng.SetPriceBand(args[0], ref, pct)
	fmt.Fprintf(d.out, "Price band set: %s %s%% around %s\n", args[0], pct, ref)
}
