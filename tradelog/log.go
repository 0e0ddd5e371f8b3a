// Package tradelog records executed trades. The log is append-only:
// trades are immutable once written, reads return copies, and
// per-symbol read order matches execution order under that symbol's
// book lock. Cross-symbol interleaving carries no guarantee.
package tradelog

import (
	"sync"

	"go.uber.org/zap"

	"heimdall/domain/orderbook"
)

// Sink receives every appended trade, after it has been recorded.
// Implementations must not mutate the trade. A failing sink never
// unwinds a trade; the fill is already committed under the book lock.
type Sink interface {
	Append(t orderbook.Trade) error
}

type Log struct {
	mu     sync.Mutex
	seq    uint64
	trades []orderbook.Trade
	sinks  []Sink
	log    *zap.Logger
}

func New(log *zap.Logger, sinks ...Sink) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{sinks: sinks, log: log}
}

// Append stamps each trade with the next log sequence and records it,
// then fans out to the sinks in order.
func (l *Log) Append(trades ...orderbook.Trade) {
	if len(trades) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range trades {
		l.seq++
		trades[i].Seq = l.seq
		l.trades = append(l.trades, trades[i])

		for _, s := range l.sinks {
			if err := s.Append(trades[i]); err != nil {
				l.log.Error("trade sink append failed",
					zap.Uint64("seq", trades[i].Seq),
					zap.String("symbol", trades[i].Symbol),
					zap.Error(err))
			}
		}
	}
}

// BySymbol returns the symbol's trades in execution order.
func (l *Log) BySymbol(symbol string) []orderbook.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []orderbook.Trade
	for _, t := range l.trades {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out
}

// All returns a copy of every trade recorded so far.
func (l *Log) All() []orderbook.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]orderbook.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trades)
}
