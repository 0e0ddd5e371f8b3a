// Package journal is the durable trade outbox. Every executed trade is
// written to a pebble keyspace keyed by its log sequence, with an
// outbox state that the feed broadcaster walks: NEW on append, SENT
// once handed to the publisher, ACKED once the broker confirmed it.
//
// The journal records trades only. Book state is never persisted and
// nothing here is replayed into the engine.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"heimdall/domain/orderbook"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	}
	return "UNKNOWN"
}

// Record is one journaled trade plus its outbox bookkeeping.
type Record struct {
	State       State  `json:"state"`
	Retries     uint32 `json:"retries"`
	LastAttempt int64  `json:"last_attempt"`
	Trade       Entry  `json:"trade"`
}

// Entry is the serialized trade. Price stays in ticks; consumers scale
// it with the engine's price scale.
type Entry struct {
	Seq         uint64 `json:"seq"`
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Symbol      string `json:"symbol"`
	Price       int64  `json:"price"`
	Qty         int64  `json:"qty"`
	ExecutedAt  int64  `json:"executed_at"`
}

type Journal struct {
	db *pebble.DB
}

func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append writes the trade as a NEW outbox record. Implements
// tradelog.Sink.
func (j *Journal) Append(t orderbook.Trade) error {
	rec := Record{
		State: StateNew,
		Trade: Entry{
			Seq:         t.Seq,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			Symbol:      t.Symbol,
			Price:       t.Price,
			Qty:         t.Qty,
			ExecutedAt:  t.ExecutedAt.UnixNano(),
		},
	}
	return j.put(t.Seq, rec)
}

// Get returns the record for seq.
func (j *Journal) Get(seq uint64) (Record, error) {
	val, closer, err := j.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ScanPending visits every record not yet ACKED, in sequence order.
func (j *Journal) ScanPending(fn func(Record) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return err
		}
		if rec.State == StateAcked {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// MarkSent transitions seq to SENT and counts the attempt.
func (j *Journal) MarkSent(seq uint64) error {
	return j.transition(seq, StateSent)
}

// MarkAcked transitions seq to ACKED.
func (j *Journal) MarkAcked(seq uint64) error {
	return j.transition(seq, StateAcked)
}

func (j *Journal) transition(seq uint64, to State) error {
	rec, err := j.Get(seq)
	if err != nil {
		return err
	}
	rec.State = to
	if to == StateSent {
		rec.Retries++
	}
	rec.LastAttempt = time.Now().UnixNano()
	return j.put(seq, rec)
}

func (j *Journal) put(seq uint64, rec Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.db.Set(keyFor(seq), val, pebble.Sync)
}

const keyPrefix = "trade/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}
