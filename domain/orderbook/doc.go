// Package orderbook implements the per-symbol limit order book: two
// red-black trees of price levels (bids descending, asks ascending),
// FIFO queues within each level, and the execution protocols for
// limit, market, IOC, and FOK orders under strict price-time priority.
//
// A Book is safe for concurrent use; one reader-writer lock covers the
// symbol's pair of sides. Cancellation is cooperative: cancelled
// orders are marked and pruned lazily when they reach the head of
// their level.
package orderbook
