// Package orderbook holds resting limit interest for many symbols.
//
// Each symbol has a bid and an ask SideBook. A SideBook keeps its price
// levels in a B-tree ordered by aggressiveness (highest bid first, lowest
// ask first); a PriceLevel is a FIFO of orders with a running aggregate
// volume. Empty levels are removed from the tree as soon as they drain, so
// the tree minimum is always the best price.
//
// The package is single-writer and does no locking of its own.
package orderbook
