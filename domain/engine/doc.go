// Package engine is the matching engine: PlaceOrder crosses an incoming
// limit order against the opposite side of its symbol, best price first and
// oldest first within a price, and rests whatever a GoodTilCancel order
// leaves unfilled. FillOrKill orders are checked against crossable volume
// before any execution step, so a rejected order never changes the book.
package engine
