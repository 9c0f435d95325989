package model

import "errors"

// ErrInsufficientFunds rejects a BUY whose cost exceeds the session balance.
var ErrInsufficientFunds = errors.New("insufficient buying power")

// ErrInsufficientShares rejects a SELL of more shares than the session holds.
var ErrInsufficientShares = errors.New("insufficient shares")

// ErrStockNotFound marks a lookup for a ticker the store has never seen.
var ErrStockNotFound = errors.New("stock not found")
