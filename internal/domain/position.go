package domain

import "time"

// Side is the direction of the single position the bot may hold per symbol.
type Side string

const (
	SideNone  Side = "NONE"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ParseSide converts a stored string into a Side. Unknown values map to
// SideNone so a corrupted store entry degrades to "no position" rather than
// an invalid state.
func ParseSide(s string) Side {
	switch Side(s) {
	case SideLong:
		return SideLong
	case SideShort:
		return SideShort
	default:
		return SideNone
	}
}

// Position is the current position for a symbol. At most one position exists
// per symbol at any time; Side != SideNone implies EntryPrice > 0.
type Position struct {
	Symbol     string    // Trading symbol (e.g., "BTCUSDT")
	Side       Side      // NONE, LONG or SHORT
	EntryPrice float64   // Fill price at open; 0 when flat
	OpenedAt   time.Time // Timestamp of the opening fill (zero value when flat)
}

// IsOpen reports whether a position is currently held.
func (p Position) IsOpen() bool {
	return p.Side != SideNone
}
