package strategy

import "github.com/newthinker/turtle/internal/core"

// OpenSignal is a fired entry: the side and the price the position fills at.
type OpenSignal struct {
	Direction core.Direction
	Price     float64
}

// CloseSignal is a fired exit at Price.
type CloseSignal struct {
	Price float64
}

// OpenStrategy decides whether today's bar breaks the reference level in the
// given direction. A nil signal means no entry.
type OpenStrategy interface {
	Code() string
	Description() string
	Decide(bar core.DailyBar, dir core.Direction, ref float64) *OpenSignal
}

// CloseStrategy decides whether today's bar exits the held position against
// the reference level. A nil signal means hold.
type CloseStrategy interface {
	Code() string
	Description() string
	Decide(bar core.DailyBar, pos core.Position, ref float64) *CloseSignal
}
