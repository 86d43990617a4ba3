// Package builtins registers every strategy shipped with turtle.
package builtins

import (
	"github.com/newthinker/turtle/internal/strategy"
	"github.com/newthinker/turtle/internal/strategy/breakout"
	"github.com/newthinker/turtle/internal/strategy/exit"
)

// Registry returns a registry holding all built-in open and close strategies.
func Registry() *strategy.Registry {
	r := strategy.NewRegistry()
	r.RegisterOpen(breakout.NewIntraday())
	r.RegisterOpen(breakout.NewOnClose())
	r.RegisterClose(exit.NewChannel())
	r.RegisterClose(exit.NewReversal())
	return r
}
