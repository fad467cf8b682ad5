// Package uictl defines the read-only controls the TUI polls on each frame.
package uictl

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Levels is a control that can read the most recent sample levels.
type Levels[N Number] interface {
	Read() []N
}

// LevelsFunc adapts a function to Levels.
type LevelsFunc[N Number] func() []N

func (f LevelsFunc[N]) Read() []N { return f() }
