// Package selection implements the rectangle picker used to mark regions of
// the room photo for erasure. It is a small state machine: every pointer
// event is fed through Next, which returns the new state without touching
// the old one.
package selection

import (
	"fmt"
	"math"

	"github.com/roomstage/studio/internal/geometry"
)

// MinSize is the smallest edge a kept selection may have.
const MinSize = 10.0

type Mode int

const (
	Idle Mode = iota
	Selecting
	Resizing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Resizing:
		return "resizing"
	}
	return "unknown"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle", "":
		*m = Idle
	case "selecting":
		*m = Selecting
	case "resizing":
		*m = Resizing
	default:
		return fmt.Errorf("unknown selection mode %q", b)
	}
	return nil
}

// Handle names a resize grip on the selection: corners and edge midpoints.
type Handle string

const (
	HandleNW Handle = "nw"
	HandleNE Handle = "ne"
	HandleSW Handle = "sw"
	HandleSE Handle = "se"
	HandleN  Handle = "n"
	HandleS  Handle = "s"
	HandleW  Handle = "w"
	HandleE  Handle = "e"
)

// Valid reports whether h is a known handle.
func (h Handle) Valid() bool {
	switch h {
	case HandleNW, HandleNE, HandleSW, HandleSE, HandleN, HandleS, HandleW, HandleE:
		return true
	}
	return false
}

// State is the full picker state. Selection is nil when nothing is selected.
type State struct {
	Mode      Mode           `json:"mode"`
	Selection *geometry.Rect `json:"selection"`
	Handle    Handle         `json:"handle,omitempty"`
	Anchor    geometry.Point `json:"anchor"`
}

// EventKind identifies a pointer event.
type EventKind string

const (
	Down       EventKind = "down"
	HandleDown EventKind = "handle_down"
	Move       EventKind = "move"
	Up         EventKind = "up"
	Clear      EventKind = "clear"
)

// Event is a pointer event in canvas coordinates.
type Event struct {
	Kind   EventKind      `json:"kind"`
	Point  geometry.Point `json:"point"`
	Handle Handle         `json:"handle,omitempty"`
}

// Next returns the state that follows s after e.
func Next(s State, e Event) State {
	if e.Kind == Clear {
		return State{}
	}

	switch s.Mode {
	case Idle:
		return idle(s, e)
	case Selecting:
		return selecting(s, e)
	case Resizing:
		return resizing(s, e)
	}
	return s
}

func idle(s State, e Event) State {
	switch e.Kind {
	case Down:
		// An existing selection has to be cleared or resized first.
		if s.Selection != nil {
			return s
		}
		return State{
			Mode:      Selecting,
			Selection: &geometry.Rect{X: e.Point.X, Y: e.Point.Y},
			Anchor:    e.Point,
		}
	case HandleDown:
		if s.Selection == nil || !e.Handle.Valid() {
			return s
		}
		return State{
			Mode:      Resizing,
			Selection: s.Selection,
			Handle:    e.Handle,
			Anchor:    e.Point,
		}
	}
	return s
}

func selecting(s State, e Event) State {
	switch e.Kind {
	case Move:
		r := geometry.Rect{
			X:      math.Min(s.Anchor.X, e.Point.X),
			Y:      math.Min(s.Anchor.Y, e.Point.Y),
			Width:  math.Abs(e.Point.X - s.Anchor.X),
			Height: math.Abs(e.Point.Y - s.Anchor.Y),
		}
		s.Selection = &r
		return s
	case Up:
		next := State{Selection: s.Selection, Anchor: s.Anchor}
		if sel := s.Selection; sel != nil && sel.Width < MinSize && sel.Height < MinSize {
			next.Selection = nil
		}
		return next
	}
	return s
}

func resizing(s State, e Event) State {
	switch e.Kind {
	case Move:
		if s.Selection == nil {
			return s
		}
		r := resize(*s.Selection, s.Handle, e.Point.X-s.Anchor.X, e.Point.Y-s.Anchor.Y)
		if r.Width < MinSize || r.Height < MinSize {
			return s
		}
		s.Selection = &r
		s.Anchor = e.Point
		return s
	case Up:
		return State{Selection: s.Selection, Anchor: s.Anchor}
	}
	return s
}

func resize(r geometry.Rect, h Handle, dx, dy float64) geometry.Rect {
	switch h {
	case HandleNW:
		r.X += dx
		r.Y += dy
		r.Width -= dx
		r.Height -= dy
	case HandleNE:
		r.Y += dy
		r.Width += dx
		r.Height -= dy
	case HandleSW:
		r.X += dx
		r.Width -= dx
		r.Height += dy
	case HandleSE:
		r.Width += dx
		r.Height += dy
	case HandleN:
		r.Y += dy
		r.Height -= dy
	case HandleS:
		r.Height += dy
	case HandleW:
		r.X += dx
		r.Width -= dx
	case HandleE:
		r.Width += dx
	}
	return r
}

// Run folds a sequence of events over s.
func Run(s State, events ...Event) State {
	for _, e := range events {
		s = Next(s, e)
	}
	return s
}
