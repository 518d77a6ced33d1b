package selection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomstage/studio/internal/geometry"
)

func pt(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

func down(x, y float64) Event { return Event{Kind: Down, Point: pt(x, y)} }
func move(x, y float64) Event { return Event{Kind: Move, Point: pt(x, y)} }
func grab(h Handle, x, y float64) Event {
	return Event{Kind: HandleDown, Handle: h, Point: pt(x, y)}
}

var up = Event{Kind: Up}

func TestDragSelectsNormalisedRect(t *testing.T) {
	s := Run(State{}, down(100, 80), move(40, 20))

	assert.Equal(t, Selecting, s.Mode)
	require.NotNil(t, s.Selection)
	assert.Equal(t, geometry.Rect{X: 40, Y: 20, Width: 60, Height: 60}, *s.Selection)

	s = Next(s, up)
	assert.Equal(t, Idle, s.Mode)
	require.NotNil(t, s.Selection)
}

func TestTinySelectionDropped(t *testing.T) {
	s := Run(State{}, down(10, 10), move(15, 18), up)
	assert.Equal(t, Idle, s.Mode)
	assert.Nil(t, s.Selection)

	// One long edge is enough to keep it.
	s = Run(State{}, down(10, 10), move(15, 60), up)
	require.NotNil(t, s.Selection)
	assert.Equal(t, 50.0, s.Selection.Height)
}

func TestDownIgnoredWhileSelectionExists(t *testing.T) {
	s := Run(State{}, down(0, 0), move(50, 50), up)
	before := *s.Selection

	s = Next(s, down(200, 200))
	assert.Equal(t, Idle, s.Mode)
	assert.Equal(t, before, *s.Selection)
}

func TestResizeHandles(t *testing.T) {
	start := geometry.Rect{X: 100, Y: 100, Width: 50, Height: 50}

	tests := []struct {
		handle Handle
		want   geometry.Rect
	}{
		{HandleNW, geometry.Rect{X: 110, Y: 95, Width: 40, Height: 55}},
		{HandleNE, geometry.Rect{X: 100, Y: 95, Width: 60, Height: 55}},
		{HandleSW, geometry.Rect{X: 110, Y: 100, Width: 40, Height: 45}},
		{HandleSE, geometry.Rect{X: 100, Y: 100, Width: 60, Height: 45}},
		{HandleN, geometry.Rect{X: 100, Y: 95, Width: 50, Height: 55}},
		{HandleS, geometry.Rect{X: 100, Y: 100, Width: 50, Height: 45}},
		{HandleW, geometry.Rect{X: 110, Y: 100, Width: 40, Height: 50}},
		{HandleE, geometry.Rect{X: 100, Y: 100, Width: 60, Height: 50}},
	}
	for _, tt := range tests {
		t.Run(string(tt.handle), func(t *testing.T) {
			r := start
			s := State{Selection: &r}
			s = Run(s, grab(tt.handle, 0, 0), move(10, -5))
			assert.Equal(t, Resizing, s.Mode)
			assert.Equal(t, tt.want, *s.Selection)
			assert.Equal(t, pt(10, -5), s.Anchor)

			s = Next(s, up)
			assert.Equal(t, Idle, s.Mode)
			assert.Equal(t, tt.want, *s.Selection)
		})
	}
}

func TestResizeRejectsUndersized(t *testing.T) {
	r := geometry.Rect{X: 0, Y: 0, Width: 20, Height: 20}
	s := Run(State{Selection: &r}, grab(HandleE, 0, 0), move(-15, 0))

	assert.Equal(t, Resizing, s.Mode)
	assert.Equal(t, 20.0, s.Selection.Width)
	assert.Equal(t, pt(0, 0), s.Anchor, "anchor only advances on accepted moves")

	s = Next(s, move(-5, 0))
	assert.Equal(t, 15.0, s.Selection.Width)
}

func TestHandleDownNeedsSelection(t *testing.T) {
	s := Next(State{}, grab(HandleSE, 0, 0))
	assert.Equal(t, Idle, s.Mode)

	r := geometry.Rect{Width: 20, Height: 20}
	s = Next(State{Selection: &r}, grab("middle", 0, 0))
	assert.Equal(t, Idle, s.Mode)
}

func TestClearResets(t *testing.T) {
	s := Run(State{}, down(0, 0), move(50, 50), Event{Kind: Clear})
	assert.Equal(t, State{}, s)
}

func TestNextDoesNotMutateInput(t *testing.T) {
	r := geometry.Rect{X: 0, Y: 0, Width: 50, Height: 50}
	s := Run(State{Selection: &r}, grab(HandleSE, 0, 0))
	_ = Next(s, move(10, 10))
	assert.Equal(t, geometry.Rect{X: 0, Y: 0, Width: 50, Height: 50}, r)
}

func TestStateJSON(t *testing.T) {
	s := Run(State{}, down(0, 0), move(20, 20))
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mode":"selecting"`)
}

func TestStateJSONRoundTrip(t *testing.T) {
	r := geometry.Rect{X: 1, Y: 2, Width: 30, Height: 40}
	in := State{Mode: Resizing, Selection: &r, Handle: HandleSE, Anchor: pt(5, 6)}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out State
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"mode":"dragging"}`), &out))
}
