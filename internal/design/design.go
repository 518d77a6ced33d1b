// Package design holds the room layout being edited: the room photo and the
// furniture placed on it.
package design

import (
	"math/rand"

	"github.com/roomstage/studio/internal/compositor"
	"github.com/roomstage/studio/internal/geometry"
	"github.com/roomstage/studio/internal/typeid"
)

// Item is one piece of furniture placed on the room.
type Item struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Image    string         `json:"image" yaml:"image"`
	Position geometry.Point `json:"position" yaml:"position"`
	Scale    float64        `json:"scale" yaml:"scale"`
	Rotation float64        `json:"rotation" yaml:"rotation"`
}

// Bounds is the item's footprint on the canvas: the 100×100 base box scaled
// by Scale, anchored at Position. Rotation is ignored.
func (it Item) Bounds() geometry.Rect {
	size := compositor.BaseSize * it.Scale
	return geometry.Rect{X: it.Position.X, Y: it.Position.Y, Width: size, Height: size}
}

// Sprite converts the item into its compositor form.
func (it Item) Sprite() compositor.Sprite {
	return compositor.Sprite{
		Image:    it.Image,
		Position: it.Position,
		Scale:    it.Scale,
		Rotation: it.Rotation,
	}
}

// Design is a room photo with furniture in paint order: later items are
// drawn on top of earlier ones.
type Design struct {
	Room  string `json:"room" yaml:"room"`
	Items []Item `json:"items" yaml:"items"`
}

// NewItems creates items for freshly uploaded furniture images, staggered
// diagonally so they don't stack on top of each other.
func NewItems(images, names []string) []Item {
	items := make([]Item, len(images))
	for i, img := range images {
		var name string
		if i < len(names) {
			name = names[i]
		}
		offset := float64(100 + i*50)
		items[i] = Item{
			ID:       typeid.NewItemID(),
			Name:     name,
			Image:    img,
			Position: geometry.Point{X: offset, Y: offset},
			Scale:    1,
		}
	}
	return items
}

// Sprites returns the composite sprites in paint order.
func (d *Design) Sprites() []compositor.Sprite {
	out := make([]compositor.Sprite, len(d.Items))
	for i, it := range d.Items {
		out[i] = it.Sprite()
	}
	return out
}

// FurnitureBoxes returns the footprint of every item, as sent to inpainting.
func (d *Design) FurnitureBoxes() []geometry.Rect {
	out := make([]geometry.Rect, len(d.Items))
	for i, it := range d.Items {
		out[i] = it.Bounds()
	}
	return out
}

// CompositeRequest builds the compositor request for a w×h output.
func (d *Design) CompositeRequest(w, h int) compositor.Request {
	return compositor.Request{
		Background: d.Room,
		Sprites:    d.Sprites(),
		Width:      w,
		Height:     h,
	}
}

// RemoveOverlapping drops every item whose footprint overlaps any of the
// erased regions and returns the removed items.
func (d *Design) RemoveOverlapping(regions []geometry.Rect) []Item {
	var kept, removed []Item
	for _, it := range d.Items {
		if overlapsAny(it.Bounds(), regions) {
			removed = append(removed, it)
			continue
		}
		kept = append(kept, it)
	}
	d.Items = kept
	return removed
}

func overlapsAny(r geometry.Rect, regions []geometry.Rect) bool {
	for _, reg := range regions {
		if r.Overlaps(reg) {
			return true
		}
	}
	return false
}

// ItemAt returns the topmost item whose footprint contains p.
func (d *Design) ItemAt(p geometry.Point) (Item, bool) {
	for i := len(d.Items) - 1; i >= 0; i-- {
		if d.Items[i].Bounds().Contains(p.X, p.Y) {
			return d.Items[i], true
		}
	}
	return Item{}, false
}

// AutoPlace spreads items over the room on a three-column grid with a
// little random scale and rotation. Pass a seeded rng for repeatable layouts.
func AutoPlace(items []Item, rng *rand.Rand) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.Position = geometry.Point{
			X: float64(200 + (i*150)%400),
			Y: float64(150 + (i/3)*120),
		}
		it.Scale = 0.8 + rng.Float64()*0.4
		it.Rotation = rng.Float64() * 360
		out[i] = it
	}
	return out
}
