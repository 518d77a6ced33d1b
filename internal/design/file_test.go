package design

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomstage/studio/internal/geometry"
)

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.yaml")
	src := `room: room.png
items:
  - id: item_a
    image: sofa.png
    position: {x: 120, y: 80}
    scale: 1.5
    rotation: 90
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	d, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "room.png", d.Room)
	require.Len(t, d.Items, 1)
	assert.Equal(t, geometry.Point{X: 120, Y: 80}, d.Items[0].Position)
	assert.Equal(t, 1.5, d.Items[0].Scale)
	assert.Equal(t, 90.0, d.Items[0].Rotation)
}

func TestSaveLoadKeepsFormat(t *testing.T) {
	d := &Design{Room: "room.png", Items: []Item{item("a", 10, 20, 2)}}

	for _, name := range []string{"room.json", "room.yml"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, Save(d, path))

		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, d, got, name)
	}
}

func TestSaveReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	d := &Design{Room: "room.png", Items: []Item{item("a", 10, 20, 2)}}

	assert.Error(t, Save(d, "/dev/full"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodeReportsWriterErrors(t *testing.T) {
	d := &Design{Room: "room.png", Items: []Item{item("a", 10, 20, 2)}}

	assert.ErrorContains(t, encode(failingWriter{}, d, false), "disk full")
	assert.ErrorContains(t, encode(failingWriter{}, d, true), "disk full")
}

func TestLoadReportsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "broken.json")
}
