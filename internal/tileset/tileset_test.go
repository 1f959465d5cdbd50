package tileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilecraft/postserve/internal/errs"
)

const inlineTileset = `
tileset:
  name: basemap
  description: Test basemap
  attribution: '<a href="http://example.com">Example</a>'
  version: "1.0"
  minzoom: 0
  maxzoom: 14
  center: [8.54, 47.37, 10]
  pixel_scale: 256
  layers:
    - layer:
        id: water
        description: Water polygons
        buffer_size: 4
        fields:
          class: Lake, river or ocean
        datasource:
          geometry_field: geometry
          query: (SELECT geometry, class FROM layer_water(!bbox!, z(!scale_denominator!))) AS t
    - layer:
        id: place
        description: Place labels
        fields:
          name: Place name
          rank: Importance rank
        datasource:
          query: (SELECT geometry, name, rank FROM layer_place(!bbox!, z(!scale_denominator!), !pixel_width!)) AS t
`

func TestParse_Inline(t *testing.T) {
	ts, err := Parse([]byte(inlineTileset), DirResolver{})
	require.NoError(t, err)

	assert.Equal(t, "basemap", ts.Name)
	assert.Equal(t, 0, ts.MinZoom)
	assert.Equal(t, 14, ts.MaxZoom)
	assert.Equal(t, []float64{8.54, 47.37, 10}, ts.Center)
	assert.Equal(t, 256, ts.PixelScale)

	require.Len(t, ts.Layers, 2)
	assert.Equal(t, "water", ts.Layers[0].ID)
	assert.Equal(t, "place", ts.Layers[1].ID)
	assert.Equal(t, 4, ts.Layers[0].BufferSize)
	assert.Contains(t, ts.Layers[0].Datasource.Query, "!bbox!")
	assert.Equal(t, []string{"name", "rank"}, ts.Layers[1].FieldNames())
}

func TestParse_LayerOrderPreserved(t *testing.T) {
	ts, err := Parse([]byte(inlineTileset), DirResolver{})
	require.NoError(t, err)

	ids := make([]string, len(ts.Layers))
	for i, l := range ts.Layers {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"water", "place"}, ids)
}

func TestLoad_FileIndirection(t *testing.T) {
	dir := t.TempDir()

	layerYAML := `
layer:
  id: water
  description: Water polygons
  datasource:
    query: (SELECT geometry, class FROM water WHERE geometry && !bbox!) AS t
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "layers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layers", "water.yaml"), []byte(layerYAML), 0o644))

	tilesetYAML := `
tileset:
  name: basemap
  minzoom: 0
  maxzoom: 14
  layers:
    - layers/water.yaml
`
	path := filepath.Join(dir, "tileset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tilesetYAML), 0o644))

	ts, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ts.Layers, 1)
	assert.Equal(t, "water", ts.Layers[0].ID)
	assert.Equal(t, "Water polygons", ts.Layers[0].Description)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "not yaml",
			yaml: "{{{",
		},
		{
			name: "no name",
			yaml: "tileset:\n  layers:\n    - layer:\n        id: a\n        datasource:\n          query: (SELECT 1) AS t\n",
		},
		{
			name: "no layers",
			yaml: "tileset:\n  name: empty\n",
		},
		{
			name: "layer without id",
			yaml: "tileset:\n  name: x\n  layers:\n    - layer:\n        datasource:\n          query: (SELECT 1) AS t\n",
		},
		{
			name: "layer without query",
			yaml: "tileset:\n  name: x\n  layers:\n    - layer:\n        id: water\n",
		},
		{
			name: "missing layer file",
			yaml: "tileset:\n  name: x\n  layers:\n    - does/not/exist.yaml\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), DirResolver{Base: t.TempDir()})
			require.Error(t, err)
			assert.True(t, errs.IsInvalidInput(err), "expected invalid_input, got %v", err)
		})
	}
}
