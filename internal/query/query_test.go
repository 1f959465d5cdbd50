package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilecraft/postserve/internal/tileset"
)

func TestForTile(t *testing.T) {
	template := "(SELECT geometry, class FROM layer_water(!bbox!, z(!scale_denominator!), !pixel_width!, !pixel_height!)) AS t"

	got := ForTile(template)

	assert.Equal(t,
		"(SELECT geometry, class FROM layer_water(TileBBox($1, $2, $3), $1, 256, 256)) AS t",
		got)
}

func TestIntrospection(t *testing.T) {
	template := "(SELECT geometry, class FROM layer_water(!bbox!, z(!scale_denominator!))) AS t"

	got := Introspection(template)

	assert.Equal(t,
		"SELECT * FROM (SELECT geometry, class FROM layer_water(TileBBox(0, 0, 0), 0)) AS t WHERE false LIMIT 0",
		got)
	assert.NotContains(t, got, "!")
	assert.NotContains(t, got, "$")
}

func TestGenerate(t *testing.T) {
	ts := &tileset.Tileset{
		Name: "basemap",
		Layers: []tileset.Layer{
			{
				ID:         "water",
				BufferSize: 8,
				Fields:     map[string]any{"class": "desc"},
				Datasource: tileset.Datasource{
					Query: "(SELECT geometry, class FROM water WHERE geometry && !bbox!) AS t",
				},
			},
			{
				ID:     "place",
				Fields: map[string]any{"name": "desc", "rank": "desc"},
				Datasource: tileset.Datasource{
					GeometryField: "geom",
					Query:         "(SELECT geom, name, rank FROM place WHERE geom && !bbox!) AS t",
				},
			},
		},
	}

	sql := Generate(ts, Options{})

	// One UNION ALL branch per layer, in declared order.
	assert.Equal(t, 1, strings.Count(sql, "UNION ALL"))
	assert.Less(t, strings.Index(sql, "'water'"), strings.Index(sql, "'place'"))

	// All placeholders resolved to the three positional parameters.
	assert.NotContains(t, sql, "!bbox!")
	assert.Contains(t, sql, "TileBBox($1, $2, $3)")

	// Declared buffer respected; default applied otherwise.
	assert.Contains(t, sql, `ST_AsMVTGeom("geometry", TileBBox($1, $2, $3), 4096, 8, true)`)
	assert.Contains(t, sql, `ST_AsMVTGeom("geom", TileBBox($1, $2, $3), 4096, 4, true)`)

	// Declared fields carried through as quoted identifiers.
	assert.Contains(t, sql, `"class"`)
	assert.Contains(t, sql, `"name", "rank"`)

	// Layer fragments concatenated into a single scalar result.
	assert.True(t, strings.HasPrefix(sql, "SELECT STRING_AGG(mvtl, '') AS mvt FROM ("))
}

func TestGenerate_MaskLayer(t *testing.T) {
	ts := &tileset.Tileset{
		Name: "basemap",
		Layers: []tileset.Layer{
			{
				ID:         "water",
				Datasource: tileset.Datasource{Query: "(SELECT geometry FROM water) AS t"},
			},
			{
				ID:         "place",
				Datasource: tileset.Datasource{Query: "(SELECT geometry FROM place) AS t"},
			},
		},
	}

	sql := Generate(ts, Options{MaskLayer: "water", MaskZoom: 8})

	branches := strings.Split(sql, "UNION ALL")
	require.Len(t, branches, 2)
	assert.Contains(t, branches[0], "$1 < 8")
	assert.NotContains(t, branches[1], "$1 < 8")
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, "'it''s'", quoteLiteral("it's"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
