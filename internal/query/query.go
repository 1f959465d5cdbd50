// Package query turns a tileset definition into the single parameterized
// SQL statement that renders one vector tile, and produces the degenerate
// query variants used for schema introspection.
//
// The generated tile statement has exactly three positional parameters:
// $1 = zoom, $2 = x, $3 = y. It is built once at startup and shared
// read-only by every request.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tilecraft/postserve/internal/tileset"
)

const (
	// Extent is the tile extent in MVT coordinate units.
	Extent = 4096

	// PixelScale is the value substituted for the !pixel_width! and
	// !pixel_height! tokens.
	PixelScale = 256

	// DefaultBuffer is the clip buffer, in MVT units, for layers that do
	// not declare a buffer_size.
	DefaultBuffer = 4
)

// Options adjusts tile query generation.
type Options struct {
	// MaskLayer, when set, names a layer that is only rendered below
	// MaskZoom. Above that zoom its rows are filtered out and the layer
	// contributes an empty fragment.
	MaskLayer string
	MaskZoom  int
}

// Generate builds the tile query for ts. Each layer's datasource template is
// bound to the live tile bounds, wrapped in ST_AsMVTGeom/ST_AsMVT, and all
// layer fragments are concatenated into one binary payload.
func Generate(ts *tileset.Tileset, opts Options) string {
	parts := make([]string, len(ts.Layers))
	for i, layer := range ts.Layers {
		parts[i] = layerSelect(layer, opts)
	}

	return fmt.Sprintf(
		"SELECT STRING_AGG(mvtl, '') AS mvt FROM (\n%s\n) AS all_layers",
		strings.Join(parts, "\n  UNION ALL\n"),
	)
}

// layerSelect renders one layer's UNION ALL branch.
func layerSelect(layer tileset.Layer, opts Options) string {
	geom := layer.Datasource.GeometryField
	if geom == "" {
		geom = "geometry"
	}
	buffer := layer.BufferSize
	if buffer == 0 {
		buffer = DefaultBuffer
	}

	mvtGeom := fmt.Sprintf(
		"ST_AsMVTGeom(%s, TileBBox($1, $2, $3), %d, %d, true)",
		quoteIdent(geom), Extent, buffer,
	)

	columns := make([]string, 0, len(layer.Fields)+1)
	columns = append(columns, mvtGeom+" AS mvtgeometry")
	for _, name := range layer.FieldNames() {
		columns = append(columns, quoteIdent(name))
	}

	where := mvtGeom + " IS NOT NULL"
	if opts.MaskLayer != "" && layer.ID == opts.MaskLayer {
		where += fmt.Sprintf(" AND $1 < %d", opts.MaskZoom)
	}

	return fmt.Sprintf(
		"  SELECT COALESCE(ST_AsMVT(t, %s, %d, 'mvtgeometry'), '') AS mvtl"+
			" FROM (SELECT %s FROM %s WHERE %s) AS t",
		quoteLiteral(layer.ID), Extent,
		strings.Join(columns, ", "),
		ForTile(layer.Datasource.Query),
		where,
	)
}

// ForTile substitutes a datasource template's placeholder tokens with the
// live tile expressions: !bbox! becomes the tile envelope computed from the
// three query parameters, and the zoom token becomes $1.
func ForTile(template string) string {
	return substitute(template, "TileBBox($1, $2, $3)", "$1")
}

// Introspection rewrites a datasource template with degenerate spatial
// arguments (the whole world at zoom 0) and wraps it in a zero-row filter.
// Preparing the result forces the server to plan and describe the row shape
// without materializing any rows.
func Introspection(template string) string {
	q := substitute(template, "TileBBox(0, 0, 0)", "0")
	return fmt.Sprintf("SELECT * FROM %s WHERE false LIMIT 0", q)
}

// substitute replaces every placeholder token in template. The zoom token is
// replaced before !bbox! so the z(…) wrapper never survives partially.
func substitute(template, bbox, zoom string) string {
	pixel := strconv.Itoa(PixelScale)
	return strings.NewReplacer(
		"z(!scale_denominator!)", zoom,
		"!bbox!", bbox,
		"!pixel_width!", pixel,
		"!pixel_height!", pixel,
	).Replace(template)
}

// quoteLiteral renders s as a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent renders s as a quoted SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
