// Package metadata builds the tileset metadata document served at the root
// route: the tileset's static TileJSON properties plus the vector_layers
// array discovered by schema introspection.
package metadata

// TypeCategory is the coarse field type advertised to map clients.
type TypeCategory string

const (
	TypeBoolean TypeCategory = "Boolean"
	TypeString  TypeCategory = "String"
	TypeNumber  TypeCategory = "Number"
)

// knownTypes is the closed mapping from native Postgres type names to
// advertised categories. Columns of any other type are dropped from a
// layer's field list — never surfaced as an error.
var knownTypes = map[string]TypeCategory{
	"bool": TypeBoolean,
	"text": TypeString,
	"int4": TypeNumber,
	"int8": TypeNumber,
}

// LayerDescriptor describes one vector layer: its identity plus the field
// schema discovered by introspection.
type LayerDescriptor struct {
	ID          string                  `json:"id"`
	Description string                  `json:"description"`
	MinZoom     int                     `json:"minzoom"`
	MaxZoom     int                     `json:"maxzoom"`
	Fields      map[string]TypeCategory `json:"fields"`
}

// Document is the full metadata document. It is built once at startup,
// before the service accepts requests, and is immutable thereafter.
type Document struct {
	TileJSON    string    `json:"tilejson"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Attribution string    `json:"attribution,omitempty"`
	Version     string    `json:"version,omitempty"`
	Format      string    `json:"format"`
	MinZoom     int       `json:"minzoom"`
	MaxZoom     int       `json:"maxzoom"`
	Bounds      []float64 `json:"bounds"`
	Center      []float64 `json:"center,omitempty"`

	Tiles        []string          `json:"tiles"`
	VectorLayers []LayerDescriptor `json:"vector_layers"`
}

// worldBounds is the default coverage advertised when the tileset does not
// declare its own bounds (whole world in web-mercator-safe latitudes).
var worldBounds = []float64{-180, -85.0511, 180, 85.0511}
