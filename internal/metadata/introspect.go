package metadata

import (
	"context"
	"fmt"

	"github.com/tilecraft/postserve/internal/database"
	"github.com/tilecraft/postserve/internal/errs"
	"github.com/tilecraft/postserve/internal/logger"
	"github.com/tilecraft/postserve/internal/query"
	"github.com/tilecraft/postserve/internal/tileset"
)

// Describer is the slice of the database layer introspection needs.
type Describer interface {
	// TypeNames returns the pg_type OID → type name catalog.
	TypeNames(ctx context.Context) (map[uint32]string, error)

	// Describe prepares sql and returns its output column descriptors
	// without executing it.
	Describe(ctx context.Context, sql string) ([]database.Column, error)
}

// Introspector discovers each layer's output field schema by preparing a
// zero-row variant of the layer's query against the live database.
type Introspector struct {
	db  Describer
	ts  *tileset.Tileset
	log *logger.Logger
}

// NewIntrospector returns an Introspector over db for ts.
func NewIntrospector(db Describer, ts *tileset.Tileset, log *logger.Logger) *Introspector {
	return &Introspector{db: db, ts: ts, log: log}
}

// Build runs introspection for every layer, in the tileset's declared order,
// and assembles the metadata document. tileURL is the absolute tile URL
// template advertised under "tiles".
//
// Any failure is fatal: the service must not begin serving with an
// incomplete document.
func (in *Introspector) Build(ctx context.Context, tileURL string) (*Document, error) {
	categories, err := in.typeCategories(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStartupFailed, "failed to load type catalog", err)
	}

	layers := make([]LayerDescriptor, 0, len(in.ts.Layers))
	for _, layer := range in.ts.Layers {
		desc, err := in.describeLayer(ctx, layer, categories)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindStartupFailed,
				fmt.Sprintf("failed to introspect layer %q", layer.ID), err)
		}
		layers = append(layers, *desc)
	}

	bounds := in.ts.Bounds
	if len(bounds) != 4 {
		bounds = worldBounds
	}

	return &Document{
		TileJSON:     "2.0.0",
		Name:         in.ts.Name,
		Description:  in.ts.Description,
		Attribution:  in.ts.Attribution,
		Version:      in.ts.Version,
		Format:       "pbf",
		MinZoom:      in.ts.MinZoom,
		MaxZoom:      in.ts.MaxZoom,
		Bounds:       bounds,
		Center:       in.ts.Center,
		Tiles:        []string{tileURL},
		VectorLayers: layers,
	}, nil
}

// typeCategories scans pg_type once and keeps only the OIDs whose type name
// is in the closed knownTypes mapping.
func (in *Introspector) typeCategories(ctx context.Context) (map[uint32]TypeCategory, error) {
	names, err := in.db.TypeNames(ctx)
	if err != nil {
		return nil, err
	}

	categories := make(map[uint32]TypeCategory, len(knownTypes))
	for oid, name := range names {
		if cat, ok := knownTypes[name]; ok {
			categories[oid] = cat
		}
	}
	return categories, nil
}

// describeLayer prepares the layer's zero-row introspection query and maps
// its output columns. Columns with an unmapped type OID are dropped.
func (in *Introspector) describeLayer(ctx context.Context, layer tileset.Layer, categories map[uint32]TypeCategory) (*LayerDescriptor, error) {
	cols, err := in.db.Describe(ctx, query.Introspection(layer.Datasource.Query))
	if err != nil {
		return nil, err
	}

	fields := make(map[string]TypeCategory)
	for _, col := range cols {
		if cat, ok := categories[col.TypeOID]; ok {
			fields[col.Name] = cat
		}
	}

	in.log.With().Str("layer", layer.ID).Int("fields", len(fields)).Logger().
		Debug("layer introspected")

	return &LayerDescriptor{
		ID:          layer.ID,
		Description: layer.Description,
		MinZoom:     in.ts.MinZoom,
		MaxZoom:     in.ts.MaxZoom,
		Fields:      fields,
	}, nil
}
