// Package tileset parses tileset definition files.
//
// A tileset definition declares the service's static properties (name,
// attribution, zoom bounds, center) and an ordered list of vector layers,
// each with an id, a description, declared fields, and a raw datasource
// query template. Query templates carry the placeholder tokens !bbox!,
// z(!scale_denominator!), !pixel_width! and !pixel_height!, substituted
// later by the query package.
//
// Layers may be declared inline or referenced by file path relative to the
// tileset file, mirroring the usual on-disk layout of large tilesets.
package tileset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/tilecraft/postserve/internal/errs"
)

// Datasource holds a layer's raw query template.
type Datasource struct {
	GeometryField string `yaml:"geometry_field"`
	SRID          string `yaml:"srid"`
	Query         string `yaml:"query"`
}

// Layer is one vector layer of the tileset.
type Layer struct {
	ID          string         `yaml:"id"`
	Description string         `yaml:"description"`
	BufferSize  int            `yaml:"buffer_size"`
	Fields      map[string]any `yaml:"fields"`
	Datasource  Datasource     `yaml:"datasource"`
}

// FieldNames returns the layer's declared field names in sorted order.
func (l Layer) FieldNames() []string {
	names := make([]string, 0, len(l.Fields))
	for name := range l.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tileset is a parsed tileset definition. Layers preserve declaration order.
type Tileset struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Attribution string    `yaml:"attribution"`
	Version     string    `yaml:"version"`
	MinZoom     int       `yaml:"minzoom"`
	MaxZoom     int       `yaml:"maxzoom"`
	Center      []float64 `yaml:"center"`
	Bounds      []float64 `yaml:"bounds"`
	PixelScale  int       `yaml:"pixel_scale"`
	Layers      []Layer   `yaml:"-"`
}

// Resolver reads referenced layer files. Implementations exist for the local
// filesystem (DirResolver) and for object storage (wired by the caller).
type Resolver interface {
	ReadFile(path string) ([]byte, error)
}

// DirResolver resolves layer references relative to a base directory.
type DirResolver struct {
	Base string
}

func (r DirResolver) ReadFile(path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.Base, path)
	}
	return os.ReadFile(path)
}

// --- yaml document shapes ---

// layerRef is one entry of tileset.layers: either a file path string or an
// inline layer mapping.
type layerRef struct {
	file   string
	inline *Layer
}

func (r *layerRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&r.file)
	}
	var doc struct {
		File  string `yaml:"file"`
		Layer *Layer `yaml:"layer"`
	}
	if err := value.Decode(&doc); err != nil {
		return err
	}
	if doc.Layer != nil {
		r.inline = doc.Layer
		return nil
	}
	r.file = doc.File
	return nil
}

type tilesetDoc struct {
	Tileset struct {
		Tileset `yaml:",inline"`
		Layers  []layerRef `yaml:"layers"`
	} `yaml:"tileset"`
}

type layerDoc struct {
	Layer Layer `yaml:"layer"`
}

// Load reads and parses the tileset definition at path, resolving layer
// references relative to the file's directory.
func Load(path string) (*Tileset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read tileset file", err)
	}
	return Parse(data, DirResolver{Base: filepath.Dir(path)})
}

// Parse parses a tileset definition, using res to read referenced layer files.
func Parse(data []byte, res Resolver) (*Tileset, error) {
	var doc tilesetDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed tileset definition", err)
	}

	ts := doc.Tileset.Tileset
	if ts.Name == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "tileset has no name")
	}
	if len(doc.Tileset.Layers) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "tileset declares no layers")
	}

	for i, ref := range doc.Tileset.Layers {
		layer, err := resolveLayer(ref, res)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		ts.Layers = append(ts.Layers, *layer)
	}

	return &ts, nil
}

func resolveLayer(ref layerRef, res Resolver) (*Layer, error) {
	layer := ref.inline
	if layer == nil {
		if ref.file == "" {
			return nil, errs.New(errs.ErrKindInvalidInput, "layer entry has neither file nor inline definition")
		}
		data, err := res.ReadFile(ref.file)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("failed to read layer file %q", ref.file), err)
		}
		var doc layerDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("malformed layer file %q", ref.file), err)
		}
		layer = &doc.Layer
	}

	if layer.ID == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "layer has no id")
	}
	if layer.Datasource.Query == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("layer %q has no datasource query", layer.ID))
	}
	return layer, nil
}
