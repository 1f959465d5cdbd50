// Command postserve serves vector tiles straight from a PostGIS database.
//
// At startup it loads the tileset definition, builds (or loads) the single
// parameterized tile query, connects the pool, and introspects every layer's
// output schema to assemble the metadata document. Only then does it begin
// accepting requests; any failure before that point aborts the process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tilecraft/postserve/internal/config"
	"github.com/tilecraft/postserve/internal/database"
	"github.com/tilecraft/postserve/internal/filestore"
	fsminio "github.com/tilecraft/postserve/internal/filestore/minio"
	"github.com/tilecraft/postserve/internal/logger"
	"github.com/tilecraft/postserve/internal/metadata"
	"github.com/tilecraft/postserve/internal/metrics"
	"github.com/tilecraft/postserve/internal/query"
	"github.com/tilecraft/postserve/internal/server"
	"github.com/tilecraft/postserve/internal/tileset"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "postserve: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalf("startup failed: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	resolver, store, err := definitionSource(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ts, err := loadTileset(cfg, resolver)
	if err != nil {
		return err
	}
	log.Infof("loaded tileset %q with %d layers", ts.Name, len(ts.Layers))

	sql, err := tileSQL(cfg, ts, resolver, log)
	if err != nil {
		return err
	}

	dbCfg := database.DefaultConfig(cfg.DSN)
	dbCfg.MaxConns = cfg.PoolMaxConns
	dbCfg.MinConns = cfg.PoolMinConns
	dbCfg.MaxConnLifetime = cfg.MaxConnLifetime
	dbCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	dbCfg.ConnectTimeout = cfg.ConnectTimeout

	pool, err := database.New(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Introspection must complete before the first request is accepted.
	tileURL := fmt.Sprintf("http://%s:%d/tiles/{z}/{x}/{y}.pbf", cfg.PublicHost, cfg.PublicPort)
	doc, err := metadata.NewIntrospector(pool, ts, log).Build(ctx, tileURL)
	if err != nil {
		return err
	}
	log.Infof("metadata document built: %d vector layers", len(doc.VectorLayers))

	var prov *metrics.Provider
	if cfg.MetricsEnabled {
		prov = metrics.New(metrics.BuildInfo{Version: version})
	}

	srv, err := server.New(server.Options{
		Addr:     cfg.ListenAddr,
		Tiles:    pool.TileQuery(sql),
		Metadata: doc,
		Logger:   log,
		Metrics:  prov,
	})
	if err != nil {
		return err
	}

	log.Infof("use http://%s:%d as the data source", cfg.PublicHost, cfg.PublicPort)
	return srv.Run(ctx)
}

// version is stamped via -ldflags at build time.
var version = "dev"

// definitionSource decides where tileset and SQL files come from: the local
// filesystem, or an object store bucket when one is configured.
func definitionSource(ctx context.Context, cfg config.Config) (tileset.Resolver, filestore.Store, error) {
	if !cfg.Store.Enabled {
		return nil, nil, nil
	}

	store, err := fsminio.New(ctx, &filestore.Config{
		Endpoint:  cfg.Store.Endpoint,
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		UseSSL:    cfg.Store.UseSSL,
	})
	if err != nil {
		return nil, nil, err
	}
	return storeResolver{ctx: ctx, store: store, bucket: cfg.Store.Bucket}, store, nil
}

func loadTileset(cfg config.Config, resolver tileset.Resolver) (*tileset.Tileset, error) {
	if resolver == nil {
		return tileset.Load(cfg.TilesetPath)
	}
	data, err := resolver.ReadFile(cfg.TilesetPath)
	if err != nil {
		return nil, err
	}
	return tileset.Parse(data, resolver)
}

// tileSQL loads the pre-authored tile query when one is configured,
// otherwise generates it from the tileset definition.
func tileSQL(cfg config.Config, ts *tileset.Tileset, resolver tileset.Resolver, log *logger.Logger) (string, error) {
	if cfg.SQLPath != "" {
		var (
			data []byte
			err  error
		)
		if resolver == nil {
			data, err = os.ReadFile(cfg.SQLPath)
		} else {
			data, err = resolver.ReadFile(cfg.SQLPath)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read SQL file %q: %w", cfg.SQLPath, err)
		}
		log.Infof("loaded tile query from %s", cfg.SQLPath)
		return strings.TrimSpace(string(data)), nil
	}

	return query.Generate(ts, query.Options{
		MaskLayer: cfg.MaskLayer,
		MaskZoom:  cfg.MaskZoom,
	}), nil
}

// storeResolver reads tileset and layer files out of one bucket, resolving
// layer references relative to the bucket root.
type storeResolver struct {
	ctx    context.Context
	store  filestore.Store
	bucket string
}

func (r storeResolver) ReadFile(path string) ([]byte, error) {
	return filestore.ReadAll(r.ctx, r.store, r.bucket, path)
}
