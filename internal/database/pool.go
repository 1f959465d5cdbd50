// Package database is the PostGIS access layer, backed by pgxpool.
//
// It exposes exactly the three operations the service needs: fetching a tile
// payload, scanning the pg_type catalog, and describing a statement's output
// columns without executing it. Connection leasing, bounding, and blocking
// beyond MaxConns are delegated to pgxpool: a caller holds one connection
// for the duration of one statement and never longer.
package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tilecraft/postserve/internal/errs"
)

// Pool is a bounded pool of Postgres connections.
// It is safe for concurrent use by multiple goroutines.
type Pool struct {
	pool *pgxpool.Pool
}

// Column describes one output column of a prepared statement.
type Column struct {
	// Name is the column name as reported by the statement description.
	Name string

	// TypeOID is the Postgres type OID of the column.
	TypeOID uint32
}

// New connects to Postgres using the provided Config and returns a Pool.
// It pings to validate the connection before returning; a failure here is
// a startup failure and the process must not begin serving.
func New(ctx context.Context, cfg *Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStartupFailed, "invalid DSN", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStartupFailed, "failed to create connection pool", err)
	}

	p := &Pool{pool: pool}

	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrap(errs.ErrKindStartupFailed, "database unreachable", err)
	}

	return p, nil
}

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the service shuts down.
func (p *Pool) Close() {
	p.pool.Close()
}

// FetchTile executes the tile query with (zoom, x, y) bound as its three
// positional parameters and returns the single bytea result column.
// A query that matches no row, or returns SQL NULL, yields (nil, nil):
// an empty tile is a valid result, not an error.
func (p *Pool) FetchTile(ctx context.Context, sql string, zoom, x, y int) ([]byte, error) {
	var tile []byte
	err := p.pool.QueryRow(ctx, sql, zoom, x, y).Scan(&tile)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "tile query failed")
	}
	return tile, nil
}

// TileQuery binds the immutable tile SQL to the pool, satisfying the
// server's TileFetcher contract.
type TileQuery struct {
	pool *Pool
	sql  string
}

// TileQuery returns a fetcher that executes sql for every tile request.
// The SQL has exactly one shape for the service's lifetime.
func (p *Pool) TileQuery(sql string) *TileQuery {
	return &TileQuery{pool: p, sql: sql}
}

// FetchTile executes the bound query for one coordinate.
func (q *TileQuery) FetchTile(ctx context.Context, zoom, x, y int) ([]byte, error) {
	return q.pool.FetchTile(ctx, q.sql, zoom, x, y)
}

// TypeNames scans the pg_type catalog once and returns the OID → type name
// mapping for every type the database knows about.
func (p *Pool) TypeNames(ctx context.Context) (map[uint32]string, error) {
	rows, err := p.pool.Query(ctx, "select oid, typname from pg_type")
	if err != nil {
		return nil, mapError(err, "failed to scan pg_type")
	}
	defer rows.Close()

	names := make(map[uint32]string)
	for rows.Next() {
		var (
			oid  uint32
			name string
		)
		if err := rows.Scan(&oid, &name); err != nil {
			return nil, mapError(err, "failed to scan pg_type row")
		}
		names[oid] = name
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating pg_type")
	}
	return names, nil
}

// Describe prepares sql on a pooled connection and returns its output column
// descriptors. The statement is planned by the server but never executed, so
// no rows are materialized and no side effects occur.
func (p *Pool) Describe(ctx context.Context, sql string) ([]Column, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "failed to acquire connection")
	}
	defer conn.Release()

	sd, err := conn.Conn().Prepare(ctx, "", sql)
	if err != nil {
		return nil, mapError(err, "failed to prepare statement")
	}

	cols := make([]Column, len(sd.Fields))
	for i, f := range sd.Fields {
		cols[i] = Column{Name: f.Name, TypeOID: f.DataTypeOID}
	}
	return cols, nil
}
