package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

// Reader runs read-only queries against an index, typically one a server is writing.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type TickRow struct {
	Tick      uint64 `json:"tick"`
	Digest    string `json:"digest"`
	Joins     int    `json:"joins"`
	Leaves    int    `json:"leaves"`
	Commands  int    `json:"commands"`
	Destroyed int    `json:"destroyed"`
}

type CommandRow struct {
	Tick      uint64 `json:"tick"`
	Seq       int    `json:"seq"`
	SessionID string `json:"session_id"`
	Cmd       string `json:"cmd"`
	EntityID  uint64 `json:"entity_id"`
	CmdJSON   string `json:"cmd_json"`
}

type CollisionRow struct {
	Tick    uint64     `json:"tick"`
	Seq     int        `json:"seq"`
	A       uint64     `json:"a"`
	B       uint64     `json:"b"`
	Point   [3]float64 `json:"point"`
	Normal  [3]float64 `json:"normal"`
	Depth   float64    `json:"depth"`
	Impulse float64    `json:"impulse"`
}

type DestroyedRow struct {
	Tick      uint64     `json:"tick"`
	EntityID  uint64     `json:"entity_id"`
	BlockID   uint32     `json:"block_id"`
	BlockType string     `json:"block_type"`
	Pos       [3]float64 `json:"pos"`
}

type CatalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	Bytes     int    `json:"bytes"`
	UpdatedAt string `json:"updated_at"`
}

func (r *Reader) Snapshots(ctx context.Context, limit int) ([]SnapshotRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tick,path,bodies,blocks,size_bytes,recorded_at FROM snapshots ORDER BY tick DESC LIMIT ?`, limitOr(limit, 20))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		var tick int64
		if err := rows.Scan(&tick, &s.Path, &s.Bodies, &s.Blocks, &s.SizeBytes, &s.RecordedAt); err != nil {
			return nil, err
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Ticks returns the latest ticks, newest first.
func (r *Reader) Ticks(ctx context.Context, limit int) ([]TickRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tick,digest,joins,leaves,commands,destroyed FROM ticks ORDER BY tick DESC LIMIT ?`, limitOr(limit, 20))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickRow
	for rows.Next() {
		var t TickRow
		var tick int64
		if err := rows.Scan(&tick, &t.Digest, &t.Joins, &t.Leaves, &t.Commands, &t.Destroyed); err != nil {
			return nil, err
		}
		t.Tick = uint64(tick)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Commands returns recent commands, optionally for one entity (0 = all), newest first.
func (r *Reader) Commands(ctx context.Context, entity uint64, limit int) ([]CommandRow, error) {
	q := `SELECT tick,seq,session_id,cmd,entity_id,cmd_json FROM commands`
	args := []any{}
	if entity != 0 {
		q += ` WHERE entity_id=?`
		args = append(args, int64(entity))
	}
	q += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, limitOr(limit, 50))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CommandRow
	for rows.Next() {
		var c CommandRow
		var tick, ent int64
		if err := rows.Scan(&tick, &c.Seq, &c.SessionID, &c.Cmd, &ent, &c.CmdJSON); err != nil {
			return nil, err
		}
		c.Tick, c.EntityID = uint64(tick), uint64(ent)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Collisions returns recent contacts, optionally involving one entity (0 = all), newest first.
func (r *Reader) Collisions(ctx context.Context, entity uint64, limit int) ([]CollisionRow, error) {
	q := `SELECT tick,seq,a,b,px,py,pz,nx,ny,nz,depth,impulse FROM collisions`
	args := []any{}
	if entity != 0 {
		q += ` WHERE a=? OR b=?`
		args = append(args, int64(entity), int64(entity))
	}
	q += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, limitOr(limit, 50))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CollisionRow
	for rows.Next() {
		var c CollisionRow
		var tick, a, b int64
		if err := rows.Scan(&tick, &c.Seq, &a, &b,
			&c.Point[0], &c.Point[1], &c.Point[2],
			&c.Normal[0], &c.Normal[1], &c.Normal[2],
			&c.Depth, &c.Impulse); err != nil {
			return nil, err
		}
		c.Tick, c.A, c.B = uint64(tick), uint64(a), uint64(b)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Reader) Destroyed(ctx context.Context, limit int) ([]DestroyedRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tick,entity_id,block_id,block_type,x,y,z FROM destroyed_blocks ORDER BY tick DESC, entity_id, block_id LIMIT ?`, limitOr(limit, 50))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DestroyedRow
	for rows.Next() {
		var d DestroyedRow
		var tick, ent, blk int64
		if err := rows.Scan(&tick, &ent, &blk, &d.BlockType, &d.Pos[0], &d.Pos[1], &d.Pos[2]); err != nil {
			return nil, err
		}
		d.Tick, d.EntityID, d.BlockID = uint64(tick), uint64(ent), uint32(blk)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Reader) Catalogs(ctx context.Context) ([]CatalogRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name,digest,length(json),updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CatalogRow
	for rows.Next() {
		var c CatalogRow
		if err := rows.Scan(&c.Name, &c.Digest, &c.Bytes, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func limitOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
