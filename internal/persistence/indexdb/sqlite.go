package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"subspace.dev/internal/persistence/snapshot"
	"subspace.dev/internal/sim/catalogs"
	"subspace.dev/internal/sim/tuning"
	"subspace.dev/internal/sim/world"
)

// SQLiteIndex is a secondary, queryable index of the tick and collision logs. Writes are
// queued and applied by a single goroutine in batched transactions; when the queue is full
// entries are dropped and counted, since the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick      atomic.Uint64
	dropCollision atomic.Uint64
	dropSnapshot  atomic.Uint64
	writeErrors   atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqCollision
	reqSnapshot
)

type req struct {
	kind reqKind

	tick      world.TickLogEntry
	collision world.CollisionLogEntry
	snapshot  SnapshotRow
}

// SnapshotRow describes one snapshot file on disk.
type SnapshotRow struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	Bodies     int    `json:"bodies"`
	Blocks     int    `json:"blocks"`
	SizeBytes  int64  `json:"size_bytes"`
	RecordedAt string `json:"recorded_at"`
}

type Stats struct {
	QueueDepth         int    `json:"queue_depth"`
	QueueCapacity      int    `json:"queue_capacity"`
	DropTickTotal      uint64 `json:"drop_tick_total"`
	DropCollisionTotal uint64 `json:"drop_collision_total"`
	DropSnapshotTotal  uint64 `json:"drop_snapshot_total"`
	WriteErrorTotal    uint64 `json:"write_error_total"`
}

// Path is the conventional index location under a world directory.
func Path(worldDir string) string {
	return filepath.Join(worldDir, "index", "world.sqlite")
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Roomy buffer: a pile-up of contacts must not stall the sim.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL suits an append-only secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			commands INTEGER NOT NULL,
			destroyed INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			cmd TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			cmd_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_entity_tick ON commands(entity_id, tick);`,
		`CREATE TABLE IF NOT EXISTS collisions (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			a INTEGER NOT NULL,
			b INTEGER NOT NULL,
			px REAL NOT NULL, py REAL NOT NULL, pz REAL NOT NULL,
			nx REAL NOT NULL, ny REAL NOT NULL, nz REAL NOT NULL,
			depth REAL NOT NULL,
			impulse REAL NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_collisions_a_tick ON collisions(a, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_collisions_b_tick ON collisions(b, tick);`,
		`CREATE TABLE IF NOT EXISTS destroyed_blocks (
			tick INTEGER NOT NULL,
			entity_id INTEGER NOT NULL,
			block_id INTEGER NOT NULL,
			block_type TEXT NOT NULL,
			x REAL NOT NULL, y REAL NOT NULL, z REAL NOT NULL,
			PRIMARY KEY (tick, entity_id, block_id)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			bodies INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			size_bytes INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
		DropTickTotal:      s.dropTick.Load(),
		DropCollisionTotal: s.dropCollision.Load(),
		DropSnapshotTotal:  s.dropSnapshot.Load(),
		WriteErrorTotal:    s.writeErrors.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s != nil {
		s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	}
	return nil
}

func (s *SQLiteIndex) WriteCollision(entry world.CollisionLogEntry) error {
	if s != nil {
		s.enqueue(req{kind: reqCollision, collision: entry}, &s.dropCollision)
	}
	return nil
}

// RecordSnapshot indexes a snapshot already written to path.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	r := SnapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Bodies:     snap.Header.Bodies,
		Blocks:     snap.Header.Blocks,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if fi, err := os.Stat(path); err == nil {
		r.SizeBytes = fi.Size()
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// UpsertCatalogs stores the raw catalog files and the effective tuning with their digests.
// It runs synchronously at startup.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if cats != nil {
		if b, err := os.ReadFile(filepath.Join(configDir, "materials.json")); err == nil {
			rows = append(rows, kv{name: "materials", digest: cats.Materials.Digest, json: b})
		}
		if b, err := os.ReadFile(filepath.Join(configDir, "block_types.json")); err == nil {
			rows = append(rows, kv{name: "block_types", digest: cats.BlockTypes.Digest, json: b})
		}
	}
	// Store the values actually applied, not the file.
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, kv{name: "tuning", digest: tune.Digest(), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return fmt.Errorf("catalog %s: %w", r.name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastCollisionTick uint64
		collisionSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrors.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeErrors.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		var n int
		var err error
		switch r.kind {
		case reqTick:
			n, err = insertTick(tx, r.tick)
		case reqCollision:
			c := r.collision
			if c.Tick != lastCollisionTick {
				lastCollisionTick = c.Tick
				collisionSeq = 0
			}
			n, err = insertCollision(tx, collisionSeq, c)
			collisionSeq++
		case reqSnapshot:
			n, err = insertSnapshot(tx, r.snapshot)
		}
		if err != nil {
			rollback()
			continue
		}
		opCount += n
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

func insertTick(tx *sql.Tx, e world.TickLogEntry) (int, error) {
	if _, err := tx.Exec(`INSERT OR REPLACE INTO ticks(tick,digest,joins,leaves,commands,destroyed) VALUES(?,?,?,?,?,?)`,
		int64(e.Tick), e.Digest, len(e.Joins), len(e.Leaves), len(e.Commands), len(e.Destroyed)); err != nil {
		return 0, err
	}
	n := 1
	for i, c := range e.Commands {
		b, _ := json.Marshal(c.Cmd)
		if _, err := tx.Exec(`INSERT OR REPLACE INTO commands(tick,seq,session_id,cmd,entity_id,cmd_json) VALUES(?,?,?,?,?,?)`,
			int64(e.Tick), i, c.SessionID, c.Cmd.Cmd, int64(c.Cmd.EntityID), string(b)); err != nil {
			return n, err
		}
		n++
	}
	for _, d := range e.Destroyed {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO destroyed_blocks(tick,entity_id,block_id,block_type,x,y,z) VALUES(?,?,?,?,?,?,?)`,
			int64(e.Tick), int64(d.EntityID), int64(d.BlockID), d.BlockType, d.Pos[0], d.Pos[1], d.Pos[2]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func insertCollision(tx *sql.Tx, seq int, c world.CollisionLogEntry) (int, error) {
	_, err := tx.Exec(`INSERT OR REPLACE INTO collisions(tick,seq,a,b,px,py,pz,nx,ny,nz,depth,impulse) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		int64(c.Tick), seq, int64(c.A), int64(c.B),
		c.Point[0], c.Point[1], c.Point[2],
		c.Normal[0], c.Normal[1], c.Normal[2],
		c.Depth, c.Impulse)
	return 1, err
}

func insertSnapshot(tx *sql.Tx, r SnapshotRow) (int, error) {
	_, err := tx.Exec(`INSERT OR REPLACE INTO snapshots(tick,path,bodies,blocks,size_bytes,recorded_at) VALUES(?,?,?,?,?,?)`,
		int64(r.Tick), r.Path, r.Bodies, r.Blocks, r.SizeBytes, r.RecordedAt)
	return 1, err
}
