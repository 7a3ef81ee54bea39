package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"subspace.dev/internal/persistence/indexdb"
	"subspace.dev/internal/persistence/snapshot"
	"subspace.dev/internal/sim/catalogs"
	"subspace.dev/internal/sim/tuning"
	"subspace.dev/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.CollisionLogger
	Close() error
	Stats() indexdb.Stats
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SS_INDEX_BACKEND")))
	switch backend {
	case "", "sqlite":
		return indexdb.OpenSQLite(indexdb.Path(worldDir))
	case "none", "off", "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported SS_INDEX_BACKEND: %s", backend)
	}
}

// multiTickLogger fans entries out to the JSONL log and the index. Either may be nil.
type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return err
}

type multiCollisionLogger struct {
	a world.CollisionLogger
	b world.CollisionLogger
}

func (m multiCollisionLogger) WriteCollision(entry world.CollisionLogEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteCollision(entry)
	}
	if m.b != nil {
		_ = m.b.WriteCollision(entry)
	}
	return err
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
