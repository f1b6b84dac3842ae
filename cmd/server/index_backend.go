package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"skyrise.dev/internal/persistence/indexdb"
	"skyrise.dev/internal/persistence/snapshot"
	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/tuning"
	"skyrise.dev/internal/sim/world"
)

// runtimeIndex is what main wires against so a disabled index is just nil.
type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	SetMeta(key, value string) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordSnapshotState(snap snapshot.SnapshotV1)
	RecordDay(day int, endTick uint64, archivedSnapshotPath string, seed int64)
	Stats() indexdb.Stats
}

func openRuntimeIndex(towerDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SKYRISE_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(towerDir, "index", "tower.sqlite")
		logger.Printf("index backend: sqlite %s", dbPath)
		return indexdb.OpenSQLite(dbPath)
	case "postgres":
		dsn := strings.TrimSpace(os.Getenv("SKYRISE_INDEX_POSTGRES_DSN"))
		if dsn == "" {
			return nil, fmt.Errorf("SKYRISE_INDEX_BACKEND=postgres but SKYRISE_INDEX_POSTGRES_DSN is empty")
		}
		logger.Printf("index backend: postgres")
		return indexdb.OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported SKYRISE_INDEX_BACKEND: %s", backend)
	}
}
