package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"skyrise.dev/internal/persistence/snapshot"
	"skyrise.dev/internal/sim/catalogs"
	"skyrise.dev/internal/sim/tuning"
	"skyrise.dev/internal/sim/world"
)

// Index mirrors journal entries into a queryable SQL database. Writes are
// fed through a bounded channel to a single writer goroutine; when the
// channel is full the write is dropped, the JSONL journals remain the
// source of truth.
type Index struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick          atomic.Uint64
	dropAudit         atomic.Uint64
	dropSnapshot      atomic.Uint64
	dropSnapshotState atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqSnapshotState
	reqDay
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
	state    snapshot.SnapshotV1
	day      dayRow
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	Seed       int64
	Funds      int64
	Facilities int
	Persons    int
	Shafts     int
	Cars       int
}

type dayRow struct {
	Day        int
	EndTick    uint64
	Path       string
	Seed       int64
	RecordedAt string
}

type Stats struct {
	QueueDepth             int
	QueueCapacity          int
	DropTickTotal          uint64
	DropAuditTotal         uint64
	DropSnapshotTotal      uint64
	DropSnapshotStateTotal uint64
}

func newIndex(db *sqlx.DB) *Index {
	s := &Index{
		db: db,
		// High buffer: allow bursty command audits (e.g. scripted build
		// plans) without stalling the sim.
		ch: make(chan req, 262144),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s
}

func (s *Index) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Index) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:             len(s.ch),
		QueueCapacity:          cap(s.ch),
		DropTickTotal:          s.dropTick.Load(),
		DropAuditTotal:         s.dropAudit.Load(),
		DropSnapshotTotal:      s.dropSnapshot.Load(),
		DropSnapshotStateTotal: s.dropSnapshotState.Load(),
	}
}

func (s *Index) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *Index) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *Index) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Seed:       snap.Seed,
		Funds:      snap.Funds,
		Facilities: len(snap.Facilities),
		Persons:    len(snap.Persons),
		Shafts:     len(snap.Shafts),
		Cars:       len(snap.Cars),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// RecordSnapshotState denormalizes a snapshot into per-entity tables so the
// tower can be inspected with plain SQL without decoding the .snap.zst.
func (s *Index) RecordSnapshotState(snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshotState, state: snap}:
	default:
		s.dropSnapshotState.Add(1)
	}
}

// RecordDay indexes a day-end archive entry.
func (s *Index) RecordDay(day int, endTick uint64, archivedSnapshotPath string, seed int64) {
	if s == nil || s.closed.Load() {
		return
	}
	if day <= 0 || archivedSnapshotPath == "" {
		return
	}
	r := dayRow{
		Day:        day,
		EndTick:    endTick,
		Path:       archivedSnapshotPath,
		Seed:       seed,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqDay, day: r}:
	default:
	}
}

// SetMeta upserts one key in the meta table. Startup bookkeeping (run id,
// resume point), not a hot path.
func (s *Index) SetMeta(key, value string) error {
	if s == nil || key == "" {
		return nil
	}
	_, err := s.db.Exec(s.db.Rebind(
		`INSERT INTO meta(key,value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`),
		key, value)
	return err
}

func (s *Index) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	// Raw json for the config overlays, when present.
	raw := map[string][]byte{}
	read := func(name, path string) {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		raw[name] = b
	}
	if configDir != "" {
		read("facility_defs", filepath.Join(configDir, "facilities.json"))
		read("adjacency_defs", filepath.Join(configDir, "adjacency.json"))
	}

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b := raw["facility_defs"]; len(b) > 0 {
		rows = append(rows, kv{name: "facility_defs", digest: cats.Facilities.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Facilities.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "facility_palette", digest: cats.Facilities.PaletteDigest, json: b})
	}
	if b := raw["adjacency_defs"]; len(b) > 0 {
		rows = append(rows, kv{name: "adjacency_defs", digest: cats.Adjacency.Digest, json: b})
	}
	{
		// Canonicalize rules to stable JSON for easier querying.
		type ruleRow struct {
			Subject     string  `json:"subject"`
			Neighbor    string  `json:"neighbor"`
			Kind        string  `json:"kind"`
			Magnitude   float64 `json:"magnitude"`
			Description string  `json:"description"`
		}
		rs := make([]ruleRow, 0, len(cats.Adjacency.Rules))
		for pair, rule := range cats.Adjacency.Rules {
			rs = append(rs, ruleRow{
				Subject:     cats.Facilities.Def(pair.Subject).Key,
				Neighbor:    cats.Facilities.Def(pair.Neighbor).Key,
				Kind:        string(rule.Kind),
				Magnitude:   rule.Magnitude,
				Description: rule.Description,
			})
		}
		sort.Slice(rs, func(i, j int) bool {
			if rs[i].Subject != rs[j].Subject {
				return rs[i].Subject < rs[j].Subject
			}
			return rs[i].Neighbor < rs[j].Neighbor
		})
		if b, _ := json.Marshal(rs); len(b) > 0 {
			rows = append(rows, kv{name: "adjacency_rules", digest: cats.Adjacency.Digest, json: b})
		}
	}
	{
		// Tuning: store the values we actually apply (canonical JSON).
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(s.db.Rebind(
		`INSERT INTO meta(key,value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`),
		"schema_version", "1"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(s.db.Rebind(
		`INSERT INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET digest=excluded.digest,json=excluded.json,updated_at=excluded.updated_at`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
