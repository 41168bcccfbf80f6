// Package persistence provides SQLite-based world state storage.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/crossroads/internal/ecs"
	"github.com/talgya/crossroads/internal/religion"
	"github.com/talgya/crossroads/internal/resource"
)

const (
	metaTick    = "last_tick"
	metaElapsed = "elapsed_ns"
	metaRunID   = "run_id"
	metaSavedAt = "saved_at"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Meta is the scalar state saved alongside the entity tables.
type Meta struct {
	Tick    uint64
	Elapsed time.Duration
	RunID   string
}

type religionRow struct {
	EntityID uint64 `db:"entity_id"`
	religion.Attributes
}

type resourceRow struct {
	EntityID uint64 `db:"entity_id"`
	resource.Attributes
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS religions (
		entity_id INTEGER PRIMARY KEY,
		influence REAL NOT NULL,
		stability REAL NOT NULL,
		growth REAL NOT NULL,
		decline REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resources (
		entity_id INTEGER PRIMARY KEY,
		kind INTEGER NOT NULL,
		amount REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_kind ON resources(kind);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveReligions writes all religion records (full replace).
func (db *DB) SaveReligions(tx *sqlx.Tx, w *ecs.World) error {
	if _, err := tx.Exec("DELETE FROM religions"); err != nil {
		return err
	}

	var rows []religionRow
	ecs.Query[religion.Attributes](w).ForEach(func(e ecs.Entity, a *religion.Attributes) {
		rows = append(rows, religionRow{EntityID: uint64(e), Attributes: *a})
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].EntityID < rows[j].EntityID })

	stmt, err := tx.PrepareNamed(`INSERT INTO religions
		(entity_id, influence, stability, growth, decline)
		VALUES (:entity_id, :influence, :stability, :growth, :decline)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r); err != nil {
			return fmt.Errorf("insert religion %d: %w", r.EntityID, err)
		}
	}
	return nil
}

// SaveResources writes all resource deposits (full replace).
func (db *DB) SaveResources(tx *sqlx.Tx, w *ecs.World) error {
	if _, err := tx.Exec("DELETE FROM resources"); err != nil {
		return err
	}

	var rows []resourceRow
	ecs.Query[resource.Attributes](w).ForEach(func(e ecs.Entity, a *resource.Attributes) {
		rows = append(rows, resourceRow{EntityID: uint64(e), Attributes: *a})
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].EntityID < rows[j].EntityID })

	stmt, err := tx.PrepareNamed(`INSERT INTO resources
		(entity_id, kind, amount)
		VALUES (:entity_id, :kind, :amount)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r); err != nil {
			return fmt.Errorf("insert resource %d: %w", r.EntityID, err)
		}
	}
	return nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	return saveMeta(db.conn, key, value)
}

func saveMeta(ex sqlx.Execer, key, value string) error {
	_, err := ex.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorldState performs a full save of all world state in one transaction.
// Call it between ticks.
func (db *DB) SaveWorldState(w *ecs.World, meta Meta) error {
	slog.Info("saving world state",
		"religions", ecs.Count[religion.Attributes](w),
		"resources", ecs.Count[resource.Attributes](w),
		"tick", meta.Tick,
	)

	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := db.SaveReligions(tx, w); err != nil {
		return fmt.Errorf("save religions: %w", err)
	}
	if err := db.SaveResources(tx, w); err != nil {
		return fmt.Errorf("save resources: %w", err)
	}

	kv := map[string]string{
		metaTick:    strconv.FormatUint(meta.Tick, 10),
		metaElapsed: strconv.FormatInt(int64(meta.Elapsed), 10),
		metaRunID:   meta.RunID,
		metaSavedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range kv {
		if err := saveMeta(tx, k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Info("world state saved")
	return nil
}

// HasWorldState reports whether a previous save exists.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta(metaTick)
	return err == nil
}

// LoadWorldState spawns every saved record into w as a fresh entity and
// returns the saved scalars. Saved entity ids only fix the spawn order.
func (db *DB) LoadWorldState(w *ecs.World) (Meta, error) {
	var meta Meta

	var religions []religionRow
	if err := db.conn.Select(&religions,
		"SELECT entity_id, influence, stability, growth, decline FROM religions ORDER BY entity_id"); err != nil {
		return meta, fmt.Errorf("load religions: %w", err)
	}
	var resources []resourceRow
	if err := db.conn.Select(&resources,
		"SELECT entity_id, kind, amount FROM resources ORDER BY entity_id"); err != nil {
		return meta, fmt.Errorf("load resources: %w", err)
	}

	for _, r := range religions {
		ecs.Add(w, w.Spawn(), r.Attributes)
	}
	for _, r := range resources {
		ecs.Add(w, w.Spawn(), r.Attributes)
	}

	if v, err := db.GetMeta(metaTick); err == nil {
		meta.Tick, _ = strconv.ParseUint(v, 10, 64)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return meta, fmt.Errorf("load meta: %w", err)
	}
	if v, err := db.GetMeta(metaElapsed); err == nil {
		ns, _ := strconv.ParseInt(v, 10, 64)
		meta.Elapsed = time.Duration(ns)
	}
	if v, err := db.GetMeta(metaRunID); err == nil {
		meta.RunID = v
	}

	slog.Info("world state loaded",
		"religions", len(religions),
		"resources", len(resources),
		"tick", meta.Tick,
	)
	return meta, nil
}
