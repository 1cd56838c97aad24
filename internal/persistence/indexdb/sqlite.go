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

	"scarify.ai/internal/scarify"
)

const schemaVersion = "1"

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit   atomic.Uint64
	dropPlayers atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqPlayers
	reqSync
)

type req struct {
	kind reqKind

	audit   scarify.AuditEntry
	players []scarify.PlayerInfo
	at      time.Time
	done    chan struct{}
}

type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropAuditTotal   uint64 `json:"drop_audit_total"`
	DropPlayersTotal uint64 `json:"drop_players_total"`
}

type AuditRow struct {
	Seq int64 `json:"seq"`
	scarify.AuditEntry
}

type PlayerRow struct {
	scarify.PlayerInfo
	UpdatedAt string `json:"updated_at"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, 4096)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			player TEXT NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_player ON audits(player, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor ON audits(actor, seq);`,
		`CREATE TABLE IF NOT EXISTS players (
			name TEXT PRIMARY KEY,
			distance_override REAL,
			updated_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
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
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropAuditTotal:   s.dropAudit.Load(),
		DropPlayersTotal: s.dropPlayers.Load(),
	}
}

// WriteAudit queues e. It never blocks; the JSONL audit log remains the
// complete record when the queue is full.
func (s *SQLiteIndex) WriteAudit(e scarify.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: e}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

// RecordPlayers replaces the players table with players.
func (s *SQLiteIndex) RecordPlayers(players []scarify.PlayerInfo) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	cp := append([]scarify.PlayerInfo(nil), players...)
	select {
	case s.ch <- req{kind: reqPlayers, players: cp, at: time.Now().UTC()}:
	default:
		s.dropPlayers.Add(1)
	}
	return nil
}

// Sync waits until everything queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(at,actor,action,player,value,raw_json) VALUES(?,?,?,?,?,?)`)
	deletePlayers, _ := s.db.Prepare(`DELETE FROM players`)
	insertPlayer, _ := s.db.Prepare(`INSERT INTO players(name,distance_override,updated_at) VALUES(?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertAudit, deletePlayers, insertPlayer} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
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
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// An open transaction never sits idle longer than commitMaxWait.
	ticker := time.NewTicker(commitMaxWait / 2)
	defer ticker.Stop()

	for {
		var r req
		select {
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		}
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a)
			if insertAudit == nil {
				continue
			}
			if _, err := tx.Stmt(insertAudit).Exec(
				a.At.UTC().Format(time.RFC3339Nano),
				a.Actor,
				a.Action,
				a.Player,
				a.Value,
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqPlayers:
			if deletePlayers == nil || insertPlayer == nil {
				continue
			}
			if _, err := tx.Stmt(deletePlayers).Exec(); err != nil {
				rollback()
				continue
			}
			at := r.at.Format(time.RFC3339Nano)
			for _, p := range r.players {
				var dist any
				if p.HasOverride {
					dist = p.DistanceOverride
				}
				if _, err := tx.Stmt(insertPlayer).Exec(p.Name, dist, at); err != nil {
					rollback()
					break
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}
