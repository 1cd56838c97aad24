package indexdb

import (
	"database/sql"
	"time"

	"scarify.ai/internal/scarify"
)

// OpenReadOnly opens an index written by a running server for queries.
func OpenReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// QueryAudits returns the newest audits first. An empty player matches all.
func QueryAudits(db *sql.DB, player string, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT seq,at,actor,action,player,value FROM audits ORDER BY seq DESC LIMIT ?`
	args := []any{limit}
	if player != "" {
		q = `SELECT seq,at,actor,action,player,value FROM audits WHERE player=? ORDER BY seq DESC LIMIT ?`
		args = []any{player, limit}
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var (
			r  AuditRow
			at string
		)
		if err := rows.Scan(&r.Seq, &at, &r.Actor, &r.Action, &r.Player, &r.Value); err != nil {
			return nil, err
		}
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func QueryPlayers(db *sql.DB) ([]PlayerRow, error) {
	rows, err := db.Query(`SELECT name,distance_override,updated_at FROM players ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerRow
	for rows.Next() {
		var (
			r    PlayerRow
			dist sql.NullFloat64
		)
		if err := rows.Scan(&r.Name, &dist, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if dist.Valid {
			r.PlayerInfo = scarify.PlayerInfo{Name: r.Name, HasOverride: true, DistanceOverride: dist.Float64}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
