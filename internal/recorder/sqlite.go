package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"VCPSentinel/internal/model"
)

// SQLiteRecorder persists scan results and position history to SQLite.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance (dashboards read while
	// the bot writes).
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trend_scores (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			passed      INTEGER NOT NULL,
			rs_rating   REAL,
			criteria    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trend_ts ON trend_scores(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_trend_symbol ON trend_scores(symbol)`,

		`CREATE TABLE IF NOT EXISTS vcp_candidates (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp          INTEGER NOT NULL,
			symbol             TEXT NOT NULL,
			score              INTEGER NOT NULL,
			pivot_price        REAL,
			base_low           REAL,
			depth_pct          REAL,
			wave_count         INTEGER,
			contraction_ratios TEXT,
			volume_dry_up      INTEGER,
			suggested_stop     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vcp_ts ON vcp_candidates(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_vcp_symbol ON vcp_candidates(symbol)`,

		`CREATE TABLE IF NOT EXISTS position_events (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			symbol          TEXT NOT NULL,
			event_type      TEXT NOT NULL,
			price           REAL,
			entry_price     REAL,
			quantity        INTEGER,
			initial_stop    REAL,
			current_stop    REAL,
			stop_level      INTEGER,
			high_water_mark REAL,
			r_multiple      REAL,
			note            TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pos_ts ON position_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_pos_symbol ON position_events(symbol)`,

		`CREATE TABLE IF NOT EXISTS open_positions (
			symbol          TEXT PRIMARY KEY,
			entry_price     REAL NOT NULL,
			quantity        INTEGER NOT NULL,
			entry_time      INTEGER NOT NULL,
			initial_stop    REAL NOT NULL,
			current_stop    REAL NOT NULL,
			stop_level      INTEGER NOT NULL,
			high_water_mark REAL NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordTrendScore(score *model.TrendScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	criteria, err := json.Marshal(score.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	passed := 0
	if score.Passed {
		passed = 1
	}
	_, err = r.db.Exec(`INSERT INTO trend_scores
		(timestamp, symbol, passed, rs_rating, criteria)
		VALUES (?,?,?,?,?)`,
		score.ComputedAt.Unix(), score.Symbol, passed, score.RSRating, string(criteria),
	)
	return err
}

func (r *SQLiteRecorder) RecordCandidate(cand *model.VCPCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ratios, err := json.Marshal(cand.ContractionRatios)
	if err != nil {
		return fmt.Errorf("encode ratios: %w", err)
	}
	dryUp := 0
	if cand.VolumeDryUp {
		dryUp = 1
	}
	_, err = r.db.Exec(`INSERT INTO vcp_candidates
		(timestamp, symbol, score, pivot_price, base_low, depth_pct,
		 wave_count, contraction_ratios, volume_dry_up, suggested_stop)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		cand.DetectedAt.Unix(), cand.Symbol, cand.Score, cand.PivotPrice,
		cand.BaseLow, cand.DepthPct, len(cand.Waves), string(ratios),
		dryUp, cand.SuggestedStop,
	)
	return err
}

func (r *SQLiteRecorder) RecordPositionEvent(evt *PositionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := evt.Position
	_, err := r.db.Exec(`INSERT INTO position_events
		(timestamp, symbol, event_type, price, entry_price, quantity,
		 initial_stop, current_stop, stop_level, high_water_mark, r_multiple, note)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), pos.Symbol, evt.EventType, evt.Price,
		pos.EntryPrice, pos.Quantity, pos.InitialStop, pos.CurrentStop,
		pos.StopLevel, pos.HighWaterMark, evt.RMultiple, evt.Note,
	)
	if err != nil {
		return err
	}

	// Keep the open-positions table current so a restart can resume stop
	// management exactly where it left off.
	switch evt.EventType {
	case EventClosed:
		_, err = r.db.Exec(`DELETE FROM open_positions WHERE symbol = ?`, pos.Symbol)
	case EventRejected:
		// audit only, no open position to track
	default:
		_, err = r.db.Exec(`INSERT INTO open_positions
			(symbol, entry_price, quantity, entry_time, initial_stop,
			 current_stop, stop_level, high_water_mark)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(symbol) DO UPDATE SET
				quantity = excluded.quantity,
				current_stop = excluded.current_stop,
				stop_level = excluded.stop_level,
				high_water_mark = excluded.high_water_mark`,
			pos.Symbol, pos.EntryPrice, pos.Quantity, pos.EntryTime.Unix(),
			pos.InitialStop, pos.CurrentStop, pos.StopLevel, pos.HighWaterMark,
		)
	}
	return err
}

func (r *SQLiteRecorder) OpenPositions() ([]*model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT symbol, entry_price, quantity, entry_time,
		initial_stop, current_stop, stop_level, high_water_mark
		FROM open_positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	var positions []*model.Position
	for rows.Next() {
		var pos model.Position
		var entryTime int64
		if err := rows.Scan(&pos.Symbol, &pos.EntryPrice, &pos.Quantity,
			&entryTime, &pos.InitialStop, &pos.CurrentStop,
			&pos.StopLevel, &pos.HighWaterMark); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		pos.EntryTime = time.Unix(entryTime, 0)
		positions = append(positions, &pos)
	}
	return positions, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
