package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS situations (
	system    TEXT PRIMARY KEY,
	situation TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS problems (
	system    TEXT NOT NULL,
	situation TEXT NOT NULL,
	problem   TEXT NOT NULL,
	PRIMARY KEY (system, situation)
);
CREATE TABLE IF NOT EXISTS intentions (
	problem   TEXT PRIMARY KEY,
	intention TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS decompositions (
	system        TEXT NOT NULL,
	intention     TEXT NOT NULL,
	position      INTEGER NOT NULL,
	sub_intention TEXT NOT NULL,
	sub_system    TEXT NOT NULL,
	PRIMARY KEY (system, intention, position)
);
CREATE TABLE IF NOT EXISTS solution_systems (
	system TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS solutions (
	system   TEXT NOT NULL REFERENCES solution_systems(system),
	position INTEGER NOT NULL,
	solution TEXT NOT NULL,
	PRIMARY KEY (system, position)
);
`

// SQLite is a Base stored in SQLite. The default DSN is a private in-memory
// database, so contents live as long as the SQLite value.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens dsn (":memory:" when empty) and creates the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("knowledge: pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("knowledge: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

// NewDefault opens an in-memory base seeded with the collision-avoidance domain.
func NewDefault(ctx context.Context) (*SQLite, error) {
	kb, err := OpenSQLite(ctx, "")
	if err != nil {
		return nil, err
	}
	if err := Seed(ctx, kb, CollisionAvoidance()); err != nil {
		_ = kb.Close()
		return nil, err
	}
	return kb, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) lookup(ctx context.Context, what, query string, args ...any) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s %v", ErrNotFound, what, args)
	}
	if err != nil {
		return "", fmt.Errorf("knowledge: query %s: %w", what, err)
	}
	return v, nil
}

func (s *SQLite) Situation(ctx context.Context, system string) (string, error) {
	return s.lookup(ctx, "situation", `SELECT situation FROM situations WHERE system = ?`, system)
}

func (s *SQLite) Problem(ctx context.Context, system, situation string) (string, error) {
	return s.lookup(ctx, "problem",
		`SELECT problem FROM problems WHERE system = ? AND situation = ?`, system, situation)
}

func (s *SQLite) Intention(ctx context.Context, problem string) (string, error) {
	return s.lookup(ctx, "intention", `SELECT intention FROM intentions WHERE problem = ?`, problem)
}

func (s *SQLite) Decomposition(ctx context.Context, system, intention string) (Decomposition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sub_intention, sub_system FROM decompositions
		WHERE system = ? AND intention = ?
		ORDER BY position`, system, intention)
	if err != nil {
		return Decomposition{}, fmt.Errorf("knowledge: query decomposition: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var d Decomposition
	for rows.Next() {
		var si, ss string
		if err := rows.Scan(&si, &ss); err != nil {
			return Decomposition{}, fmt.Errorf("knowledge: scan decomposition: %w", err)
		}
		d.Intentions = append(d.Intentions, si)
		d.Systems = append(d.Systems, ss)
	}
	if err := rows.Err(); err != nil {
		return Decomposition{}, fmt.Errorf("knowledge: iterate decomposition: %w", err)
	}
	if len(d.Intentions) == 0 {
		return Decomposition{}, fmt.Errorf("%w: decomposition [%s %s]", ErrNotFound, system, intention)
	}
	return d, nil
}

func (s *SQLite) Solutions(ctx context.Context, query string) ([]string, error) {
	var system string
	err := s.db.QueryRowContext(ctx, `
		SELECT system FROM solution_systems
		WHERE instr(lower(system), lower(?)) > 0
		ORDER BY rowid LIMIT 1`, query).Scan(&system)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: query solutions: %w", err)
	}
	out, err := s.column(ctx, `SELECT solution FROM solutions WHERE system = ? ORDER BY position`, system)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query solutions: %w", err)
	}
	return out, nil
}

func (s *SQLite) Systems(ctx context.Context) ([]string, error) {
	return s.column(ctx, `
		SELECT system FROM situations
		UNION SELECT sub_system FROM decompositions
		UNION SELECT system FROM solution_systems
		ORDER BY 1`)
}

func (s *SQLite) Situations(ctx context.Context) ([]string, error) {
	return s.column(ctx, `SELECT DISTINCT situation FROM situations ORDER BY 1`)
}

func (s *SQLite) Problems(ctx context.Context) ([]string, error) {
	return s.column(ctx, `SELECT DISTINCT problem FROM problems ORDER BY 1`)
}

func (s *SQLite) Intentions(ctx context.Context) ([]string, error) {
	return s.column(ctx, `
		SELECT intention FROM intentions
		UNION SELECT sub_intention FROM decompositions
		ORDER BY 1`)
}

func (s *SQLite) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("knowledge: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) AddSituation(ctx context.Context, system, situation string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO situations (system, situation) VALUES (?, ?)
		ON CONFLICT (system) DO UPDATE SET situation = excluded.situation`, system, situation)
	if err != nil {
		return fmt.Errorf("knowledge: add situation: %w", err)
	}
	return nil
}

func (s *SQLite) AddProblem(ctx context.Context, system, situation, problem string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO problems (system, situation, problem) VALUES (?, ?, ?)
		ON CONFLICT (system, situation) DO UPDATE SET problem = excluded.problem`,
		system, situation, problem)
	if err != nil {
		return fmt.Errorf("knowledge: add problem: %w", err)
	}
	return nil
}

func (s *SQLite) AddIntention(ctx context.Context, problem, intention string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intentions (problem, intention) VALUES (?, ?)
		ON CONFLICT (problem) DO UPDATE SET intention = excluded.intention`, problem, intention)
	if err != nil {
		return fmt.Errorf("knowledge: add intention: %w", err)
	}
	return nil
}

// AddDecomposition replaces the decomposition of (system, intention). The two
// lists must have the same length.
func (s *SQLite) AddDecomposition(ctx context.Context, system, intention string, d Decomposition) error {
	if len(d.Intentions) != len(d.Systems) {
		return fmt.Errorf("knowledge: add decomposition: %d intentions but %d systems",
			len(d.Intentions), len(d.Systems))
	}
	return s.inTx(ctx, "add decomposition", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM decompositions WHERE system = ? AND intention = ?`, system, intention); err != nil {
			return err
		}
		for i := range d.Intentions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO decompositions (system, intention, position, sub_intention, sub_system)
				VALUES (?, ?, ?, ?, ?)`, system, intention, i, d.Intentions[i], d.Systems[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddSolutions replaces the solutions of system. A known system keeps its
// position in the Solutions search order.
func (s *SQLite) AddSolutions(ctx context.Context, system string, solutions []string) error {
	return s.inTx(ctx, "add solutions", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO solution_systems (system) VALUES (?) ON CONFLICT (system) DO NOTHING`, system); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM solutions WHERE system = ?`, system); err != nil {
			return err
		}
		for i, sol := range solutions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO solutions (system, position, solution) VALUES (?, ?, ?)`, system, i, sol); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLite) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("knowledge: %s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("knowledge: %s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("knowledge: %s: commit: %w", op, err)
	}
	return nil
}

func (s *SQLite) Export(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Situations:     map[string]string{},
		Problems:       map[string]string{},
		Intentions:     map[string]string{},
		Decompositions: map[string]Decomposition{},
		Solutions:      map[string][]string{},
	}
	pairs := []struct {
		query string
		dst   map[string]string
	}{
		{`SELECT system, situation FROM situations`, snap.Situations},
		{`SELECT system || ',' || situation, problem FROM problems`, snap.Problems},
		{`SELECT problem, intention FROM intentions`, snap.Intentions},
	}
	for _, p := range pairs {
		if err := s.scanPairs(ctx, p.query, func(k, v string) { p.dst[k] = v }); err != nil {
			return Snapshot{}, err
		}
	}

	err := s.scanPairs(ctx, `
		SELECT system || ',' || intention, sub_intention || char(31) || sub_system
		FROM decompositions ORDER BY system, intention, position`, func(k, v string) {
		si, ss, _ := strings.Cut(v, "\x1f")
		d := snap.Decompositions[k]
		d.Intentions = append(d.Intentions, si)
		d.Systems = append(d.Systems, ss)
		snap.Decompositions[k] = d
	})
	if err != nil {
		return Snapshot{}, err
	}

	err = s.scanPairs(ctx, `
		SELECT ss.system, COALESCE(so.solution, '')
		FROM solution_systems ss LEFT JOIN solutions so ON so.system = ss.system
		ORDER BY ss.rowid, so.position`, func(k, v string) {
		if _, ok := snap.Solutions[k]; !ok {
			snap.Solutions[k] = []string{}
		}
		if v != "" {
			snap.Solutions[k] = append(snap.Solutions[k], v)
		}
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *SQLite) scanPairs(ctx context.Context, query string, fn func(k, v string)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("knowledge: export: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("knowledge: export scan: %w", err)
		}
		fn(k, v)
	}
	return rows.Err()
}
