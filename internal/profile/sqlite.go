package profile

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// SQLiteStore implements Store on a pets table.
type SQLiteStore struct {
	db    *sql.DB
	ratio float64
	now   func() time.Time
}

// NewSQLiteStore opens (and creates) the profile database. ratio converts
// body weight into the feed target on Save.
func NewSQLiteStore(dbPath string, ratio float64) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.StoreError("could not open profile database").WithCause(err).WithContext("path", dbPath).Build()
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, ratio: ratio, now: time.Now}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.StoreError("failed to initialize profile schema").WithCause(err).Build()
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS pets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		weight REAL NOT NULL,
		target_feed REAL NOT NULL,
		breed_id INTEGER NOT NULL UNIQUE,
		breed_name TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);`)
	return err
}

const selectProfile = "SELECT id, name, weight, target_feed, breed_id, breed_name, updated_at FROM pets"

// Lookup returns the profile registered for category.
func (s *SQLiteStore) Lookup(ctx context.Context, category int) (Profile, bool, error) {
	row := s.db.QueryRowContext(ctx, selectProfile+" WHERE breed_id = ?", category)
	p, err := scanProfile(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, errors.StoreError("failed to look up profile").
			WithCause(err).WithContext("breed_id", category).Build()
	}
	return p, true, nil
}

// List returns every profile ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, selectProfile+" ORDER BY name, breed_id")
	if err != nil {
		return nil, errors.StoreError("failed to list profiles").WithCause(err).Build()
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, errors.StoreError("failed to scan profile").WithCause(err).Build()
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("failed to list profiles").WithCause(err).Build()
	}
	return out, nil
}

// Save registers r, replacing any profile with the same category.
func (s *SQLiteStore) Save(ctx context.Context, r Registration) (Profile, error) {
	if err := r.Validate(); err != nil {
		return Profile{}, err
	}
	p := Profile{
		Name:      r.Name,
		Weight:    r.Weight,
		Target:    TargetFor(r.Weight, s.ratio),
		Category:  r.Category,
		Breed:     r.Breed,
		UpdatedAt: s.now().Truncate(time.Second),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, errors.StoreError("failed to begin profile transaction").WithCause(err).Build()
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM pets WHERE breed_id = ?", p.Category); err != nil {
		return Profile{}, errors.StoreError("failed to replace profile").WithCause(err).Build()
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO pets (name, weight, target_feed, breed_id, breed_name, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.Name, p.Weight, p.Target, p.Category, p.Breed, p.UpdatedAt.Unix())
	if err != nil {
		return Profile{}, errors.StoreError("failed to save profile").WithCause(err).Build()
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return Profile{}, errors.StoreError("failed to save profile").WithCause(err).Build()
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, errors.StoreError("failed to commit profile").WithCause(err).Build()
	}
	return p, nil
}

// Delete removes the profile for category.
func (s *SQLiteStore) Delete(ctx context.Context, category int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM pets WHERE breed_id = ?", category)
	if err != nil {
		return errors.StoreError("failed to delete profile").WithCause(err).Build()
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundError("no profile for breed").WithContext("breed_id", category).Build()
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(sc scanner) (Profile, error) {
	var p Profile
	var updated int64
	if err := sc.Scan(&p.ID, &p.Name, &p.Weight, &p.Target, &p.Category, &p.Breed, &updated); err != nil {
		return Profile{}, err
	}
	p.UpdatedAt = time.Unix(updated, 0)
	return p, nil
}
