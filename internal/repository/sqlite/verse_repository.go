package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"

	"bibleai-be/internal/repository/contract"
	"bibleai-be/pkg/bible"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS verses (
	verse_key   TEXT PRIMARY KEY,
	translation TEXT NOT NULL,
	book        TEXT NOT NULL,
	chapter     INTEGER NOT NULL,
	verse       INTEGER NOT NULL,
	text        TEXT NOT NULL,
	language    TEXT NOT NULL,
	book_name   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verses_chapter ON verses (translation, book, chapter, verse);
`

// VerseRepository is an embedded Verse Store backed by pure Go SQLite.
type VerseRepository struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path; ":memory:" is supported for tests.
func Open(path string) (*VerseRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(runtime.NumCPU())
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating verses schema: %w", err)
	}
	return &VerseRepository{db: db}, nil
}

func (r *VerseRepository) Close() error {
	return r.db.Close()
}

func (r *VerseRepository) InsertBulk(ctx context.Context, verses []bible.Verse) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO verses
		(verse_key, translation, book, chapter, verse, text, language, book_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range verses {
		if !v.ID.Book.Valid() || v.ID.Chapter < 1 || v.ID.Verse < 1 || v.ID.Translation == "" {
			return fmt.Errorf("invalid verse identity %+v", v.ID)
		}
		if _, err := stmt.ExecContext(ctx, v.ID.Key(), v.ID.Translation, string(v.ID.Book),
			v.ID.Chapter, v.ID.Verse, v.Text, string(v.Language), v.BookName); err != nil {
			return fmt.Errorf("inserting %s: %w", v.ID.Key(), err)
		}
	}
	return tx.Commit()
}

func (r *VerseRepository) FindByID(ctx context.Context, id bible.VerseID) (*bible.Verse, error) {
	row := r.db.QueryRowContext(ctx, `SELECT translation, book, chapter, verse, text, language, book_name
		FROM verses WHERE verse_key = ?`, id.Key())
	v, err := scanVerse(row)
	if err == sql.ErrNoRows {
		return nil, contract.ErrVerseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VerseRepository) FindByKeys(ctx context.Context, keys []string) (map[string]bible.Verse, error) {
	out := make(map[string]bible.Verse, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := r.db.QueryContext(ctx, `SELECT translation, book, chapter, verse, text, language, book_name
		FROM verses WHERE verse_key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVerse(rows)
		if err != nil {
			return nil, err
		}
		out[v.ID.Key()] = v
	}
	return out, rows.Err()
}

func (r *VerseRepository) FindRange(ctx context.Context, q contract.ChapterRange) ([]bible.Verse, error) {
	query := `SELECT translation, book, chapter, verse, text, language, book_name
		FROM verses WHERE translation = ? AND book = ? AND chapter = ? AND verse >= ?`
	args := []any{q.Translation, string(q.Book), q.Chapter, q.From}
	if q.To > 0 {
		query += ` AND verse <= ?`
		args = append(args, q.To)
	}
	query += ` ORDER BY verse`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]bible.Verse, 0)
	for rows.Next() {
		v, err := scanVerse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VerseRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verses`).Scan(&n)
	return n, err
}

func (r *VerseRepository) Translations(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT translation FROM verses ORDER BY translation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVerse(s scanner) (bible.Verse, error) {
	var (
		v        bible.Verse
		book     string
		language string
	)
	if err := s.Scan(&v.ID.Translation, &book, &v.ID.Chapter, &v.ID.Verse, &v.Text, &language, &v.BookName); err != nil {
		return bible.Verse{}, err
	}
	v.ID.Book = bible.BookCode(book)
	v.Language = bible.Language(language)
	return v, nil
}

var _ contract.VerseRepository = (*VerseRepository)(nil)
