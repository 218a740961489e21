package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avitech-lab/labsite/internal/reference"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// selectPubFields contains the standard field list for SELECT queries.
const selectPubFields = `cite_key, type, title, authors_json, venue, year, doi, contributor`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS pubs (
			cite_key TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			authors_json TEXT NOT NULL,
			venue TEXT,
			year INTEGER NOT NULL,
			doi TEXT,
			contributor TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pubs_year ON pubs(year);
		CREATE INDEX IF NOT EXISTS idx_pubs_contributor ON pubs(contributor);

		-- Full-text search virtual table (standalone, not external content)
		CREATE VIRTUAL TABLE IF NOT EXISTS pubs_fts USING fts5(
			cite_key,
			title,
			authors,
			venue
		);
	`

	_, err := db.Exec(schema)
	return err
}

// Rebuild replaces the index contents with pubs in one transaction.
// Only the first publication with a given key is indexed.
func (d *DB) Rebuild(pubs []reference.Publication) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM pubs"); err != nil {
		return 0, fmt.Errorf("clearing pubs table: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM pubs_fts"); err != nil {
		return 0, fmt.Errorf("clearing pubs_fts table: %w", err)
	}

	pubsStmt, err := tx.Prepare(`
		INSERT INTO pubs (cite_key, type, title, authors_json, venue, year, doi, contributor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing pubs insert: %w", err)
	}
	defer pubsStmt.Close()

	ftsStmt, err := tx.Prepare(`
		INSERT INTO pubs_fts (cite_key, title, authors, venue)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	seen := make(map[string]bool, len(pubs))
	for _, p := range pubs {
		if seen[p.Key] {
			continue
		}
		seen[p.Key] = true

		authorsJSON, err := json.Marshal(p.Authors)
		if err != nil {
			return 0, fmt.Errorf("marshaling authors for %s: %w", p.Key, err)
		}

		_, err = pubsStmt.Exec(
			p.Key, p.Type, p.Title, string(authorsJSON),
			nullableStringValue(p.Venue), p.Year, nullableStringValue(p.DOI), p.Contributor,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting publication %s: %w", p.Key, err)
		}

		if _, err := ftsStmt.Exec(p.Key, p.Title, p.AuthorsText(), p.Venue); err != nil {
			return 0, fmt.Errorf("inserting fts for %s: %w", p.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing index: %w", err)
	}
	return len(seen), nil
}

// Get retrieves a publication by its key, or nil if absent.
func (d *DB) Get(key string) (*reference.Publication, error) {
	row := d.db.QueryRow(`SELECT `+selectPubFields+` FROM pubs WHERE cite_key = ?`, key)
	return scanPublication(row)
}

// Search performs a full-text search and returns matching publications,
// best match first.
func (d *DB) Search(query string, limit int) ([]reference.Publication, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := d.db.Query(`
		SELECT `+prefixed("p.", selectPubFields)+`
		FROM pubs_fts JOIN pubs p ON p.cite_key = pubs_fts.cite_key
		WHERE pubs_fts MATCH ?
		ORDER BY bm25(pubs_fts)
		LIMIT ?`, ftsQuery, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanPublications(rows)
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Year        int
	Type        string
	Contributor string
	Limit       int
}

// List returns publications matching filter, newest first.
func (d *DB) List(filter ListFilter) ([]reference.Publication, error) {
	query := `SELECT ` + selectPubFields + ` FROM pubs WHERE 1=1`
	var args []interface{}

	if filter.Year > 0 {
		query += " AND year = ?"
		args = append(args, filter.Year)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, strings.ToLower(filter.Type))
	}
	if filter.Contributor != "" {
		query += " AND contributor = ?"
		args = append(args, filter.Contributor)
	}

	query += " ORDER BY year DESC, cite_key LIMIT ?"
	args = append(args, limitOrAll(filter.Limit))

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing publications: %w", err)
	}
	defer rows.Close()

	return scanPublications(rows)
}

// Count returns the total number of publications.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM pubs").Scan(&count)
	return count, err
}

// YearCount is the number of publications in one year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// CountByYear returns publication counts per year, newest first.
func (d *DB) CountByYear() ([]YearCount, error) {
	rows, err := d.db.Query("SELECT year, COUNT(*) FROM pubs GROUP BY year ORDER BY year DESC")
	if err != nil {
		return nil, fmt.Errorf("counting by year: %w", err)
	}
	defer rows.Close()

	var out []YearCount
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.Year, &yc.Count); err != nil {
			return nil, err
		}
		out = append(out, yc)
	}
	return out, rows.Err()
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPublication(s scanner) (*reference.Publication, error) {
	var p reference.Publication
	var authorsJSON string
	var venue, doi sql.NullString

	err := s.Scan(&p.Key, &p.Type, &p.Title, &authorsJSON, &venue, &p.Year, &doi, &p.Contributor)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.Venue = venue.String
	p.DOI = doi.String

	if err := json.Unmarshal([]byte(authorsJSON), &p.Authors); err != nil {
		return nil, fmt.Errorf("parsing authors JSON for %s: %w", p.Key, err)
	}
	return &p, nil
}

func scanPublications(rows *sql.Rows) ([]reference.Publication, error) {
	var pubs []reference.Publication
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		if p != nil {
			pubs = append(pubs, *p)
		}
	}
	return pubs, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// limitOrAll maps a non-positive limit to SQLite's "no limit".
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func prefixed(prefix, fields string) string {
	parts := strings.Split(fields, ",")
	for i, f := range parts {
		parts[i] = prefix + strings.TrimSpace(f)
	}
	return strings.Join(parts, ", ")
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	// For simple queries, just quote the terms
	// FTS5 uses double quotes for phrase matching
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// If query contains special chars, quote it
	if strings.ContainsAny(query, "\"*+-:(){}[]^~.,'") {
		// Escape internal quotes and wrap in quotes
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
