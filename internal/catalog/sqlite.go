package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	title    TEXT PRIMARY KEY,
	link     TEXT NOT NULL DEFAULT '',
	added_by INTEGER NOT NULL DEFAULT 0,
	added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteDB implements Persister on a local SQLite database. Insertion order
// is preserved by rowid.
type SQLiteDB struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLiteDB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &SQLiteDB{conn: conn}, nil
}

// Load returns every record ordered by rowid, oldest first.
func (db *SQLiteDB) Load() ([]models.Record, error) {
	rows, err := db.conn.Query(`SELECT title, link, added_by, added_at FROM records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("catalog: load: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.Title, &r.Link, &r.AddedBy, &r.AddedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Put inserts or replaces a record. The upsert keeps the original rowid so
// overwrites do not change insertion order.
func (db *SQLiteDB) Put(rec models.Record) error {
	_, err := db.conn.Exec(`
		INSERT INTO records (title, link, added_by, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			link     = excluded.link,
			added_by = excluded.added_by,
			added_at = excluded.added_at
	`, rec.Title, rec.Link, rec.AddedBy, rec.AddedAt)
	if err != nil {
		return fmt.Errorf("catalog: put %q: %w", rec.Title, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *SQLiteDB) Close() error {
	return db.conn.Close()
}
