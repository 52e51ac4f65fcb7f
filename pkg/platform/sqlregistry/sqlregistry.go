// ABOUTME: SQLite-backed platform registry using the pure Go modernc driver
// ABOUTME: Namespaces and entity definitions live in two tables

package sqlregistry

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/zeebo/errs"
	_ "modernc.org/sqlite"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/platform"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS namespaces (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS entities (
	entity_key TEXT PRIMARY KEY,
	namespace  TEXT NOT NULL,
	kind       TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	definition BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS entities_namespace_kind ON entities (namespace, kind, entity_key);
`

// Registry implements platform.Registry on a SQLite database.
type Registry struct {
	db *sql.DB
}

var _ platform.Registry = (*Registry)(nil)

// Open opens the database at dsn and creates the tables if needed. Use
// ":memory:" for a private in-memory database.
func Open(dsn string) (*Registry, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, platform.Error.Wrap(err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, errs.Combine(platform.Error.New("creating schema: %v", err), db.Close())
	}
	return &Registry{db: db}, nil
}

func (r *Registry) CreateNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return platform.Error.New("empty namespace")
	}
	_, err := r.db.ExecContext(ctx, "INSERT OR IGNORE INTO namespaces (name) VALUES (?)", namespace)
	return platform.Error.Wrap(err)
}

func (r *Registry) DeleteNamespace(ctx context.Context, namespace string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return platform.Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, ignoreDone(tx.Rollback()))
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM entities WHERE namespace = ?", namespace); err != nil {
		return platform.Error.Wrap(err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM namespaces WHERE name = ?", namespace); err != nil {
		return platform.Error.Wrap(err)
	}
	return platform.Error.Wrap(tx.Commit())
}

func (r *Registry) HasNamespace(ctx context.Context, namespace string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM namespaces WHERE name = ?", namespace).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, platform.Error.Wrap(err)
	}
	return true, nil
}

func (r *Registry) Namespaces(ctx context.Context) (_ []string, err error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM namespaces ORDER BY name")
	if err != nil {
		return nil, platform.Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, platform.Error.Wrap(err)
		}
		names = append(names, name)
	}
	return names, platform.Error.Wrap(rows.Err())
}

func (r *Registry) Put(ctx context.Context, id entity.ID, definition []byte) error {
	encoded, err := json.Marshal(id)
	if err != nil {
		return platform.Error.Wrap(err)
	}
	if definition == nil {
		definition = []byte{}
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO entities (entity_key, namespace, kind, entity_id, definition) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (entity_key) DO UPDATE SET definition = excluded.definition`,
		id.String(), id.NamespaceID(), id.Kind().String(), string(encoded), definition,
	)
	return platform.Error.Wrap(err)
}

func (r *Registry) Get(ctx context.Context, id entity.ID) ([]byte, bool, error) {
	var definition []byte
	err := r.db.QueryRowContext(ctx, "SELECT definition FROM entities WHERE entity_key = ?", id.String()).Scan(&definition)
	switch {
	case err == sql.ErrNoRows:
		return nil, false, nil
	case err != nil:
		return nil, false, platform.Error.Wrap(err)
	}
	return definition, true, nil
}

func (r *Registry) Delete(ctx context.Context, id entity.ID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM entities WHERE entity_key = ?", id.String())
	return platform.Error.Wrap(err)
}

func (r *Registry) List(ctx context.Context, namespace string, kind entity.Kind) (_ []entity.ID, err error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT entity_id FROM entities WHERE namespace = ? AND kind = ? ORDER BY entity_key",
		namespace, kind.String(),
	)
	if err != nil {
		return nil, platform.Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	ids := []entity.ID{}
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, platform.Error.Wrap(err)
		}
		id, err := entity.Decode([]byte(encoded))
		if err != nil {
			return nil, platform.Error.Wrap(err)
		}
		ids = append(ids, id)
	}
	return ids, platform.Error.Wrap(rows.Err())
}

// Ping checks the database connection.
func (r *Registry) Ping(ctx context.Context) error {
	return platform.Error.Wrap(r.db.PingContext(ctx))
}

func (r *Registry) Close() error {
	return platform.Error.Wrap(r.db.Close())
}

func ignoreDone(err error) error {
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
