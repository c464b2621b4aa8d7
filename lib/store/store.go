// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/identity"
)

// Errors returned by transaction operations.
var (
	// ErrRecordExists is returned by Tx.Insert when a record already
	// occupies the target address. Callers use this to detect
	// duplicate initialization (a second init_registry, a second
	// verification vote from the same verifier).
	ErrRecordExists = errors.New("store: record already exists at address")

	// ErrReadOnly is returned when a mutation is attempted inside View.
	ErrReadOnly = errors.New("store: mutation inside read-only transaction")
)

// Record is one stored entity: the identity that wrote it plus its
// CBOR-encoded payload. The owner is checked by the authorization
// gate before a record's content is trusted (a record at the right
// address but written by the wrong service is a forgery).
type Record struct {
	Owner identity.PublicKey
	Data  []byte
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist. Plain ":memory:" is rejected by
	// the connection pool (each pooled connection would see its own
	// private database); tests use file-backed stores in temporary
	// directories.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4 if
	// zero or negative.
	PoolSize int

	// Logger receives operational messages. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Store is the flat record ledger: a single address-keyed table of
// binary records with serializable transactions. There is no
// relational schema; every entity is one row, and all structure lives
// in deterministic address derivation and CBOR payloads.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// schema is applied once per connection. WITHOUT ROWID keeps the
// table clustered on the address, which is the only access path.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	address BLOB PRIMARY KEY,
	owner   BLOB NOT NULL,
	data    BLOB NOT NULL
) WITHOUT ROWID;
`

// Open creates the store, applying standard pragmas and the record
// schema to every pooled connection. The caller must Close the store
// when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	logger.Info("record store opened", "path", cfg.Path, "pool_size", poolSize)

	return &Store{pool: pool, logger: logger, path: cfg.Path}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("store: applying schema: %w", err)
	}
	return nil
}

// Close closes all pooled connections. Blocks until borrowed
// connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	s.logger.Info("record store closed", "path", s.path)
	return nil
}

// Tx is one transaction against the record table. A Tx is only valid
// inside the View or Update callback that created it.
type Tx struct {
	conn     *sqlite.Conn
	writable bool
}

// View runs fn in a read transaction. Every Get inside fn observes
// one consistent snapshot.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: view: %w", err)
	}
	defer s.pool.Put(conn)

	endFn := sqlitex.Transaction(conn)
	runErr := fn(&Tx{conn: conn})
	endFn(&runErr)
	return runErr
}

// Update runs fn in an IMMEDIATE write transaction. Either every
// mutation fn performs commits, or — if fn returns an error — none
// do. This is the all-or-nothing multi-record commit the ledger
// semantics depend on: validation failures abort with the store
// untouched.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: update: %w", err)
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	runErr := fn(&Tx{conn: conn, writable: true})
	endFn(&runErr)
	return runErr
}

// Get reads the record at addr. The second return value reports
// whether a record exists there.
func (tx *Tx) Get(addr address.Address) (Record, bool, error) {
	var record Record
	found := false

	err := sqlitex.Execute(tx.conn,
		`SELECT owner, data FROM records WHERE address = ?`,
		&sqlitex.ExecOptions{
			Args: []any{addr[:]},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true

				var owner [32]byte
				if n := stmt.ColumnBytes(0, owner[:]); n != len(owner) {
					return fmt.Errorf("store: owner column has %d bytes, want %d", n, len(owner))
				}
				record.Owner = identity.PublicKey(owner)

				record.Data = make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, record.Data)
				return nil
			},
		})
	if err != nil {
		return Record{}, false, fmt.Errorf("store: get %s: %w", addr, err)
	}
	return record, found, nil
}

// Insert writes a new record at addr. Fails with ErrRecordExists if
// the address is already occupied.
func (tx *Tx) Insert(addr address.Address, owner identity.PublicKey, data []byte) error {
	if !tx.writable {
		return ErrReadOnly
	}
	if _, found, err := tx.Get(addr); err != nil {
		return err
	} else if found {
		return fmt.Errorf("%w: %s", ErrRecordExists, addr)
	}
	return tx.put(addr, owner, data)
}

// Put writes the record at addr, creating or replacing it.
func (tx *Tx) Put(addr address.Address, owner identity.PublicKey, data []byte) error {
	if !tx.writable {
		return ErrReadOnly
	}
	return tx.put(addr, owner, data)
}

func (tx *Tx) put(addr address.Address, owner identity.PublicKey, data []byte) error {
	err := sqlitex.Execute(tx.conn,
		`INSERT INTO records (address, owner, data) VALUES (?, ?, ?)
		 ON CONFLICT (address) DO UPDATE SET owner = excluded.owner, data = excluded.data`,
		&sqlitex.ExecOptions{
			Args: []any{addr[:], owner[:], data},
		})
	if err != nil {
		return fmt.Errorf("store: put %s: %w", addr, err)
	}
	return nil
}

// Delete removes the record at addr and reclaims its storage.
// Deleting a nonexistent record is a no-op.
func (tx *Tx) Delete(addr address.Address) error {
	if !tx.writable {
		return ErrReadOnly
	}
	err := sqlitex.Execute(tx.conn,
		`DELETE FROM records WHERE address = ?`,
		&sqlitex.ExecOptions{
			Args: []any{addr[:]},
		})
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", addr, err)
	}
	return nil
}
